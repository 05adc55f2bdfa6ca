// courierd serves the demo courier handlers (ping and echo) on a Unix
// socket until it receives SIGINT or SIGTERM.
//
// Settings come from an optional TOML or YAML file (--config); flags given
// on the command line override the file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"ipc-courier/config"
	"ipc-courier/internal/demo"
	"ipc-courier/logging"
	"ipc-courier/metadata"
	"ipc-courier/middleware"
	"ipc-courier/registry"
	"ipc-courier/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		rate       float64
		burst      int
		showVer    bool
	)
	cfg := config.DefaultServer()

	flagSet := pflag.NewFlagSet("courierd", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "TOML or YAML configuration file")
	flagSet.StringVarP(&cfg.Socket, "socket", "s", cfg.Socket, "Unix socket path to listen on")
	flagSet.DurationVar(&cfg.LoopDelay.Duration, "loop-delay", cfg.LoopDelay.Duration, "pause after every request and session")
	flagSet.StringVar(&cfg.FailurePolicy, "failure-policy", cfg.FailurePolicy, "fail-server or isolate-session")
	flagSet.StringVar(&cfg.DuplicatePolicy, "duplicate-policy", cfg.DuplicatePolicy, "silent-override, silent-ignore, indicate-ignore or throw")
	flagSet.StringVar(&cfg.Codec, "codec", cfg.Codec, "body codec: cbor or json")
	flagSet.Uint32Var(&cfg.MaxFrameSize, "max-frame-size", cfg.MaxFrameSize, "largest accepted frame in bytes, 0 for unbounded")
	flagSet.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "trace, debug, info, warn, error or disabled")
	flagSet.StringSliceVar(&cfg.Registry.Endpoints, "etcd", nil, "etcd endpoints for announcing this server")
	flagSet.StringVar(&cfg.Registry.Service, "service", cfg.Registry.Service, "service name to announce under")
	flagSet.Float64Var(&rate, "rate", 0, "requests per second before throttling, 0 for no limit")
	flagSet.IntVar(&burst, "burst", 1, "requests allowed above --rate in a burst")
	flagSet.BoolVar(&showVer, "version", false, "print the version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVer {
		fmt.Println("courierd", metadata.Protocol())
		return nil
	}

	if configPath != "" {
		fileCfg, err := config.LoadServer(configPath)
		if err != nil {
			return err
		}
		overrideServer(flagSet, &fileCfg, cfg)
		cfg = fileCfg
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Logging("courierd"))
	opts, err := cfg.Options(logger)
	if err != nil {
		return err
	}
	opts = append(opts, server.WithMiddleware(middleware.Logging(logger)))
	if rate > 0 {
		opts = append(opts, server.WithMiddleware(middleware.Throttle(rate, burst)))
	}

	if cfg.Registry.Enabled() {
		reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints)
		if err != nil {
			return fmt.Errorf("connecting to etcd: %w", err)
		}
		defer reg.Close()
		opts = append(opts, server.WithRegistry(reg, cfg.Registry.Service, cfg.Registry.Weight, cfg.Registry.TTL))
	}

	svr, err := server.New(cfg.Socket, opts...)
	if err != nil {
		return err
	}
	server.Handle(svr, demo.HandlePing)
	server.Handle(svr, demo.HandleEcho)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svr.Serve(ctx)
}

// overrideServer copies every flag the user set explicitly from flags
// into dst.
func overrideServer(flagSet *pflag.FlagSet, dst *config.ServerConfig, flags config.ServerConfig) {
	if flagSet.Changed("socket") {
		dst.Socket = flags.Socket
	}
	if flagSet.Changed("loop-delay") {
		dst.LoopDelay = flags.LoopDelay
	}
	if flagSet.Changed("failure-policy") {
		dst.FailurePolicy = flags.FailurePolicy
	}
	if flagSet.Changed("duplicate-policy") {
		dst.DuplicatePolicy = flags.DuplicatePolicy
	}
	if flagSet.Changed("codec") {
		dst.Codec = flags.Codec
	}
	if flagSet.Changed("max-frame-size") {
		dst.MaxFrameSize = flags.MaxFrameSize
	}
	if flagSet.Changed("log-level") {
		dst.Log.Level = flags.Log.Level
	}
	if flagSet.Changed("etcd") {
		dst.Registry.Endpoints = flags.Registry.Endpoints
	}
	if flagSet.Changed("service") {
		dst.Registry.Service = flags.Registry.Service
	}
}

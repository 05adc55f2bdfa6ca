// courierctl calls a courier server.
//
// Usage:
//
//	courierctl [flags] ping
//	courierctl [flags] echo [--upper] TEXT
//	courierctl [flags] mappings
//
// The server is found by --socket, or through etcd with --etcd and
// --service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"ipc-courier/client"
	"ipc-courier/config"
	"ipc-courier/internal/demo"
	"ipc-courier/loadbalance"
	"ipc-courier/logging"
	"ipc-courier/message"
	"ipc-courier/registry"
)

var errUsage = errors.New("usage: courierctl [flags] ping | echo [--upper] TEXT | mappings")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		timeout    time.Duration
		upper      bool
	)
	cfg := config.DefaultClient()

	flagSet := pflag.NewFlagSet("courierctl", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "TOML or YAML configuration file")
	flagSet.StringVarP(&cfg.Socket, "socket", "s", cfg.Socket, "Unix socket path of the server")
	flagSet.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "no-validation, manual-registration or server-reflection")
	flagSet.StringVar(&cfg.Codec, "codec", cfg.Codec, "body codec: cbor or json")
	flagSet.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "trace, debug, info, warn, error or disabled")
	flagSet.StringSliceVar(&cfg.Registry.Endpoints, "etcd", nil, "etcd endpoints for discovering the server")
	flagSet.StringVar(&cfg.Registry.Service, "service", cfg.Registry.Service, "service name to discover")
	flagSet.StringVar(&cfg.Registry.Balancer, "balancer", cfg.Registry.Balancer, "round-robin, weighted-random or consistent-hash")
	flagSet.StringVar(&cfg.Registry.HashKey, "hash-key", cfg.Registry.HashKey, "key for the consistent-hash balancer")
	flagSet.DurationVar(&timeout, "timeout", 5*time.Second, "give up on the call after this long")
	flagSet.BoolVar(&upper, "upper", false, "echo: ask the server to upper-case the text")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if len(args) == 0 {
		return errUsage
	}

	if configPath != "" {
		fileCfg, err := config.LoadClient(configPath)
		if err != nil {
			return err
		}
		overrideClient(flagSet, &fileCfg, cfg)
		cfg = fileCfg
	}
	logger := logging.New(cfg.Log.Logging("courierctl"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cli, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cli.Close()

	switch args[0] {
	case "ping":
		pong, err := client.Send[*demo.Ping, *demo.Pong](ctx, cli, &demo.Ping{})
		if err != nil {
			return err
		}
		fmt.Println(pong.Value)
	case "echo":
		if len(args) < 2 {
			return errUsage
		}
		req := &demo.EchoRequest{Text: strings.Join(args[1:], " "), Upper: upper}
		resp, err := client.Send[*demo.EchoRequest, *demo.EchoResponse](ctx, cli, req)
		if err != nil {
			return err
		}
		fmt.Println(resp.Text)
	case "mappings":
		resp, err := client.Send[*message.MappingRequest, *message.MappingResponse](ctx, cli, &message.MappingRequest{})
		if err != nil {
			return err
		}
		requests := make([]string, 0, len(resp.Mappings))
		for req := range resp.Mappings {
			requests = append(requests, req)
		}
		slices.Sort(requests)
		for _, req := range requests {
			fmt.Printf("%s -> %s\n", req, resp.Mappings[req])
		}
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
	return nil
}

// open builds a client from cfg, finding the socket through etcd when a
// registry is configured, and connects it.
func open(ctx context.Context, cfg config.ClientConfig, logger zerolog.Logger) (*client.Client, error) {
	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}

	var cli *client.Client
	if cfg.Registry.Enabled() {
		reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints)
		if err != nil {
			return nil, fmt.Errorf("connecting to etcd: %w", err)
		}
		defer reg.Close()

		bal, err := loadbalance.New(cfg.Registry.Balancer, cfg.Registry.HashKey)
		if err != nil {
			return nil, err
		}
		if cli, err = client.Discover(ctx, reg, bal, cfg.Registry.Service, opts...); err != nil {
			return nil, err
		}
	} else {
		cli = client.New(cfg.Socket, opts...)
	}

	if cli.Strategy() == client.ManualRegistration {
		client.RegisterPair[*demo.Ping, *demo.Pong](cli)
		client.RegisterPair[*demo.EchoRequest, *demo.EchoResponse](cli)
		client.RegisterPair[*message.MappingRequest, *message.MappingResponse](cli)
	}

	if err := cli.Connect(ctx); err != nil {
		return nil, err
	}
	return cli, nil
}

func overrideClient(flagSet *pflag.FlagSet, dst *config.ClientConfig, flags config.ClientConfig) {
	if flagSet.Changed("socket") {
		dst.Socket = flags.Socket
	}
	if flagSet.Changed("strategy") {
		dst.Strategy = flags.Strategy
	}
	if flagSet.Changed("codec") {
		dst.Codec = flags.Codec
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
	if flagSet.Changed("balancer") {
		dst.Registry.Balancer = flags.Registry.Balancer
	}
	if flagSet.Changed("hash-key") {
		dst.Registry.HashKey = flags.Registry.HashKey
	}
}

package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"ipc-courier/codec"
	"ipc-courier/pairing"
	"ipc-courier/server"
)

// ServerConfig configures courierd.
type ServerConfig struct {
	Socket            string         `toml:"socket" yaml:"socket"`
	LoopDelay         Duration       `toml:"loop_delay" yaml:"loop_delay"`
	FailurePolicy     string         `toml:"failure_policy" yaml:"failure_policy"`
	DuplicatePolicy   string         `toml:"duplicate_policy" yaml:"duplicate_policy"`
	Codec             string         `toml:"codec" yaml:"codec"`
	MaxFrameSize      uint32         `toml:"max_frame_size" yaml:"max_frame_size"`
	RemoveStaleSocket bool           `toml:"remove_stale_socket" yaml:"remove_stale_socket"`
	Log               LogConfig      `toml:"log" yaml:"log"`
	Registry          RegistryConfig `toml:"registry" yaml:"registry"`
}

func DefaultServer() ServerConfig {
	return ServerConfig{
		Socket:            "/tmp/courier.sock",
		LoopDelay:         Duration{server.DefaultLoopDelay},
		FailurePolicy:     server.FailServer.String(),
		DuplicatePolicy:   pairing.SilentOverride.String(),
		Codec:             codec.CodecTypeCBOR.String(),
		RemoveStaleSocket: true,
		Log:               LogConfig{Level: "info", Console: true},
		Registry:          defaultRegistry(),
	}
}

// LoadServer reads path over DefaultServer and validates the result.
func LoadServer(path string) (ServerConfig, error) {
	cfg := DefaultServer()
	if err := decodeFile(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (c ServerConfig) Validate() error {
	if err := validateSocket(c.Socket); err != nil {
		return err
	}
	if c.LoopDelay.Duration < 0 {
		return fmt.Errorf("%w: loop_delay must not be negative", ErrInvalid)
	}
	if _, err := server.ParseFailurePolicy(c.FailurePolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := pairing.ParsePolicy(c.DuplicatePolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c.Registry.validate()
}

// Options converts the configuration into server options. The registry
// section is not included; the caller opens the registry and adds
// server.WithRegistry itself.
func (c ServerConfig) Options(logger zerolog.Logger) ([]server.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	failure, _ := server.ParseFailurePolicy(c.FailurePolicy)
	duplicate, _ := pairing.ParsePolicy(c.DuplicatePolicy)
	codecType, _ := codec.ParseCodecType(c.Codec)

	return []server.Option{
		server.WithLoopDelay(c.LoopDelay.Duration),
		server.WithFailurePolicy(failure),
		server.WithDuplicatePolicy(duplicate),
		server.WithCodec(codec.GetCodec(codecType)),
		server.WithMaxFrameSize(c.MaxFrameSize),
		server.WithStaleSocketRemoval(c.RemoveStaleSocket),
		server.WithLogger(logger),
	}, nil
}

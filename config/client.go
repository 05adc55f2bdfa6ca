package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"ipc-courier/client"
	"ipc-courier/codec"
	"ipc-courier/pairing"
)

// ClientConfig configures courierctl.
type ClientConfig struct {
	Socket          string         `toml:"socket" yaml:"socket"`
	Strategy        string         `toml:"strategy" yaml:"strategy"`
	DuplicatePolicy string         `toml:"duplicate_policy" yaml:"duplicate_policy"`
	Codec           string         `toml:"codec" yaml:"codec"`
	MaxFrameSize    uint32         `toml:"max_frame_size" yaml:"max_frame_size"`
	Log             LogConfig      `toml:"log" yaml:"log"`
	Registry        RegistryConfig `toml:"registry" yaml:"registry"`
}

func DefaultClient() ClientConfig {
	return ClientConfig{
		Socket:          "/tmp/courier.sock",
		Strategy:        client.ServerReflection.String(),
		DuplicatePolicy: pairing.SilentOverride.String(),
		Codec:           codec.CodecTypeCBOR.String(),
		Log:             LogConfig{Level: "warn", Console: true},
		Registry:        defaultRegistry(),
	}
}

// LoadClient reads path over DefaultClient and validates the result.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClient()
	if err := decodeFile(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration. The socket path may be empty when a
// registry is configured to find it.
func (c ClientConfig) Validate() error {
	if !c.Registry.Enabled() {
		if err := validateSocket(c.Socket); err != nil {
			return err
		}
	}
	if _, err := client.ParseStrategy(c.Strategy); err != nil {
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

func (c ClientConfig) Options(logger zerolog.Logger) ([]client.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	strategy, _ := client.ParseStrategy(c.Strategy)
	duplicate, _ := pairing.ParsePolicy(c.DuplicatePolicy)
	codecType, _ := codec.ParseCodecType(c.Codec)

	return []client.Option{
		client.WithStrategy(strategy),
		client.WithDuplicatePolicy(duplicate),
		client.WithCodec(codec.GetCodec(codecType)),
		client.WithMaxFrameSize(c.MaxFrameSize),
		client.WithLogger(logger),
	}, nil
}

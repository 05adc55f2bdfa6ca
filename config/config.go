// Package config loads courierd and courierctl settings from TOML or YAML
// files. The decoder is chosen by file extension. Keys missing from the
// file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"ipc-courier/logging"
)

// MaxSocketPath is the longest usable Unix socket path (sun_path is 108
// bytes including the terminating NUL).
const MaxSocketPath = 107

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrInvalid           = errors.New("config: invalid configuration")
)

// Duration is a time.Duration written as a string such as "100ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	Console bool   `toml:"console" yaml:"console"`
}

// Logging converts the section into a logging.Config for app.
func (l LogConfig) Logging(app string) logging.Config {
	return logging.Config{App: app, Level: l.Level, Console: l.Console}
}

// RegistryConfig points at the etcd cluster used for endpoint
// announcement and discovery. No endpoints means no registry.
type RegistryConfig struct {
	Endpoints []string `toml:"endpoints" yaml:"endpoints"`
	Service   string   `toml:"service" yaml:"service"`
	Weight    int      `toml:"weight" yaml:"weight"`
	TTL       int64    `toml:"ttl" yaml:"ttl"`
	Balancer  string   `toml:"balancer" yaml:"balancer"`
	HashKey   string   `toml:"hash_key" yaml:"hash_key"`
}

// Enabled reports whether a registry should be used.
func (r RegistryConfig) Enabled() bool {
	return len(r.Endpoints) > 0
}

func (r RegistryConfig) validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Service) == "" {
		return fmt.Errorf("%w: registry.service is required when registry.endpoints is set", ErrInvalid)
	}
	if r.TTL <= 0 {
		return fmt.Errorf("%w: registry.ttl must be positive, got %d", ErrInvalid, r.TTL)
	}
	switch r.Balancer {
	case "round-robin", "weighted-random", "consistent-hash":
	default:
		return fmt.Errorf("%w: unknown registry.balancer %q", ErrInvalid, r.Balancer)
	}
	return nil
}

func defaultRegistry() RegistryConfig {
	return RegistryConfig{Weight: 1, TTL: 10, Balancer: "round-robin"}
}

func validateSocket(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: socket path is required", ErrInvalid)
	}
	if len(path) > MaxSocketPath {
		return fmt.Errorf("%w: socket path is %d bytes, limit is %d", ErrInvalid, len(path), MaxSocketPath)
	}
	return nil
}

func decodeFile(path string, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, v); err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
		return nil
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Package config loads service configuration from a TOML file, an
// EXHIBIT_CONFIG environment blob, or both, with environment overrides for
// deployment platforms that inject a port.
package config

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

const (
	// EnvConfig carries a whole base64-encoded TOML config, for platforms
	// where mounting a file is awkward.
	EnvConfig = "EXHIBIT_CONFIG"
	// EnvPort overrides the listen port (PaaS convention).
	EnvPort = "PORT"

	// DefaultConfigFile is picked up from the working directory when neither
	// a flag path nor the environment blob is given.
	DefaultConfigFile = "exhibit.toml"
)

type Config struct {
	ServiceAddress string `mapstructure:"service_address"`
	ServicePort    string `mapstructure:"service_port"`
	LogLevel       string `mapstructure:"log_level"`

	// NewPresentationSigningKey is the PEM ECDSA public key that create
	// tokens are verified against.
	NewPresentationSigningKey string `mapstructure:"new_presentation_signing_key"`
}

// LoadConfig reads configuration from the given file path, falling back to
// the EXHIBIT_CONFIG environment variable and then to exhibit.toml in the
// working directory. A missing signing key is a startup failure: the service
// cannot authorize anything without it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("service_address", "0.0.0.0")
	v.SetDefault("service_port", "8080")
	v.SetDefault("log_level", "info")

	switch {
	case path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		v.OnConfigChange(func(e fsnotify.Event) {
			// Address and key changes need a restart; the watch only makes
			// that visible in the log.
			slog.Info("config file changed on disk, restart to apply", "file", e.Name)
		})
		v.WatchConfig()

	case os.Getenv(EnvConfig) != "":
		raw, err := base64.StdEncoding.DecodeString(os.Getenv(EnvConfig))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", EnvConfig, err)
		}
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvConfig, err)
		}

	default:
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return nil, fmt.Errorf("no configuration: pass --config_file, set %s, or provide %s",
				EnvConfig, DefaultConfigFile)
		}
		v.SetConfigFile(DefaultConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", DefaultConfigFile, err)
		}
	}

	if port := os.Getenv(EnvPort); port != "" {
		v.Set("service_port", port)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.NewPresentationSigningKey == "" {
		return nil, fmt.Errorf("config: new_presentation_signing_key is required")
	}
	if _, err := cfg.CreateKey(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CreateKey parses the configured signing key.
func (c *Config) CreateKey() (*ecdsa.PublicKey, error) {
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(c.NewPresentationSigningKey))
	if err != nil {
		return nil, fmt.Errorf("config: parse new_presentation_signing_key: %w", err)
	}
	return key, nil
}

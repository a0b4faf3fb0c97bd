// Package config resolves the tool's settings from, in order of
// precedence: command-line flags, KN_* environment variables, an
// optional YAML file, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds every tunable the CLI exposes.
type Config struct {
	// DB is the path to the SQLite store file.
	DB string `koanf:"db" validate:"required"`
	// Editor is the command used for buffer round-trips. Empty means
	// resolve from $EDITOR and the usual fallbacks.
	Editor string `koanf:"editor"`
	// Retries is the per-card budget for malformed buffer input.
	Retries int `koanf:"retries" validate:"gte=1,lte=10"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:      "knards.db",
		Retries: 3,
	}
}

var validate = validator.New()

// Load builds the effective Config. flags may be nil when the calling
// subcommand defines no config-relevant flags.
func Load(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path := filePath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue("KN_", ".", func(key, value string) (string, interface{}) {
		return strings.ToLower(strings.TrimPrefix(key, "KN_")), value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// filePath returns the config file location: $KN_CONFIG if set,
// otherwise ~/.config/kn/config.yaml.
func filePath() string {
	if p := os.Getenv("KN_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "kn", "config.yaml")
}

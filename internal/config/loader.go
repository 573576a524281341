package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. ROUTEKIT_TARGET__BASE_URL.
	EnvPrefix = "ROUTEKIT_"
	// EnvConfigFile names the config file when no path is passed.
	EnvConfigFile = EnvPrefix + "CONFIG"
	// DefaultPath is read when it exists and nothing else was requested.
	DefaultPath = "config/config.yaml"
)

// Load builds a Config by layering defaults, an optional YAML file and
// environment variables. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file: path, else ROUTEKIT_CONFIG, else config/config.yaml if present
//  3. env: ROUTEKIT_ prefix, "__" separates nested keys
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	path, explicit := resolvePath(path)
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if explicit {
				return nil, fmt.Errorf("config file not found at %s: %w", path, err)
			}
		} else if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Token may come from the environment the way the CI secrets provide it
	if token := os.Getenv("AUTH_TOKEN"); token != "" && cfg.Target.Auth.Token == "" {
		cfg.Target.Auth.Token = token
	}
	if len(cfg.Reporting.Format) == 0 {
		cfg.Reporting.Format = []string{"json"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(errors.New("invalid configuration"), err)
	}
	return cfg, nil
}

// resolvePath picks the config file and reports whether it was requested explicitly
func resolvePath(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p, true
	}
	return DefaultPath, false
}

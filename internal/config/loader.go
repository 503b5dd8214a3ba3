package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if WARDEN_CONFIG is set
//  3. env (prefix WARDEN_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("WARDEN_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: WARDEN_ADDR, WARDEN_MODEL_PATH, ...
	// Map env keys like WARDEN_MODEL_PATH -> model_path (flat keys),
	// preserving underscores to match koanf tags on the struct.
	envProvider := env.Provider("WARDEN_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "warden_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.BehaviourWindowDays <= 0 {
		return nil, fmt.Errorf("%w: behaviour_window_days must be positive", ErrInvalidConfig)
	}
	if cfg.BehaviourMaxEvents <= 0 {
		return nil, fmt.Errorf("%w: behaviour_max_events must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}

package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FORGE_CONFIG is set
//  3. env (prefix FORGE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("FORGE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: FORGE_ADDR, FORGE_PERSIST_QUEUE_SIZE, ...
	// Map env keys like FORGE_PERSIST_QUEUE_SIZE -> persist_queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("FORGE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "forge_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.PersistQueueSize <= 0 {
		return fmt.Errorf("%w: persist_queue_size must be positive", ErrInvalidConfig)
	}
	if c.SessionIdleTimeoutS <= 0 {
		return fmt.Errorf("%w: session_idle_timeout_s must be positive", ErrInvalidConfig)
	}
	if c.PerSampleDeltaCap <= 0 {
		return fmt.Errorf("%w: per_sample_delta_cap must be positive", ErrInvalidConfig)
	}
	if len(c.StageThresholds) == 0 || !sort.Float64sAreSorted(c.StageThresholds) {
		return fmt.Errorf("%w: stage_thresholds must be a non-empty ascending list", ErrInvalidConfig)
	}
	return nil
}

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

	"github.com/okian/tabletriage/internal/memory"
)

// Environment names.
const (
	EnvPrefix = "TRIAGE_"
	EnvConfig = "TRIAGE_CONFIG"
)

const learningKey = "learning"

// Load builds a Config from the file named by TRIAGE_CONFIG, if any.
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(EnvConfig))
}

// LoadFile builds a Config by layering, low to high:
//  1. defaults (New())
//  2. YAML file at path, when path is not empty
//  3. env vars prefixed TRIAGE_, with "__" separating nested keys
//     (TRIAGE_SURGEON__DEDUPE_SIZE -> surgeon.dedupe_size)
func LoadFile(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if k.Exists(learningKey) {
		lc := memory.DefaultConfig()
		if err := k.UnmarshalWithConf(learningKey, &lc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			return nil, fmt.Errorf("%w: learning: %w", ErrLoadConfig, err)
		}
		cfg.Learning = &lc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

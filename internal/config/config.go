// Package config defines service configuration and its layered loading.
package config

import (
	"fmt"

	"github.com/okian/tabletriage/internal/memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory dossier queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of dossier workers. With one worker the
	// learning state compounds across dossiers.
	WorkerCount int `koanf:"worker_count"`

	Surgeon Surgeon `koanf:"surgeon"`
	Scoring Scoring `koanf:"scoring"`
	Review  Review  `koanf:"review"`

	// Learning is nil when the configuration has no learning block.
	Learning *memory.Config `koanf:"-"`
}

// Surgeon tunes normalization, the gate and dedup.
type Surgeon struct {
	MinContentThreshold float64 `koanf:"min_content_threshold"`
	MaxHeaderRows       int     `koanf:"max_header_rows"`
	MaxHeaderLength     int     `koanf:"max_header_length"`
	MinDataRows         int     `koanf:"min_data_rows"`
	MinTabularity       float64 `koanf:"min_tabularity"`
	Dedupe              bool    `koanf:"dedupe"`
	DedupeSize          int     `koanf:"dedupe_size"`
}

// Scoring tunes the confidence model.
type Scoring struct {
	Base    float64            `koanf:"base"`
	Weights map[string]float64 `koanf:"weights"`
}

// Review bounds the low-confidence review queue.
type Review struct {
	// MaxItems caps tracked tables; the most confident are evicted first.
	MaxItems int `koanf:"max_items"`
	// MaxLimit caps GET /review?limit.
	MaxLimit int `koanf:"max_limit"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		Addr:        ":9080",
		QueueSize:   1024,
		WorkerCount: 1,
		Surgeon: Surgeon{
			MinContentThreshold: 0.30,
			MaxHeaderRows:       4,
			MaxHeaderLength:     100,
			MinDataRows:         1,
			MinTabularity:       0.35,
			Dedupe:              true,
			DedupeSize:          100_000,
		},
		Scoring: Scoring{
			Base:    0.15,
			Weights: map[string]float64{},
		},
		Review: Review{
			MaxItems: 100_000,
			MaxLimit: 100,
		},
	}
}

// Validate checks ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size %d must be positive", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count %d must be positive", ErrInvalidConfig, c.WorkerCount)
	case c.Surgeon.MinContentThreshold < 0 || c.Surgeon.MinContentThreshold > 1:
		return fmt.Errorf("%w: surgeon.min_content_threshold %v not in [0,1]", ErrInvalidConfig, c.Surgeon.MinContentThreshold)
	case c.Surgeon.MaxHeaderRows < 1:
		return fmt.Errorf("%w: surgeon.max_header_rows %d must be positive", ErrInvalidConfig, c.Surgeon.MaxHeaderRows)
	case c.Surgeon.MaxHeaderLength <= 3:
		return fmt.Errorf("%w: surgeon.max_header_length %d too short", ErrInvalidConfig, c.Surgeon.MaxHeaderLength)
	case c.Scoring.Base < 0 || c.Scoring.Base > 1:
		return fmt.Errorf("%w: scoring.base %v not in [0,1]", ErrInvalidConfig, c.Scoring.Base)
	case c.Review.MaxItems < 1 || c.Review.MaxLimit < 1:
		return fmt.Errorf("%w: review limits must be positive", ErrInvalidConfig)
	}
	if c.Learning != nil {
		if err := c.Learning.Validate(); err != nil {
			return fmt.Errorf("%w: learning: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

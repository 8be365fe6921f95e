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
//  1. defaults (New())
//  2. file (YAML) if COURSEFLOW_CONFIG is set
//  3. env (prefix COURSEFLOW_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx

	base := New()

	k := koanf.New(".")

	if path := os.Getenv("COURSEFLOW_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: COURSEFLOW_BIN_LENGTH_M, COURSEFLOW_WORKER_COUNT, ...
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("COURSEFLOW_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "courseflow_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be >= 1", ErrInvalidConfig)
	case c.SegmentQueueSize < 1:
		return fmt.Errorf("%w: segment_queue_size must be >= 1", ErrInvalidConfig)
	case c.BinLengthM <= 0:
		return fmt.Errorf("%w: bin_length_m must be positive", ErrInvalidConfig)
	case c.WindowSec <= 0:
		return fmt.Errorf("%w: window_sec must be positive", ErrInvalidConfig)
	case c.MinSegmentLengthM <= 0:
		return fmt.Errorf("%w: min_segment_length_m must be positive", ErrInvalidConfig)
	case c.ConflictRadiusM <= 0:
		return fmt.Errorf("%w: conflict_radius_m must be positive", ErrInvalidConfig)
	case c.SpatialThresholdM <= 0:
		return fmt.Errorf("%w: spatial_threshold_m must be positive", ErrInvalidConfig)
	case c.StrictMinOverlapSec < 0:
		return fmt.Errorf("%w: strict_min_overlap_sec must not be negative", ErrInvalidConfig)
	case c.SegmentBudgetMS < 0:
		return fmt.Errorf("%w: segment_budget_ms must not be negative", ErrInvalidConfig)
	case c.HotspotLimit < 1:
		return fmt.Errorf("%w: hotspot_limit must be >= 1", ErrInvalidConfig)
	}
	return nil
}

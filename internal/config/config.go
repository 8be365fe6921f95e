// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration for one analysis run.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the optional Prometheus listen address,
	// e.g. ":9090". Empty disables the listener.
	MetricsAddr string `koanf:"metrics_addr"`

	// WorkerCount sets the number of parallel segment workers.
	WorkerCount int `koanf:"worker_count"`

	// SegmentQueueSize bounds the in-memory segment job queue.
	SegmentQueueSize int `koanf:"segment_queue_size"`

	// Input files.
	PaceFile     string `koanf:"pace_file"`
	CatalogFile  string `koanf:"catalog_file"`
	RulebookFile string `koanf:"rulebook_file"`

	// Outputs. ReportFile "-" writes to stdout; AuditDB empty disables
	// the sqlite audit store.
	ReportFile string `koanf:"report_file"`
	AuditDB    string `koanf:"audit_db"`

	// Grid geometry.
	BinLengthM        float64 `koanf:"bin_length_m"`
	WindowSec         int     `koanf:"window_sec"`
	MinSegmentLengthM float64 `koanf:"min_segment_length_m"`

	// Encounter classification. These are operationally tuned; change
	// them only against the golden fixtures.
	ConflictRadiusM     float64 `koanf:"conflict_radius_m"`
	SpatialThresholdM   float64 `koanf:"spatial_threshold_m"`
	StrictMinOverlapSec int     `koanf:"strict_min_overlap_sec"`

	// SegmentBudgetMS is the optional per-segment wall-clock budget.
	// 0 disables the check; overruns coarsen the grid, never abort.
	SegmentBudgetMS int `koanf:"segment_budget_ms"`

	// HotspotLimit caps the ranked hotspot list in the report.
	HotspotLimit int `koanf:"hotspot_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		MetricsAddr:         "",
		WorkerCount:         runtime.NumCPU(),
		SegmentQueueSize:    1024,
		ReportFile:          "-",
		BinLengthM:          100,
		WindowSec:           60,
		MinSegmentLengthM:   50,
		ConflictRadiusM:     50,
		SpatialThresholdM:   100,
		StrictMinOverlapSec: 30,
		SegmentBudgetMS:     0,
		HotspotLimit:        20,
	}
}

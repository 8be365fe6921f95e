// Package types contains the report shapes shared between the engine and
// its consumers. These are the JSON wire types; the engine's internal
// models never serialize directly.
package types

import "time"

// Report is the complete output of one engine run.
type Report struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	RaceStart   time.Time    `json:"race_start"`
	Runners     int          `json:"runners"`
	Segments    []SegmentRow `json:"segments"`
	Hotspots    []HotspotRow `json:"hotspots,omitempty"`

	SegmentsOK      int `json:"segments_ok"`
	SegmentsSkipped int `json:"segments_skipped"`
	SegmentsErrored int `json:"segments_errored"`
}

// SegmentRow is one segment's analysis outcome.
type SegmentRow struct {
	SegmentID string `json:"segment_id"`
	Label     string `json:"label,omitempty"`
	Status    string `json:"status"`
	ErrCode   string `json:"err_code,omitempty"`
	ErrDetail string `json:"err_detail,omitempty"`
	Skip      string `json:"skip_reason,omitempty"`

	RawPassCount    int  `json:"raw_pass_count"`
	StrictPassCount int  `json:"strict_pass_count"`
	PublishedCount  int  `json:"published_count"`
	OverrideApplied bool `json:"override_applied,omitempty"`

	Interactions map[string]int   `json:"interactions,omitempty"`
	Convergences []ConvergenceRow `json:"convergences,omitempty"`
	Zones        []ZoneRow        `json:"conflict_zones,omitempty"`
	CalcPath     string           `json:"calc_path,omitempty"`

	Bins []BinRow `json:"bins,omitempty"`

	MeanCrowdDensity float64 `json:"mean_crowd_density"`
	P95CrowdDensity  float64 `json:"p95_crowd_density"`
}

// ConvergenceRow is one located convergence point.
type ConvergenceRow struct {
	AtM float64 `json:"at_m"`
}

// ZoneRow is one conflict zone in segment-local metres.
type ZoneRow struct {
	CenterM float64 `json:"center_m"`
	FromM   float64 `json:"from_m"`
	ToM     float64 `json:"to_m"`
}

// BinRow is one spatial-temporal cell.
type BinRow struct {
	DistIndex    int       `json:"dist_index"`
	TimeIndex    int       `json:"time_index"`
	FromM        float64   `json:"from_m"`
	ToM          float64   `json:"to_m"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	Status       string    `json:"status"`
	Occupancy    int       `json:"occupancy"`
	ArealDensity float64   `json:"areal_density"`
	CrowdDensity float64   `json:"crowd_density"`
	FlowRate     float64   `json:"flow_rate"`
	LOS          string    `json:"los"`
	Severity     string    `json:"severity,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// HotspotRow is one ranked hotspot from the flagged-bin index.
type HotspotRow struct {
	Rank         int     `json:"rank"`
	SegmentID    string  `json:"segment_id"`
	DistIndex    int     `json:"dist_index"`
	TimeIndex    int     `json:"time_index"`
	CrowdDensity float64 `json:"crowd_density"`
	ArealDensity float64 `json:"areal_density"`
	LOS          string  `json:"los"`
	Severity     string  `json:"severity"`
	Reason       string  `json:"reason,omitempty"`
}

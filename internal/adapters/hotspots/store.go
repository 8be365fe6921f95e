// Package hotspots maintains an ordered index of flagged bins so the report
// can surface the worst cells of the course without re-sorting everything at
// the end of a run.
package hotspots

import "context"

// Entry is one ranked hotspot: a flagged bin plus the density that ranks it.
type Entry struct {
	Rank         int
	Key          string // segment/distIndex/timeIndex
	SegmentID    string
	DistIndex    int
	TimeIndex    int
	CrowdDensity float64
	ArealDensity float64
	LOS          string
	Severity     string
	Reason       string
}

// Store collects flagged bins and serves them ranked by crowd density.
type Store interface {
	// Record indexes a flagged bin. Re-recording a key keeps the denser
	// observation. Returns true if the store updated.
	Record(ctx context.Context, e Entry) (bool, error)

	// TopN returns the n densest hotspots, ranked. Ties share a rank.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of hotspots tracked.
	Count(ctx context.Context) int
}

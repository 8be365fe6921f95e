package model

import "time"

// InteractionKind tags how two runners interact on a shared segment.
type InteractionKind string

const (
	InteractionOvertake    InteractionKind = "overtake"
	InteractionCounterflow InteractionKind = "counterflow"
	InteractionCoPresence  InteractionKind = "co_presence"
)

// CalcPath names which calculation path a conflict zone was routed through.
type CalcPath string

const (
	PathDirect CalcPath = "direct"
	PathBinned CalcPath = "binned"
)

// TimeRange is a half-open window on the shared race clock. Zero on the race
// clock is the configured race start; event guns are offsets from it.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End-Start, never negative.
func (t TimeRange) Duration() time.Duration {
	if t.End.Before(t.Start) {
		return 0
	}
	return t.End.Sub(t.Start)
}

// Intersect returns the overlap of two windows and whether it is non-empty.
func (t TimeRange) Intersect(o TimeRange) (TimeRange, bool) {
	start := t.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := t.End
	if o.End.Before(end) {
		end = o.End
	}
	if !end.After(start) {
		return TimeRange{}, false
	}
	return TimeRange{Start: start, End: end}, true
}

// Encounter is a candidate pairwise interaction between a runner of EventA
// and a runner of EventB inside one segment. Derived, never stored.
type Encounter struct {
	SegmentID string
	BibA      string
	BibB      string
	WindowA   TimeRange // A inside the segment
	WindowB   TimeRange // B inside the segment
	Overlap   TimeRange // intersection of WindowA and WindowB
	Kind      InteractionKind
	RawPass   bool
	StrictPass bool
}

// ConvergencePoint is the segment-local distance (metres from segment start)
// where the relative ordering of two pace distributions flips.
type ConvergencePoint struct {
	SegmentID string
	AtM       float64
}

// ConflictZone bounds a convergence point: point ± radius, clamped to the
// segment, never extended past either end.
type ConflictZone struct {
	SegmentID string
	CenterM   float64
	FromM     float64
	ToM       float64
}

// LengthM returns the clamped zone length in metres.
func (z ConflictZone) LengthM() float64 {
	return z.ToM - z.FromM
}

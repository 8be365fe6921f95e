package model

// SegmentStatus reports how a segment's computation ended. A segment with no
// interactions is still status ok; errors never silently vanish from the
// report.
type SegmentStatus string

const (
	SegmentOK      SegmentStatus = "ok"
	SegmentError   SegmentStatus = "error"
	SegmentSkipped SegmentStatus = "skipped"
)

// SkipReason explains a skipped segment.
type SkipReason string

const (
	SkipShortSegment SkipReason = "short_segment"
	SkipSameEvent    SkipReason = "same_event"
)

// SegmentResult is the complete per-segment output of one engine run.
type SegmentResult struct {
	SegmentID string
	Status    SegmentStatus
	ErrCode   string     // error taxonomy code when Status == SegmentError
	ErrDetail string     // human-readable detail
	Skip      SkipReason // set when Status == SegmentSkipped

	RawPassCount    int
	StrictPassCount int
	PublishedCount  int
	OverrideApplied bool

	Interactions map[InteractionKind]int
	Convergences []ConvergencePoint
	Zones        []ConflictZone
	Path         CalcPath

	Bins []Bin

	// Density summaries over computed bins.
	MeanCrowdDensity float64
	P95CrowdDensity  float64
}

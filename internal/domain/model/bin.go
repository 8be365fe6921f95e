package model

// BinStatus distinguishes a bin that computed (possibly empty) from one that
// failed to compute. Downstream consumers must be able to tell the two apart.
type BinStatus string

const (
	BinOK     BinStatus = "ok"
	BinNoData BinStatus = "no_data"
)

// LOSBand is a Level-of-Service band, A (most comfortable) through F.
type LOSBand string

const (
	LOSA LOSBand = "A"
	LOSB LOSBand = "B"
	LOSC LOSBand = "C"
	LOSD LOSBand = "D"
	LOSE LOSBand = "E"
	LOSF LOSBand = "F"
)

// LOSBands lists all bands best to worst. Threshold tables must supply one
// upper bound per band except the last, which is unbounded.
var LOSBands = []LOSBand{LOSA, LOSB, LOSC, LOSD, LOSE, LOSF}

// FlagSeverity is the operational severity attached to a bin.
type FlagSeverity string

const (
	SeverityNone     FlagSeverity = "none"
	SeverityWatch    FlagSeverity = "watch"
	SeverityCritical FlagSeverity = "critical"
)

// FlagReason records which criterion fired: density, rate, or both.
type FlagReason string

const (
	ReasonNone        FlagReason = ""
	ReasonDensity     FlagReason = "density"
	ReasonRate        FlagReason = "rate"
	ReasonDensityRate FlagReason = "density+rate"
)

// Bin is one (segment, distance-sub-range, time-window) cell. Write-once:
// generated fresh each run and only aggregated afterwards.
type Bin struct {
	SegmentID string
	DistIndex int
	TimeIndex int
	FromM     float64 // segment-local
	ToM       float64
	Window    TimeRange
	Status    BinStatus
	Occupancy int
	// ArealDensity is runners per square metre.
	ArealDensity float64
	// CrowdDensity is runners per metre of course.
	CrowdDensity float64
	// FlowRate is runners per metre of width per minute, normalized at the
	// binning boundary. Per-second rates never leave the binning engine.
	FlowRate float64
	LOS      LOSBand
	Severity FlagSeverity
	Reason   FlagReason
}

// LengthM returns the bin's distance span in metres.
func (b Bin) LengthM() float64 {
	return b.ToM - b.FromM
}

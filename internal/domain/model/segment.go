package model

// Direction describes permitted flow on a segment.
type Direction string

const (
	DirectionUni Direction = "uni"
	DirectionBi  Direction = "bi"
)

// Valid reports whether d is a known direction value.
func (d Direction) Valid() bool {
	return d == DirectionUni || d == DirectionBi
}

// DistanceRange is a per-event [from, to] span in course kilometres.
type DistanceRange struct {
	FromKm float64
	ToKm   float64
}

// LengthM returns the span length in metres.
func (r DistanceRange) LengthM() float64 {
	return (r.ToKm - r.FromKm) * 1000
}

// Contains reports whether km falls inside the range (inclusive).
func (r DistanceRange) Contains(km float64) bool {
	return km >= r.FromKm && km <= r.ToKm
}

// Segment is a static piece of course shared by a pair of events. The two
// events traverse the same physical stretch, each in its own course frame.
type Segment struct {
	ID        string
	Label     string
	EventA    EventID
	EventB    EventID
	RangeA    DistanceRange // EventA's course frame
	RangeB    DistanceRange // EventB's course frame
	WidthM    float64
	Direction Direction
	// Opposed marks EventB as traversing the stretch against EventA's
	// direction of travel. Only meaningful on bidirectional segments.
	Opposed bool
	Schema  string // rulebook schema key; empty resolves to the global default
}

// SameEvent reports whether the segment services a single event, in which
// case no cross-event overlap is computed.
func (s Segment) SameEvent() bool {
	return s.EventA == s.EventB
}

// LengthM returns the physical segment length in metres. RangeA and RangeB
// describe the same stretch of road, so RangeA is authoritative.
func (s Segment) LengthM() float64 {
	return s.RangeA.LengthM()
}

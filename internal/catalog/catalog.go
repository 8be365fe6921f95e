// Package catalog loads the static race inputs: the event roster with gun
// times, the shared-segment catalog, and the per-runner pace curves. All of
// it is immutable once loaded; the engine only ever reads from it.
package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/raceops/courseflow/internal/domain/model"
)

// Catalog is the loaded race geometry: events with their gun instants and
// the shared segments between event pairs.
type Catalog struct {
	RaceStart time.Time
	guns      map[model.EventID]time.Time
	segments  []model.Segment
}

// Gun returns the absolute gun instant for an event.
func (c *Catalog) Gun(event model.EventID) (time.Time, bool) {
	t, ok := c.guns[event]
	return t, ok
}

// Events returns the known event IDs, sorted.
func (c *Catalog) Events() []model.EventID {
	out := make([]model.EventID, 0, len(c.guns))
	for id := range c.guns {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Segments returns the segment list in file order.
func (c *Catalog) Segments() []model.Segment {
	return c.segments
}

// File-shape structs. Kept separate from model types so the wire format can
// evolve without touching the domain.
//
// race_start decodes from either form the YAML parser produces: a native
// timestamp for a bare RFC3339 value, or a string (quoted values) through
// the decoder's text-unmarshaller hook.
type catalogFile struct {
	RaceStart time.Time             `koanf:"race_start"`
	Events    map[string]eventEntry `koanf:"events"`
	Segments  []segmentEntry        `koanf:"segments"`
}

type eventEntry struct {
	GunOffsetSec int `koanf:"gun_offset_sec"`
}

type segmentEntry struct {
	ID        string     `koanf:"id"`
	Label     string     `koanf:"label"`
	EventA    string     `koanf:"event_a"`
	EventB    string     `koanf:"event_b"`
	RangeA    rangeEntry `koanf:"range_a"`
	RangeB    rangeEntry `koanf:"range_b"`
	WidthM    float64    `koanf:"width_m"`
	Direction string     `koanf:"direction"`
	Opposed   bool       `koanf:"opposed"`
	Schema    string     `koanf:"schema"`
}

type rangeEntry struct {
	FromKm float64 `koanf:"from_km"`
	ToKm   float64 `koanf:"to_km"`
}

// LoadFile reads and validates a segment catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadCatalog, err)
	}

	var f catalogFile
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadCatalog, err)
	}
	return build(f)
}

func build(f catalogFile) (*Catalog, error) {
	if f.RaceStart.IsZero() {
		return nil, fmt.Errorf("%w: race_start is required", ErrLoadCatalog)
	}
	start := f.RaceStart
	if len(f.Events) == 0 {
		return nil, fmt.Errorf("%w: no events defined", ErrLoadCatalog)
	}

	guns := make(map[model.EventID]time.Time, len(f.Events))
	for name, e := range f.Events {
		if e.GunOffsetSec < 0 {
			return nil, fmt.Errorf("%w: event %q gun_offset_sec must not be negative", ErrLoadCatalog, name)
		}
		guns[model.EventID(name)] = start.Add(time.Duration(e.GunOffsetSec) * time.Second)
	}

	segments := make([]model.Segment, 0, len(f.Segments))
	seen := make(map[string]struct{}, len(f.Segments))
	for i, s := range f.Segments {
		seg, err := buildSegment(s, guns)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		if _, dup := seen[seg.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate segment id %q", ErrBadSegment, seg.ID)
		}
		seen[seg.ID] = struct{}{}
		segments = append(segments, seg)
	}

	return &Catalog{RaceStart: start, guns: guns, segments: segments}, nil
}

func buildSegment(s segmentEntry, guns map[model.EventID]time.Time) (model.Segment, error) {
	var zero model.Segment
	if s.ID == "" {
		return zero, fmt.Errorf("%w: id is required", ErrBadSegment)
	}
	a, b := model.EventID(s.EventA), model.EventID(s.EventB)
	if _, ok := guns[a]; !ok {
		return zero, fmt.Errorf("%w: %q (segment %s)", ErrUnknownEvent, s.EventA, s.ID)
	}
	if _, ok := guns[b]; !ok {
		return zero, fmt.Errorf("%w: %q (segment %s)", ErrUnknownEvent, s.EventB, s.ID)
	}
	if s.RangeA.ToKm <= s.RangeA.FromKm || s.RangeB.ToKm <= s.RangeB.FromKm {
		return zero, fmt.Errorf("%w: %s: ranges must have positive length", ErrBadSegment, s.ID)
	}
	if s.WidthM <= 0 {
		return zero, fmt.Errorf("%w: %s: width_m must be positive", ErrBadSegment, s.ID)
	}
	dir := model.Direction(s.Direction)
	if !dir.Valid() {
		return zero, fmt.Errorf("%w: %s: direction %q", ErrBadSegment, s.ID, s.Direction)
	}
	if s.Opposed && dir != model.DirectionBi {
		return zero, fmt.Errorf("%w: %s: opposed requires direction bi", ErrBadSegment, s.ID)
	}
	return model.Segment{
		ID:        s.ID,
		Label:     s.Label,
		EventA:    a,
		EventB:    b,
		RangeA:    model.DistanceRange{FromKm: s.RangeA.FromKm, ToKm: s.RangeA.ToKm},
		RangeB:    model.DistanceRange{FromKm: s.RangeB.FromKm, ToKm: s.RangeB.ToKm},
		WidthM:    s.WidthM,
		Direction: dir,
		Opposed:   s.Opposed,
		Schema:    s.Schema,
	}, nil
}

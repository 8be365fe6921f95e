// Package overlap enumerates pairwise encounters on a segment shared by two
// events, locates convergence points, and classifies raw and strict passes.
//
// All spatial work is done in segment-local metres measured from event A's
// entry to the stretch. Event B's positions are mapped into that frame,
// reversed when the segment is opposed. Convergence points come from the
// crossing of the two events' mean cumulative-time curves; each point spawns
// a conflict zone clamped to the segment, never extended past it.
package overlap

import (
	"context"
	"math"
	"time"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/domain/pace"
	"github.com/raceops/courseflow/internal/domain/pathrule"
	"github.com/raceops/courseflow/pkg/logger"
	"github.com/raceops/courseflow/pkg/metrics"
)

// Default detector parameters. All operationally tuned and overridable via
// options; the defaults match the current season's run configuration.
const (
	defaultConflictRadiusM   = 50.0
	defaultSpatialThresholdM = 100.0
	defaultStrictMinOverlap  = 30 * time.Second
	defaultBinLengthM        = 100.0

	// convergence root scanning
	scanStepM        = 25.0
	rootMergeM       = 1.0
	bisectIterations = 48
)

// Detector finds and classifies encounters on one segment at a time. It is
// stateless across segments and safe for concurrent use.
type Detector struct {
	conflictRadiusM   float64
	spatialThresholdM float64
	strictMinOverlap  time.Duration
	binLengthM        float64
	logger            logger.Logger
}

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithConflictRadius sets the conflict-zone radius in metres.
func WithConflictRadius(m float64) Option {
	return func(d *Detector) {
		if m > 0 {
			d.conflictRadiusM = m
		}
	}
}

// WithSpatialThreshold sets the direct/binned routing threshold in metres.
func WithSpatialThreshold(m float64) Option {
	return func(d *Detector) {
		if m > 0 {
			d.spatialThresholdM = m
		}
	}
}

// WithStrictMinOverlap sets the minimum temporal overlap for a strict pass.
func WithStrictMinOverlap(dur time.Duration) Option {
	return func(d *Detector) {
		if dur > 0 {
			d.strictMinOverlap = dur
		}
	}
}

// WithBinLength sets the distance-bin length used by the binned path.
func WithBinLength(m float64) Option {
	return func(d *Detector) {
		if m > 0 {
			d.binLengthM = m
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector creates a Detector with the given options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		conflictRadiusM:   defaultConflictRadiusM,
		spatialThresholdM: defaultSpatialThresholdM,
		strictMinOverlap:  defaultStrictMinOverlap,
		binLengthM:        defaultBinLengthM,
		logger:            logger.Get().Named("overlap"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result is the per-segment detector output.
type Result struct {
	Encounters   []model.Encounter
	Convergences []model.ConvergencePoint
	Zones        []model.ConflictZone
	Path         model.CalcPath
	RawCount     int
	StrictCount  int
	Interactions map[model.InteractionKind]int
}

// side pairs a schedule with its segment window and local-frame mapping.
type side struct {
	sched  *pace.Schedule
	window model.TimeRange
}

// Analyze enumerates and classifies every candidate encounter on the
// segment. A segment where nobody meets is a valid zero-interaction result,
// not an error.
func (d *Detector) Analyze(ctx context.Context, seg model.Segment, schedsA, schedsB []*pace.Schedule) (Result, error) {
	res := Result{
		Path:         model.PathDirect,
		Interactions: make(map[model.InteractionKind]int),
	}

	sidesA := d.segmentWindows(schedsA, seg.RangeA)
	sidesB := d.segmentWindows(schedsB, seg.RangeB)
	if len(sidesA) == 0 || len(sidesB) == 0 {
		// Nobody from one event reaches the stretch: no interaction.
		return res, nil
	}

	res.Convergences = d.convergencePoints(seg, schedsA, schedsB)
	for _, cp := range res.Convergences {
		res.Zones = append(res.Zones, d.zoneFor(seg, cp))
		metrics.RecordConvergencePoint()
	}

	// One routing decision per segment, from the single shared rule.
	res.Path = pathrule.Choose(d.longestZoneM(res.Zones), d.spatialThresholdM)
	metrics.RecordPathRouted(string(res.Path))

	for _, a := range sidesA {
		for _, b := range sidesB {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			overlapWin, ok := a.window.Intersect(b.window)
			if !ok {
				continue
			}
			enc := d.classify(seg, a, b, overlapWin, res.Zones, res.Path)
			res.Encounters = append(res.Encounters, enc)
			res.RawCount++
			metrics.RecordRawPass()
			if enc.StrictPass {
				res.StrictCount++
				metrics.RecordStrictPass()
			}
			res.Interactions[enc.Kind]++
			metrics.RecordEncounter(string(enc.Kind))
		}
	}

	d.logger.Debug(ctx, "segment analyzed",
		logger.String("segment", seg.ID),
		logger.Int("encounters", len(res.Encounters)),
		logger.Int("convergences", len(res.Convergences)),
		logger.String("path", string(res.Path)),
	)
	return res, nil
}

// segmentWindows computes entry/exit windows, dropping runners whose race
// never reaches the stretch.
func (d *Detector) segmentWindows(scheds []*pace.Schedule, rng model.DistanceRange) []side {
	out := make([]side, 0, len(scheds))
	for _, s := range scheds {
		w, err := s.EntryExit(rng)
		if err != nil {
			continue
		}
		out = append(out, side{sched: s, window: w})
	}
	return out
}

// localA maps an event-A schedule position at t into segment-local metres.
func localA(seg model.Segment, s *pace.Schedule, t time.Time) (float64, bool) {
	km, err := s.PositionAt(t)
	if err != nil {
		return 0, false
	}
	return (km - seg.RangeA.FromKm) * 1000, true
}

// localB maps an event-B schedule position at t into event A's segment-local
// frame, reversing when the segment is opposed.
func localB(seg model.Segment, s *pace.Schedule, t time.Time) (float64, bool) {
	km, err := s.PositionAt(t)
	if err != nil {
		return 0, false
	}
	if seg.Opposed {
		return (seg.RangeB.ToKm - km) * 1000, true
	}
	return (km - seg.RangeB.FromKm) * 1000, true
}

// classify tags one encounter and applies the raw and strict tests.
func (d *Detector) classify(seg model.Segment, a, b side, overlapWin model.TimeRange, zones []model.ConflictZone, path model.CalcPath) model.Encounter {
	enc := model.Encounter{
		SegmentID: seg.ID,
		BibA:      a.sched.Runner().Bib,
		BibB:      b.sched.Runner().Bib,
		WindowA:   a.window,
		WindowB:   b.window,
		Overlap:   overlapWin,
		RawPass:   true, // any temporal intersection is a raw pass
	}

	meetM, flips := d.meetingPoint(seg, a, b, overlapWin)
	switch {
	case seg.Opposed:
		enc.Kind = model.InteractionCounterflow
	case flips:
		enc.Kind = model.InteractionOvertake
	default:
		enc.Kind = model.InteractionCoPresence
	}

	if overlapWin.Duration() < d.strictMinOverlap {
		return enc
	}
	if !flips && !seg.Opposed {
		// Parallel flow with no order change never tightens to strict.
		return enc
	}
	enc.StrictPass = d.insideZone(meetM, zones, path)
	return enc
}

// meetingPoint solves for the segment-local distance where the pair's gap
// curve crosses zero inside the overlap window. Returns the crossing point
// and whether the relative order actually flips. Without a flip the point
// falls back to the position at the window midpoint.
func (d *Detector) meetingPoint(seg model.Segment, a, b side, win model.TimeRange) (float64, bool) {
	gap := func(t time.Time) (float64, bool) {
		pa, oka := localA(seg, a.sched, t)
		pb, okb := localB(seg, b.sched, t)
		if !oka || !okb {
			return 0, false
		}
		return pa - pb, true
	}

	g0, ok0 := gap(win.Start)
	g1, ok1 := gap(win.End)
	mid := win.Start.Add(win.Duration() / 2)
	if !ok0 || !ok1 {
		if pm, okm := localA(seg, a.sched, mid); okm {
			return pm, false
		}
		return 0, false
	}
	if g0 == 0 {
		pm, _ := localA(seg, a.sched, win.Start)
		return pm, true
	}
	if g1 == 0 || (g0 > 0) != (g1 > 0) {
		lo, hi := win.Start, win.End
		for i := 0; i < bisectIterations; i++ {
			m := lo.Add(hi.Sub(lo) / 2)
			gm, okm := gap(m)
			if !okm {
				break
			}
			if (gm > 0) == (g0 > 0) {
				lo = m
			} else {
				hi = m
			}
		}
		cross := lo.Add(hi.Sub(lo) / 2)
		if pm, okm := localA(seg, a.sched, cross); okm {
			return pm, true
		}
		return 0, true
	}
	pm, _ := localA(seg, a.sched, mid)
	return pm, false
}

// insideZone answers the strict-pass spatial test for both calculation
// paths. On the direct path the meeting point itself must fall inside a
// zone; on the binned path the containing distance bin must intersect one.
func (d *Detector) insideZone(meetM float64, zones []model.ConflictZone, path model.CalcPath) bool {
	if len(zones) == 0 {
		return false
	}
	lo, hi := meetM, meetM
	if path == model.PathBinned {
		lo = math.Floor(meetM/d.binLengthM) * d.binLengthM
		hi = lo + d.binLengthM
	}
	for _, z := range zones {
		if hi >= z.FromM && lo <= z.ToM {
			return true
		}
	}
	return false
}

// convergencePoints locates all crossings of the two events' mean
// cumulative-time curves along the segment. Roots outside the segment are
// discarded; they are never artificially pulled to the segment start.
func (d *Detector) convergencePoints(seg model.Segment, schedsA, schedsB []*pace.Schedule) []model.ConvergencePoint {
	lengthM := seg.LengthM()
	if lengthM <= 0 {
		return nil
	}

	gap := func(sM float64) (float64, bool) {
		ta, okA := meanArrival(schedsA, seg.RangeA.FromKm+sM/1000)
		var tb float64
		var okB bool
		if seg.Opposed {
			tb, okB = meanArrival(schedsB, seg.RangeB.ToKm-sM/1000)
		} else {
			tb, okB = meanArrival(schedsB, seg.RangeB.FromKm+sM/1000)
		}
		if !okA || !okB {
			return 0, false
		}
		return ta - tb, true
	}

	steps := int(math.Ceil(lengthM / scanStepM))
	if steps < 4 {
		steps = 4
	}
	stepM := lengthM / float64(steps)

	var points []model.ConvergencePoint
	record := func(root float64) {
		if root < 0 || root > lengthM {
			return
		}
		if len(points) == 0 || root-points[len(points)-1].AtM > rootMergeM {
			points = append(points, model.ConvergencePoint{SegmentID: seg.ID, AtM: root})
		}
	}

	prevG, prevOK := gap(0)
	prevS := 0.0
	if prevOK && prevG == 0 {
		record(0)
	}
	for i := 1; i <= steps; i++ {
		sM := float64(i) * stepM
		g, ok := gap(sM)
		switch {
		case !prevOK || !ok:
			// Curve undefined on one side: no bracket here.
		case g == 0:
			// The sample landed exactly on the crossing.
			record(sM)
		case prevG != 0 && (prevG > 0) != (g > 0):
			record(bisectRoot(gap, prevS, sM, prevG))
		}
		prevG, prevOK, prevS = g, ok, sM
	}
	return points
}

// bisectRoot refines a crossing of f bracketed by [lo, hi]. The caller
// guarantees a genuine sign change: fLo is nonzero and f(hi) has the
// opposite sign.
func bisectRoot(f func(float64) (float64, bool), lo, hi, fLo float64) float64 {
	if fLo == 0 {
		return lo
	}
	for i := 0; i < bisectIterations; i++ {
		m := (lo + hi) / 2
		fm, ok := f(m)
		if !ok {
			break
		}
		if fm == 0 {
			return m
		}
		if (fm > 0) == (fLo > 0) {
			lo = m
		} else {
			hi = m
		}
	}
	return (lo + hi) / 2
}

// meanArrival averages the absolute arrival time at a course distance over
// all schedules that reach it, in seconds on the race clock.
func meanArrival(scheds []*pace.Schedule, km float64) (float64, bool) {
	sum := 0.0
	n := 0
	for _, s := range scheds {
		at, err := s.TimeAt(km)
		if err != nil {
			continue
		}
		sum += float64(at.UnixNano()) / float64(time.Second)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// zoneFor bounds a convergence point into its conflict zone, clamped to the
// segment ends.
func (d *Detector) zoneFor(seg model.Segment, cp model.ConvergencePoint) model.ConflictZone {
	from := cp.AtM - d.conflictRadiusM
	to := cp.AtM + d.conflictRadiusM
	if from < 0 {
		from = 0
	}
	if max := seg.LengthM(); to > max {
		to = max
	}
	return model.ConflictZone{SegmentID: seg.ID, CenterM: cp.AtM, FromM: from, ToM: to}
}

// longestZoneM returns the longest clamped zone length, 0 with no zones.
func (d *Detector) longestZoneM(zones []model.ConflictZone) float64 {
	longest := 0.0
	for _, z := range zones {
		if l := z.LengthM(); l > longest {
			longest = l
		}
	}
	return longest
}

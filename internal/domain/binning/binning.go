// Package binning discretizes segments into distance × time bins and
// accumulates occupancy, density, and flow per bin.
//
// Occupancy comes from the same position model the overlap detector uses, so
// the two components always agree on who is physically where. Flow rate is
// accumulated in runners per second and converted to runners per metre of
// width per minute in exactly one place, at the bin boundary; per-second
// rates never leak out of this package.
package binning

import (
	"context"
	"math"
	"time"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/domain/pace"
	"github.com/raceops/courseflow/pkg/logger"
	"github.com/raceops/courseflow/pkg/metrics"
)

// Default engine parameters, all overridable via options.
const (
	defaultBinLengthM        = 100.0
	defaultWindow            = 60 * time.Second
	defaultMinSegmentLengthM = 50.0

	coarsenFactor    = 2
	secondsPerMinute = 60.0
)

// Engine computes the spatial-temporal grid for one segment at a time.
// Stateless across segments and safe for concurrent use.
type Engine struct {
	binLengthM        float64
	window            time.Duration
	minSegmentLengthM float64
	budget            time.Duration // 0 disables the wall-clock check
	now               func() time.Time
	logger            logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBinLength sets the distance bin length in metres.
func WithBinLength(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.binLengthM = m
		}
	}
}

// WithWindow sets the time window duration.
func WithWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithMinSegmentLength sets the minimum length below which a segment is
// flagged short and excluded from evaluation.
func WithMinSegmentLength(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.minSegmentLengthM = m
		}
	}
}

// WithBudget sets the optional wall-clock budget for one segment's grid.
func WithBudget(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.budget = d
		}
	}
}

// WithClock overrides the time source used by the budget check.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		binLengthM:        defaultBinLengthM,
		window:            defaultWindow,
		minSegmentLengthM: defaultMinSegmentLengthM,
		now:               time.Now,
		logger:            logger.Get().Named("binning"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the grid for one segment.
type Result struct {
	Bins         []model.Bin
	ShortSegment bool
	Coarsened    bool
	// Effective grid parameters after any coarsening.
	BinLengthM float64
	Window     time.Duration
}

// Compute builds the grid for a segment over all runners of both events.
// A short segment is flagged and excluded, not zero-filled; a bin with no
// runners is a valid occupancy=0 bin.
func (e *Engine) Compute(ctx context.Context, seg model.Segment, schedsA, schedsB []*pace.Schedule) (Result, error) {
	if seg.LengthM() < e.minSegmentLengthM {
		e.logger.Warn(ctx, "segment below minimum length, excluded from evaluation",
			logger.String("segment", seg.ID),
			logger.Float64("length_m", seg.LengthM()),
		)
		metrics.RecordSegmentSkipped(string(model.SkipShortSegment))
		return Result{ShortSegment: true, BinLengthM: e.binLengthM, Window: e.window}, nil
	}

	started := e.now()
	res, overrun, err := e.grid(ctx, seg, schedsA, schedsB, e.binLengthM, e.window, started, false)
	if err != nil {
		return Result{}, err
	}
	if overrun {
		// Budget blown: coarsen rather than abort, and say so.
		metrics.RecordCoarseningFallback()
		e.logger.Warn(ctx, "wall-clock budget exceeded, coarsening grid",
			logger.String("segment", seg.ID),
			logger.Duration("budget", e.budget),
			logger.Float64("bin_length_m", e.binLengthM*coarsenFactor),
		)
		res, _, err = e.grid(ctx, seg, schedsA, schedsB,
			e.binLengthM*coarsenFactor, e.window*coarsenFactor, e.now(), true)
		if err != nil {
			return Result{}, err
		}
		res.Coarsened = true
	}
	return res, nil
}

// grid computes one grid pass. When final is true and the budget still
// expires, remaining bins are emitted as no_data instead of being dropped.
func (e *Engine) grid(ctx context.Context, seg model.Segment, schedsA, schedsB []*pace.Schedule, binLengthM float64, window time.Duration, started time.Time, final bool) (Result, bool, error) {
	res := Result{BinLengthM: binLengthM, Window: window}

	extent, ok := e.timeExtent(seg, schedsA, schedsB)
	if !ok {
		// Nobody ever occupies the stretch: an empty grid, not an error.
		return res, false, nil
	}

	lengthM := seg.LengthM()
	distBins := int(math.Ceil(lengthM / binLengthM))
	gridStart := extent.Start.Truncate(window)
	timeBins := int(math.Ceil(extent.End.Sub(gridStart).Seconds() / window.Seconds()))

	exhausted := false
	for ti := 0; ti < timeBins; ti++ {
		win := model.TimeRange{
			Start: gridStart.Add(time.Duration(ti) * window),
			End:   gridStart.Add(time.Duration(ti+1) * window),
		}
		for di := 0; di < distBins; di++ {
			if err := ctx.Err(); err != nil {
				return Result{}, false, err
			}
			fromM := float64(di) * binLengthM
			toM := math.Min(fromM+binLengthM, lengthM)
			bin := model.Bin{
				SegmentID: seg.ID,
				DistIndex: di,
				TimeIndex: ti,
				FromM:     fromM,
				ToM:       toM,
				Window:    win,
				Status:    model.BinOK,
				LOS:       model.LOSA,
			}

			if exhausted {
				bin.Status = model.BinNoData
				metrics.RecordBinNoData()
				res.Bins = append(res.Bins, bin)
				continue
			}

			e.fill(&bin, seg, schedsA, schedsB)
			metrics.RecordBinComputed()
			res.Bins = append(res.Bins, bin)

			if e.budget > 0 && e.now().Sub(started) > e.budget {
				if !final {
					return res, true, nil
				}
				// Already coarsened once; mark the rest distinguishable
				// instead of silently zero-filling them.
				exhausted = true
				e.logger.Warn(ctx, "budget exceeded after coarsening, remaining bins marked no_data",
					logger.String("segment", seg.ID),
				)
			}
		}
	}
	return res, false, nil
}

// timeExtent returns the union of both events' windows on the stretch.
func (e *Engine) timeExtent(seg model.Segment, schedsA, schedsB []*pace.Schedule) (model.TimeRange, bool) {
	var extent model.TimeRange
	found := false
	add := func(scheds []*pace.Schedule, rng model.DistanceRange) {
		for _, s := range scheds {
			w, err := s.EntryExit(rng)
			if err != nil {
				continue
			}
			if !found {
				extent = w
				found = true
				continue
			}
			if w.Start.Before(extent.Start) {
				extent.Start = w.Start
			}
			if w.End.After(extent.End) {
				extent.End = w.End
			}
		}
	}
	add(schedsA, seg.RangeA)
	add(schedsB, seg.RangeB)
	return extent, found
}

// fill computes occupancy, densities, and flow for one bin.
func (e *Engine) fill(bin *model.Bin, seg model.Segment, schedsA, schedsB []*pace.Schedule) {
	rngA := kmRange(seg.RangeA, bin.FromM, bin.ToM, false)
	rngB := kmRange(seg.RangeB, bin.FromM, bin.ToM, seg.Opposed)
	mid := bin.Window.Start.Add(bin.Window.Duration() / 2)

	entered := 0
	count := func(scheds []*pace.Schedule, rng model.DistanceRange, entryKm float64) {
		for _, s := range scheds {
			if s.Inside(mid, rng) {
				bin.Occupancy++
			}
			if at, err := s.TimeAt(entryKm); err == nil {
				if !at.Before(bin.Window.Start) && at.Before(bin.Window.End) {
					entered++
				}
			}
		}
	}
	// A runner's own course km always increases, so it enters any mapped
	// span at the span's lower bound, opposed or not.
	count(schedsA, rngA, rngA.FromKm)
	count(schedsB, rngB, rngB.FromKm)

	lengthM := bin.LengthM()
	if lengthM > 0 {
		bin.CrowdDensity = float64(bin.Occupancy) / lengthM
		if seg.WidthM > 0 {
			bin.ArealDensity = float64(bin.Occupancy) / (lengthM * seg.WidthM)
		}
	}

	// Unit normalization happens here and only here: runners/second
	// accumulated above becomes runners per metre of width per minute.
	if winSec := bin.Window.Duration().Seconds(); winSec > 0 && seg.WidthM > 0 {
		perSecond := float64(entered) / winSec
		bin.FlowRate = perSecond / seg.WidthM * secondsPerMinute
	}
}

// kmRange maps a segment-local metre span into an event's course frame.
func kmRange(rng model.DistanceRange, fromM, toM float64, opposed bool) model.DistanceRange {
	if opposed {
		return model.DistanceRange{
			FromKm: rng.ToKm - toM/1000,
			ToKm:   rng.ToKm - fromM/1000,
		}
	}
	return model.DistanceRange{
		FromKm: rng.FromKm + fromM/1000,
		ToKm:   rng.FromKm + toM/1000,
	}
}

// Package pace implements the runner position model: where a runner is at a
// given time and when a runner reaches a given course distance.
//
// A Schedule is a pure function of (runner, event gun); it carries no global
// state. Both directions are monotonic for a monotonic pace curve, so the
// forward and inverse interpolants are each fit once at construction.
package pace

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/interp"

	"github.com/raceops/courseflow/internal/domain/model"
)

// Schedule answers position/time queries for one runner on the shared race
// clock. The race clock's zero is the run's configured anchor; event guns
// are absolute instants on it.
type Schedule struct {
	runner model.Runner
	start  time.Time // gun + runner start offset

	fwd interp.PiecewiseLinear // km -> elapsed seconds since start
	inv interp.PiecewiseLinear // elapsed seconds since start -> km

	minKm, maxKm float64
	total        time.Duration
}

// NewSchedule validates the runner's pace curve and fits both interpolants.
// The gun is the absolute start instant of the runner's event.
func NewSchedule(r model.Runner, gun time.Time) (*Schedule, error) {
	if len(r.Checkpoints) < 2 {
		return nil, fmt.Errorf("runner %s: need at least 2 checkpoints, got %d: %w",
			r.Key(), len(r.Checkpoints), ErrBadCurve)
	}

	kms := make([]float64, len(r.Checkpoints))
	secs := make([]float64, len(r.Checkpoints))
	for i, cp := range r.Checkpoints {
		kms[i] = cp.DistanceKm
		secs[i] = cp.Elapsed.Seconds()
		if i > 0 {
			if kms[i] <= kms[i-1] {
				return nil, fmt.Errorf("runner %s: checkpoint %d distance not increasing: %w",
					r.Key(), i, ErrBadCurve)
			}
			if secs[i] <= secs[i-1] {
				return nil, fmt.Errorf("runner %s: checkpoint %d elapsed not increasing: %w",
					r.Key(), i, ErrBadCurve)
			}
		}
	}

	s := &Schedule{
		runner: r,
		start:  gun.Add(r.StartOffset),
		minKm:  kms[0],
		maxKm:  kms[len(kms)-1],
		total:  r.Checkpoints[len(r.Checkpoints)-1].Elapsed,
	}
	if err := s.fwd.Fit(kms, secs); err != nil {
		return nil, fmt.Errorf("runner %s: fit forward curve: %w", r.Key(), err)
	}
	if err := s.inv.Fit(secs, kms); err != nil {
		return nil, fmt.Errorf("runner %s: fit inverse curve: %w", r.Key(), err)
	}
	return s, nil
}

// Runner returns the runner backing this schedule.
func (s *Schedule) Runner() model.Runner { return s.runner }

// Start returns the runner's absolute start instant (gun + offset).
func (s *Schedule) Start() time.Time { return s.start }

// Finish returns the runner's absolute finish instant.
func (s *Schedule) Finish() time.Time { return s.start.Add(s.total) }

// TimeAt returns the absolute instant the runner reaches the given course
// distance. Distances outside the runner's race range return ErrOutOfRange.
func (s *Schedule) TimeAt(km float64) (time.Time, error) {
	if km < s.minKm || km > s.maxKm {
		return time.Time{}, fmt.Errorf("runner %s at %.3f km: %w", s.runner.Key(), km, ErrOutOfRange)
	}
	elapsed := s.fwd.Predict(km)
	return s.start.Add(time.Duration(elapsed * float64(time.Second))), nil
}

// PositionAt returns the runner's course distance in km at the given instant.
// Instants before the runner's start or after the finish return ErrOutOfRange.
func (s *Schedule) PositionAt(t time.Time) (float64, error) {
	if t.Before(s.start) || t.After(s.Finish()) {
		return 0, fmt.Errorf("runner %s at %s: %w", s.runner.Key(), t.Format(time.RFC3339), ErrOutOfRange)
	}
	return s.inv.Predict(t.Sub(s.start).Seconds()), nil
}

// EntryExit returns the window during which the runner occupies the given
// distance range. The range is clipped to the runner's race range; a range
// the runner never reaches returns ErrOutOfRange.
func (s *Schedule) EntryExit(rng model.DistanceRange) (model.TimeRange, error) {
	from := rng.FromKm
	to := rng.ToKm
	if from < s.minKm {
		from = s.minKm
	}
	if to > s.maxKm {
		to = s.maxKm
	}
	if from >= to {
		return model.TimeRange{}, fmt.Errorf("runner %s range [%.3f,%.3f] km: %w",
			s.runner.Key(), rng.FromKm, rng.ToKm, ErrOutOfRange)
	}
	entry, err := s.TimeAt(from)
	if err != nil {
		return model.TimeRange{}, err
	}
	exit, err := s.TimeAt(to)
	if err != nil {
		return model.TimeRange{}, err
	}
	return model.TimeRange{Start: entry, End: exit}, nil
}

// Inside reports whether the runner is physically inside the distance range
// at the given instant. A runner not yet started or already finished is not
// inside anything.
func (s *Schedule) Inside(t time.Time, rng model.DistanceRange) bool {
	km, err := s.PositionAt(t)
	if err != nil {
		return false
	}
	return rng.Contains(km)
}

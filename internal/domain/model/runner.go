// Package model contains domain models passed between layers.
package model

import "time"

// EventID identifies a race event (e.g. "half", "10k").
type EventID string

// Checkpoint is one point on a runner's cumulative pace curve: elapsed time
// since the runner's own start at a given course distance.
type Checkpoint struct {
	DistanceKm float64
	Elapsed    time.Duration
}

// Runner is one participant of one event. Immutable once loaded; one record
// per runner per event.
type Runner struct {
	Bib         string
	Event       EventID
	StartOffset time.Duration // from the event gun
	Checkpoints []Checkpoint  // ascending by distance, at least two points
}

// Key returns the load-time identity used for de-duplicating input rows.
func (r Runner) Key() string {
	return string(r.Event) + "/" + r.Bib
}

// RaceKm is the total distance covered by the runner's pace curve.
func (r Runner) RaceKm() float64 {
	if len(r.Checkpoints) == 0 {
		return 0
	}
	return r.Checkpoints[len(r.Checkpoints)-1].DistanceKm
}

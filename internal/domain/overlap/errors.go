package overlap

import "errors"

// Sentinel kinds for detector errors.
var (
	// ErrNoSchedules reports a segment side with no usable runner
	// schedules at all; distinct from a segment with schedules that simply
	// never meet, which is a valid zero-interaction result.
	ErrNoSchedules = errors.New("no usable schedules for segment")
)

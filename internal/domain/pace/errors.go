package pace

import "errors"

// Sentinel kinds for position-model errors.
var (
	// ErrOutOfRange reports a query outside the runner's race range, in
	// distance or in time.
	ErrOutOfRange = errors.New("outside runner race range")

	// ErrBadCurve reports a pace curve that cannot back a schedule:
	// too few checkpoints or a non-monotonic distance/time sequence.
	ErrBadCurve = errors.New("invalid pace curve")
)

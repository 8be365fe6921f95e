package selection

import "errors"

// Sentinel kinds for selection/publication errors.
var (
	ErrBadOverride = errors.New("invalid override registration")
	ErrDuplicateOverride = errors.New("override already registered for segment")
)

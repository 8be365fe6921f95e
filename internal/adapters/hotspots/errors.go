package hotspots

import "errors"

// Sentinel kinds for hotspot index errors.
var (
	ErrInvalidLimit = errors.New("invalid hotspot limit")
	ErrBadEntry     = errors.New("bad hotspot entry")
)

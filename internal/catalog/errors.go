package catalog

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrLoadCatalog  = errors.New("load catalog failed")
	ErrBadSegment   = errors.New("bad segment definition")
	ErrUnknownEvent = errors.New("unknown event")
	ErrLoadPaces    = errors.New("load paces failed")
	ErrBadPaceRow   = errors.New("bad pace row")
)

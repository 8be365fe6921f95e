package fieldgen

import "errors"

// ErrBadSpec is returned for invalid generation parameters.
var ErrBadSpec = errors.New("bad field spec")

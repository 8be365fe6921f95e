package app

import "errors"

// ErrMissingDependency is returned when the service is constructed without
// its catalog, config, or rulebook.
var ErrMissingDependency = errors.New("missing service dependency")

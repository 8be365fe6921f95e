package rulebook

import "errors"

// Sentinel kinds for rulebook errors. A rulebook problem is never papered
// over with zero-valued thresholds; it halts the affected segment.
var (
	ErrThresholdConfig = errors.New("invalid threshold config")
	ErrSchemaUnresolved = errors.New("schema unresolved and no default table")
)

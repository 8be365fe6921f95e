// Package pathrule holds the one and only routing rule that decides whether
// a conflict zone is evaluated on the direct path or the binned path.
//
// The rule lives here, alone, so every caller imports the same comparison.
// It must never be re-derived locally: independent copies of this rule are
// exactly how calculation paths drift apart at the boundary.
package pathrule

import "github.com/raceops/courseflow/internal/domain/model"

// Epsilon absorbs float-representation noise before the threshold
// comparison. A zone within Epsilon of the threshold counts as at it.
const Epsilon = 1e-6

// UseBinnedPath reports whether a conflict zone of the given length routes
// through the binned calculation path. The rule is inclusive: a zone exactly
// at the threshold is binned.
func UseBinnedPath(zoneLengthM, thresholdM float64) bool {
	return zoneLengthM+Epsilon >= thresholdM
}

// Choose maps the rule onto the CalcPath enum.
func Choose(zoneLengthM, thresholdM float64) model.CalcPath {
	if UseBinnedPath(zoneLengthM, thresholdM) {
		return model.PathBinned
	}
	return model.PathDirect
}

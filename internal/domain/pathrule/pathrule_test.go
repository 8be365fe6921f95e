package pathrule_test

import (
	"testing"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/domain/pathrule"
	. "github.com/smartystreets/goconvey/convey"
)

func TestUseBinnedPath(t *testing.T) {
	Convey("Given the 100 m routing threshold", t, func() {
		const threshold = 100.0

		Convey("When the zone is exactly at the threshold", func() {
			Convey("Then it routes to the binned path (inclusive rule)", func() {
				So(pathrule.UseBinnedPath(100.0, threshold), ShouldBeTrue)
			})
		})

		Convey("When the zone is just under the threshold", func() {
			Convey("Then it routes to the direct path", func() {
				So(pathrule.UseBinnedPath(99.99, threshold), ShouldBeFalse)
			})
		})

		Convey("When the zone is just over the threshold", func() {
			Convey("Then it routes to the binned path", func() {
				So(pathrule.UseBinnedPath(100.01, threshold), ShouldBeTrue)
			})
		})

		Convey("When float noise puts the zone within epsilon of the threshold", func() {
			Convey("Then the rule does not flap", func() {
				So(pathrule.UseBinnedPath(100.0-5e-7, threshold), ShouldBeTrue)
				So(pathrule.UseBinnedPath(100.0+5e-7, threshold), ShouldBeTrue)
				// A classic accumulation artifact: 0.1 summed a thousand times.
				sum := 0.0
				for i := 0; i < 1000; i++ {
					sum += 0.1
				}
				So(pathrule.UseBinnedPath(sum, threshold), ShouldBeTrue)
			})
		})

		Convey("When the zone is clearly below epsilon distance from the threshold", func() {
			Convey("Then direct still wins", func() {
				So(pathrule.UseBinnedPath(99.9999, threshold), ShouldBeFalse)
			})
		})
	})
}

func TestChoose(t *testing.T) {
	Convey("Given the enum mapping", t, func() {
		Convey("Then the threshold value maps to the binned path", func() {
			So(pathrule.Choose(100.0, 100.0), ShouldEqual, model.PathBinned)
		})

		Convey("Then a short zone maps to the direct path", func() {
			So(pathrule.Choose(42.0, 100.0), ShouldEqual, model.PathDirect)
		})
	})
}

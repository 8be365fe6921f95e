package model_test

import (
	"testing"
	"time"

	"github.com/raceops/courseflow/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func at(sec int) time.Time {
	return time.Time{}.Add(time.Duration(sec) * time.Second)
}

func TestTimeRange(t *testing.T) {
	Convey("Given two time ranges", t, func() {
		Convey("When they overlap", func() {
			a := model.TimeRange{Start: at(0), End: at(100)}
			b := model.TimeRange{Start: at(50), End: at(150)}

			Convey("Then the intersection is the shared window", func() {
				got, ok := a.Intersect(b)
				So(ok, ShouldBeTrue)
				So(got.Start, ShouldEqual, at(50))
				So(got.End, ShouldEqual, at(100))
				So(got.Duration(), ShouldEqual, 50*time.Second)
			})

			Convey("And intersection is symmetric", func() {
				got1, _ := a.Intersect(b)
				got2, _ := b.Intersect(a)
				So(got1, ShouldResemble, got2)
			})
		})

		Convey("When they are disjoint", func() {
			a := model.TimeRange{Start: at(0), End: at(100)}
			b := model.TimeRange{Start: at(100), End: at(200)}

			Convey("Then there is no intersection", func() {
				_, ok := a.Intersect(b)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the range is inverted", func() {
			r := model.TimeRange{Start: at(10), End: at(5)}

			Convey("Then duration clamps to zero", func() {
				So(r.Duration(), ShouldEqual, time.Duration(0))
			})
		})
	})
}

func TestDistanceRange(t *testing.T) {
	Convey("Given a distance range", t, func() {
		r := model.DistanceRange{FromKm: 4.2, ToKm: 5.7}

		Convey("Then its metre length follows the km span", func() {
			So(r.LengthM(), ShouldAlmostEqual, 1500.0, 1e-9)
		})

		Convey("Then containment is inclusive at both ends", func() {
			So(r.Contains(4.2), ShouldBeTrue)
			So(r.Contains(5.7), ShouldBeTrue)
			So(r.Contains(5.71), ShouldBeFalse)
		})
	})
}

func TestSegment(t *testing.T) {
	Convey("Given a cross-event segment", t, func() {
		seg := model.Segment{
			ID:     "bridge",
			EventA: "half",
			EventB: "10k",
			RangeA: model.DistanceRange{FromKm: 10.0, ToKm: 11.0},
			RangeB: model.DistanceRange{FromKm: 3.0, ToKm: 4.0},
			WidthM: 6,
		}

		Convey("Then it is not same-event", func() {
			So(seg.SameEvent(), ShouldBeFalse)
		})

		Convey("Then physical length comes from event A's frame", func() {
			So(seg.LengthM(), ShouldAlmostEqual, 1000.0, 1e-9)
		})
	})

	Convey("Given a same-event segment", t, func() {
		seg := model.Segment{ID: "corral", EventA: "half", EventB: "half"}

		Convey("Then SameEvent is true", func() {
			So(seg.SameEvent(), ShouldBeTrue)
		})
	})
}

func TestConflictZone(t *testing.T) {
	Convey("Given a conflict zone", t, func() {
		z := model.ConflictZone{CenterM: 450, FromM: 400, ToM: 500}

		Convey("Then its length is the clamped span", func() {
			So(z.LengthM(), ShouldAlmostEqual, 100.0, 1e-9)
		})
	})
}

func TestRunner(t *testing.T) {
	Convey("Given a runner with a pace curve", t, func() {
		r := model.Runner{
			Bib:   "1042",
			Event: "half",
			Checkpoints: []model.Checkpoint{
				{DistanceKm: 0, Elapsed: 0},
				{DistanceKm: 21.1, Elapsed: 105 * time.Minute},
			},
		}

		Convey("Then the key combines event and bib", func() {
			So(r.Key(), ShouldEqual, "half/1042")
		})

		Convey("Then race distance is the last checkpoint", func() {
			So(r.RaceKm(), ShouldAlmostEqual, 21.1, 1e-9)
		})
	})

	Convey("Given a runner without checkpoints", t, func() {
		r := model.Runner{Bib: "7", Event: "10k"}

		Convey("Then race distance is zero", func() {
			So(r.RaceKm(), ShouldEqual, 0.0)
		})
	})
}

func TestDirection(t *testing.T) {
	Convey("Given direction values", t, func() {
		Convey("Then uni and bi are valid", func() {
			So(model.DirectionUni.Valid(), ShouldBeTrue)
			So(model.DirectionBi.Valid(), ShouldBeTrue)
		})

		Convey("Then anything else is invalid", func() {
			So(model.Direction("both").Valid(), ShouldBeFalse)
			So(model.Direction("").Valid(), ShouldBeFalse)
		})
	})
}

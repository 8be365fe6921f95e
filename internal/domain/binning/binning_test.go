package binning_test

import (
	"context"
	"testing"
	"time"

	"github.com/raceops/courseflow/internal/domain/binning"
	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/domain/pace"
	"github.com/raceops/courseflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

var gun = time.Date(2026, 4, 12, 8, 0, 0, 0, time.UTC)

var bridge = model.Segment{
	ID:        "bridge",
	EventA:    "half",
	EventB:    "10k",
	RangeA:    model.DistanceRange{FromKm: 10, ToKm: 11},
	RangeB:    model.DistanceRange{FromKm: 3, ToKm: 4},
	WidthM:    6,
	Direction: model.DirectionUni,
}

func sched(t *testing.T, r model.Runner, g time.Time) *pace.Schedule {
	t.Helper()
	s, err := pace.NewSchedule(r, g)
	if err != nil {
		t.Fatalf("schedule %s: %v", r.Key(), err)
	}
	return s
}

func steady(bib string, event model.EventID, raceKm, minPerKm float64) model.Runner {
	return model.Runner{
		Bib:   bib,
		Event: event,
		Checkpoints: []model.Checkpoint{
			{DistanceKm: 0, Elapsed: 0},
			{DistanceKm: raceKm, Elapsed: time.Duration(raceKm * minPerKm * float64(time.Minute))},
		},
	}
}

// binAt finds a bin by its grid indexes.
func binAt(bins []model.Bin, di, ti int) (model.Bin, bool) {
	for _, b := range bins {
		if b.DistIndex == di && b.TimeIndex == ti {
			return b, true
		}
	}
	return model.Bin{}, false
}

func TestComputeSingleRunner(t *testing.T) {
	Convey("Given one half runner crossing the bridge at 6 min/km", t, func() {
		a := sched(t, steady("A1", "half", 21.1, 6), gun) // on the bridge 9:00-9:06

		eng := binning.NewEngine() // 100 m x 60 s
		res, err := eng.Compute(context.Background(), bridge, []*pace.Schedule{a}, nil)

		Convey("Then the grid covers 10 distance bins and 6 windows", func() {
			So(err, ShouldBeNil)
			So(res.ShortSegment, ShouldBeFalse)
			So(len(res.Bins), ShouldEqual, 60)
		})

		Convey("Then the runner occupies exactly one bin per window", func() {
			// At 9:00:30 the runner is ~83 m in: bin 0, window 0.
			b, ok := binAt(res.Bins, 0, 0)
			So(ok, ShouldBeTrue)
			So(b.Occupancy, ShouldEqual, 1)

			perWindow := make(map[int]int)
			for _, bin := range res.Bins {
				perWindow[bin.TimeIndex] += bin.Occupancy
			}
			for ti := 0; ti < 6; ti++ {
				So(perWindow[ti], ShouldBeLessThanOrEqualTo, 1)
			}
		})

		Convey("Then densities follow occupancy and geometry", func() {
			b, _ := binAt(res.Bins, 0, 0)
			So(b.CrowdDensity, ShouldAlmostEqual, 1.0/100, 1e-9)
			So(b.ArealDensity, ShouldAlmostEqual, 1.0/(100*6), 1e-9)
		})

		Convey("Then flow rate is normalized to runners per metre per minute", func() {
			// One runner entered bin 0 during window 0 over a 6 m width.
			b, _ := binAt(res.Bins, 0, 0)
			So(b.FlowRate, ShouldAlmostEqual, 1.0/60.0/6.0*60.0, 1e-9)
		})

		Convey("Then empty bins are valid zero-occupancy bins, not no_data", func() {
			b, ok := binAt(res.Bins, 9, 0) // far end, first window
			So(ok, ShouldBeTrue)
			So(b.Status, ShouldEqual, model.BinOK)
			So(b.Occupancy, ShouldEqual, 0)
			So(b.ArealDensity, ShouldEqual, 0.0)
			So(b.LOS, ShouldEqual, model.LOSA)
		})
	})
}

func TestComputeNobodyPresent(t *testing.T) {
	Convey("Given runners that never reach the stretch", t, func() {
		short := sched(t, steady("B1", "10k", 2, 4), gun)

		eng := binning.NewEngine()
		res, err := eng.Compute(context.Background(), bridge, nil, []*pace.Schedule{short})

		Convey("Then the grid is empty and that is not an error", func() {
			So(err, ShouldBeNil)
			So(len(res.Bins), ShouldEqual, 0)
			So(res.ShortSegment, ShouldBeFalse)
		})
	})
}

func TestComputeShortSegment(t *testing.T) {
	Convey("Given a segment below the minimum length", t, func() {
		stub := bridge
		stub.ID = "stub"
		stub.RangeA = model.DistanceRange{FromKm: 10, ToKm: 10.03} // 30 m
		stub.RangeB = model.DistanceRange{FromKm: 3, ToKm: 3.03}

		a := sched(t, steady("A1", "half", 21.1, 6), gun)
		eng := binning.NewEngine()
		res, err := eng.Compute(context.Background(), stub, []*pace.Schedule{a}, nil)

		Convey("Then it is flagged short and excluded, not zero-filled", func() {
			So(err, ShouldBeNil)
			So(res.ShortSegment, ShouldBeTrue)
			So(len(res.Bins), ShouldEqual, 0)
		})
	})
}

func TestComputeOpposedMapping(t *testing.T) {
	Convey("Given an opposed segment with one 10k runner", t, func() {
		towpath := bridge
		towpath.ID = "towpath"
		towpath.Direction = model.DirectionBi
		towpath.Opposed = true

		// B enters its km 3 (local 1000 m) at 9:00 and runs 4 min/km.
		b := sched(t, steady("B1", "10k", 10, 4), gun.Add(48*time.Minute))

		eng := binning.NewEngine()
		res, err := eng.Compute(context.Background(), towpath, nil, []*pace.Schedule{b})

		Convey("Then positions land in the reversed local frame", func() {
			So(err, ShouldBeNil)
			// At 9:00:30 the runner is at km 3.125, local 875 m: bin 8.
			bin, ok := binAt(res.Bins, 8, 0)
			So(ok, ShouldBeTrue)
			So(bin.Occupancy, ShouldEqual, 1)
		})
	})
}

func TestComputeCoarsening(t *testing.T) {
	Convey("Given a clock that blows the budget immediately", t, func() {
		a := sched(t, steady("A1", "half", 21.1, 6), gun)

		tick := time.Unix(0, 0)
		fakeClock := func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		}

		eng := binning.NewEngine(
			binning.WithBudget(500*time.Millisecond),
			binning.WithClock(fakeClock),
		)
		res, err := eng.Compute(context.Background(), bridge, []*pace.Schedule{a}, nil)

		Convey("Then the engine coarsens instead of aborting", func() {
			So(err, ShouldBeNil)
			So(res.Coarsened, ShouldBeTrue)
			So(res.BinLengthM, ShouldEqual, 200.0)
			So(res.Window, ShouldEqual, 2*time.Minute)
		})

		Convey("Then bins past the second overrun are no_data, not zeros", func() {
			var noData, okBins int
			for _, b := range res.Bins {
				switch b.Status {
				case model.BinNoData:
					noData++
				case model.BinOK:
					okBins++
				}
			}
			So(okBins, ShouldBeGreaterThan, 0)
			So(noData, ShouldBeGreaterThan, 0)
		})
	})
}

func TestComputeCancellation(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		a := sched(t, steady("A1", "half", 21.1, 6), gun)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		eng := binning.NewEngine()
		_, err := eng.Compute(ctx, bridge, []*pace.Schedule{a}, nil)

		Convey("Then the engine stops with the context error", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

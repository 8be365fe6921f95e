package fieldgen_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/fieldgen"
	"github.com/raceops/courseflow/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func halfSpec() fieldgen.EventSpec {
	return fieldgen.EventSpec{
		ID:                "half",
		DistanceKm:        21.1,
		Runners:           200,
		BasePaceSecPerKm:  330,
		PaceSpreadSec:     60,
		StartWaves:        4,
		WaveGapSec:        120,
		CheckpointEveryKm: 5,
	}
}

func TestGenerate(t *testing.T) {
	convey.Convey("Given a half-marathon field spec", t, func() {
		ctx := context.Background()

		convey.Convey("When generating the field", func() {
			runners, err := fieldgen.Generate(ctx, halfSpec())

			convey.Convey("Then every runner has a valid curve", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(runners, convey.ShouldHaveLength, 200)

				for _, r := range runners {
					convey.So(r.Event, convey.ShouldEqual, model.EventID("half"))
					convey.So(r.RaceKm(), convey.ShouldEqual, 21.1)
					convey.So(len(r.Checkpoints), convey.ShouldBeGreaterThanOrEqualTo, 2)
					for i := 1; i < len(r.Checkpoints); i++ {
						convey.So(r.Checkpoints[i].DistanceKm,
							convey.ShouldBeGreaterThan, r.Checkpoints[i-1].DistanceKm)
						convey.So(r.Checkpoints[i].Elapsed,
							convey.ShouldBeGreaterThan, r.Checkpoints[i-1].Elapsed)
					}
				}
			})

			convey.Convey("Then bibs are unique", func() {
				convey.So(err, convey.ShouldBeNil)
				seen := make(map[string]bool, len(runners))
				for _, r := range runners {
					convey.So(seen[r.Bib], convey.ShouldBeFalse)
					seen[r.Bib] = true
				}
			})

			convey.Convey("Then runners are dealt into start waves", func() {
				convey.So(err, convey.ShouldBeNil)
				offsets := make(map[time.Duration]int)
				for _, r := range runners {
					offsets[r.StartOffset]++
				}
				convey.So(offsets, convey.ShouldHaveLength, 4)
				convey.So(offsets[0], convey.ShouldEqual, 50)
				convey.So(offsets[6*time.Minute], convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When the field spec is invalid", func() {
			spec := halfSpec()
			spec.Runners = 0
			_, err := fieldgen.Generate(ctx, spec)

			convey.Convey("Then generation fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "at least one runner")
			})
		})
	})
}

func TestWriteCSV(t *testing.T) {
	convey.Convey("Given a small generated field", t, func() {
		ctx := context.Background()
		spec := halfSpec()
		spec.Runners = 3
		runners, err := fieldgen.Generate(ctx, spec)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When writing it as CSV", func() {
			var buf bytes.Buffer
			err := fieldgen.WriteCSV(&buf, runners)

			convey.Convey("Then the output matches the pace-file shape", func() {
				convey.So(err, convey.ShouldBeNil)

				lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
				convey.So(string(lines[0]), convey.ShouldEqual, "event,bib,start_offset_sec,distance_km,elapsed_sec")

				// One header plus one row per checkpoint per runner.
				rows := 0
				for _, r := range runners {
					rows += len(r.Checkpoints)
				}
				convey.So(lines, convey.ShouldHaveLength, rows+1)
				convey.So(string(lines[1]), convey.ShouldStartWith, "half,1,")
			})
		})
	})
}

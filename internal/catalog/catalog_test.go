package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/raceops/courseflow/internal/catalog"
	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const catalogYAML = `race_start: 2026-04-12T08:00:00Z
events:
  half:
    gun_offset_sec: 0
  10k:
    gun_offset_sec: 1800
segments:
  - id: bridge
    label: Bridge crossing
    event_a: half
    event_b: 10k
    range_a: {from_km: 10, to_km: 11}
    range_b: {from_km: 3, to_km: 4}
    width_m: 6
    direction: uni
    schema: on_course_narrow
  - id: quay
    event_a: half
    event_b: 10k
    range_a: {from_km: 15, to_km: 15.4}
    range_b: {from_km: 6, to_km: 6.4}
    width_m: 8
    direction: bi
    opposed: true
`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCatalog_LoadFile(t *testing.T) {
	convey.Convey("Given a valid catalog file", t, func() {
		path := writeCatalog(t, catalogYAML)

		c, err := catalog.LoadFile(path)

		convey.Convey("Then it should load events and segments", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(c, convey.ShouldNotBeNil)

			convey.So(c.RaceStart, convey.ShouldEqual, time.Date(2026, 4, 12, 8, 0, 0, 0, time.UTC))
			convey.So(c.Events(), convey.ShouldResemble, []model.EventID{"10k", "half"})

			gunHalf, ok := c.Gun("half")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(gunHalf, convey.ShouldEqual, c.RaceStart)

			gun10k, ok := c.Gun("10k")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(gun10k, convey.ShouldEqual, c.RaceStart.Add(30*time.Minute))

			_, ok = c.Gun("marathon")
			convey.So(ok, convey.ShouldBeFalse)

			segs := c.Segments()
			convey.So(segs, convey.ShouldHaveLength, 2)
			convey.So(segs[0].ID, convey.ShouldEqual, "bridge")
			convey.So(segs[0].LengthM(), convey.ShouldEqual, 1000.0)
			convey.So(segs[0].Schema, convey.ShouldEqual, "on_course_narrow")
			convey.So(segs[0].Opposed, convey.ShouldBeFalse)
			convey.So(segs[1].Direction, convey.ShouldEqual, model.DirectionBi)
			convey.So(segs[1].Opposed, convey.ShouldBeTrue)
			convey.So(segs[1].Schema, convey.ShouldBeBlank)
		})
	})

	convey.Convey("Given a quoted race_start", t, func() {
		quoted := strings.Replace(catalogYAML,
			"race_start: 2026-04-12T08:00:00Z",
			`race_start: "2026-04-12T08:00:00Z"`, 1)

		c, err := catalog.LoadFile(writeCatalog(t, quoted))

		convey.Convey("Then both timestamp spellings load identically", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(c.RaceStart, convey.ShouldEqual, time.Date(2026, 4, 12, 8, 0, 0, 0, time.UTC))
		})
	})

	convey.Convey("Given invalid catalog files", t, func() {
		convey.Convey("When race_start is missing", func() {
			path := writeCatalog(t, "events:\n  half: {gun_offset_sec: 0}\n")
			_, err := catalog.LoadFile(path)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "race_start")
		})

		convey.Convey("When a segment references an unknown event", func() {
			body := `race_start: 2026-04-12T08:00:00Z
events:
  half: {gun_offset_sec: 0}
segments:
  - id: s1
    event_a: half
    event_b: marathon
    range_a: {from_km: 1, to_km: 2}
    range_b: {from_km: 1, to_km: 2}
    width_m: 5
    direction: uni
`
			_, err := catalog.LoadFile(writeCatalog(t, body))
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "unknown event")
		})

		convey.Convey("When a range has zero length", func() {
			body := `race_start: 2026-04-12T08:00:00Z
events:
  half: {gun_offset_sec: 0}
segments:
  - id: s1
    event_a: half
    event_b: half
    range_a: {from_km: 2, to_km: 2}
    range_b: {from_km: 2, to_km: 2}
    width_m: 5
    direction: uni
`
			_, err := catalog.LoadFile(writeCatalog(t, body))
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "positive length")
		})

		convey.Convey("When opposed is set on a unidirectional segment", func() {
			body := `race_start: 2026-04-12T08:00:00Z
events:
  half: {gun_offset_sec: 0}
  10k: {gun_offset_sec: 600}
segments:
  - id: s1
    event_a: half
    event_b: 10k
    range_a: {from_km: 1, to_km: 2}
    range_b: {from_km: 1, to_km: 2}
    width_m: 5
    direction: uni
    opposed: true
`
			_, err := catalog.LoadFile(writeCatalog(t, body))
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "opposed requires direction bi")
		})

		convey.Convey("When two segments share an id", func() {
			body := `race_start: 2026-04-12T08:00:00Z
events:
  half: {gun_offset_sec: 0}
segments:
  - id: s1
    event_a: half
    event_b: half
    range_a: {from_km: 1, to_km: 2}
    range_b: {from_km: 1, to_km: 2}
    width_m: 5
    direction: uni
  - id: s1
    event_a: half
    event_b: half
    range_a: {from_km: 3, to_km: 4}
    range_b: {from_km: 3, to_km: 4}
    width_m: 5
    direction: uni
`
			_, err := catalog.LoadFile(writeCatalog(t, body))
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "duplicate segment id")
		})

		convey.Convey("When the file does not exist", func() {
			_, err := catalog.LoadFile("/nonexistent/catalog.yaml")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

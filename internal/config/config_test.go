package config_test

import (
	"runtime"
	"testing"

	"github.com/raceops/courseflow/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.SegmentQueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.BinLengthM, convey.ShouldEqual, 100)
			convey.So(cfg.WindowSec, convey.ShouldEqual, 60)
			convey.So(cfg.MinSegmentLengthM, convey.ShouldEqual, 50)
			convey.So(cfg.ConflictRadiusM, convey.ShouldEqual, 50)
			convey.So(cfg.SpatialThresholdM, convey.ShouldEqual, 100)
			convey.So(cfg.StrictMinOverlapSec, convey.ShouldEqual, 30)
			convey.So(cfg.SegmentBudgetMS, convey.ShouldEqual, 0)
			convey.So(cfg.HotspotLimit, convey.ShouldEqual, 20)
			convey.So(cfg.ReportFile, convey.ShouldEqual, "-")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.MetricsAddr, convey.ShouldBeBlank)
			convey.So(cfg.AuditDB, convey.ShouldBeBlank)
		})
	})
}

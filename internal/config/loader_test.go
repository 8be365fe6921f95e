package config_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/raceops/courseflow/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.BinLengthM, convey.ShouldEqual, 100.0)
				convey.So(cfg.StrictMinOverlapSec, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("COURSEFLOW_BIN_LENGTH_M", "200")
			_ = os.Setenv("COURSEFLOW_WINDOW_SEC", "120")
			_ = os.Setenv("COURSEFLOW_WORKER_COUNT", "4")
			_ = os.Setenv("COURSEFLOW_CONFLICT_RADIUS_M", "75")
			_ = os.Setenv("COURSEFLOW_LOG_LEVEL", "debug")
			_ = os.Setenv("COURSEFLOW_AUDIT_DB", "run.db")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.BinLengthM, convey.ShouldEqual, 200.0)
				convey.So(cfg.WindowSec, convey.ShouldEqual, 120)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.ConflictRadiusM, convey.ShouldEqual, 75.0)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.AuditDB, convey.ShouldEqual, "run.db")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			clearConfigEnvVars()

			dir := t.TempDir()
			path := filepath.Join(dir, "courseflow.yaml")
			body := []byte("bin_length_m: 50\nwindow_sec: 30\nspatial_threshold_m: 150\nhotspot_limit: 5\n")
			err := os.WriteFile(path, body, 0o600)
			convey.So(err, convey.ShouldBeNil)

			_ = os.Setenv("COURSEFLOW_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should layer file values over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BinLengthM, convey.ShouldEqual, 50.0)
				convey.So(cfg.WindowSec, convey.ShouldEqual, 30)
				convey.So(cfg.SpatialThresholdM, convey.ShouldEqual, 150.0)
				convey.So(cfg.HotspotLimit, convey.ShouldEqual, 5)
				// Untouched keys keep their defaults.
				convey.So(cfg.MinSegmentLengthM, convey.ShouldEqual, 50.0)
			})
		})

		convey.Convey("When env vars override file values", func() {
			clearConfigEnvVars()

			dir := t.TempDir()
			path := filepath.Join(dir, "courseflow.yaml")
			err := os.WriteFile(path, []byte("window_sec: 30\n"), 0o600)
			convey.So(err, convey.ShouldBeNil)

			_ = os.Setenv("COURSEFLOW_CONFIG", path)
			_ = os.Setenv("COURSEFLOW_WINDOW_SEC", "90")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WindowSec, convey.ShouldEqual, 90)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			clearConfigEnvVars()
			_ = os.Setenv("COURSEFLOW_CONFIG", "/nonexistent/courseflow.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fail with a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "load config failed")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When validation rejects bad values", func() {
			clearConfigEnvVars()
			_ = os.Setenv("COURSEFLOW_BIN_LENGTH_M", "-10")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an invalid config error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "invalid config")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When worker count is zero", func() {
			clearConfigEnvVars()
			_ = os.Setenv("COURSEFLOW_WORKER_COUNT", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should reject it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "worker_count")
			})
		})
	})
}

func clearConfigEnvVars() {
	vars := []string{
		"COURSEFLOW_CONFIG",
		"COURSEFLOW_LOG_LEVEL",
		"COURSEFLOW_METRICS_ADDR",
		"COURSEFLOW_WORKER_COUNT",
		"COURSEFLOW_SEGMENT_QUEUE_SIZE",
		"COURSEFLOW_PACE_FILE",
		"COURSEFLOW_CATALOG_FILE",
		"COURSEFLOW_RULEBOOK_FILE",
		"COURSEFLOW_REPORT_FILE",
		"COURSEFLOW_AUDIT_DB",
		"COURSEFLOW_BIN_LENGTH_M",
		"COURSEFLOW_WINDOW_SEC",
		"COURSEFLOW_MIN_SEGMENT_LENGTH_M",
		"COURSEFLOW_CONFLICT_RADIUS_M",
		"COURSEFLOW_SPATIAL_THRESHOLD_M",
		"COURSEFLOW_STRICT_MIN_OVERLAP_SEC",
		"COURSEFLOW_SEGMENT_BUDGET_MS",
		"COURSEFLOW_HOTSPOT_LIMIT",
	}
	for _, v := range vars {
		_ = os.Unsetenv(v)
	}
}

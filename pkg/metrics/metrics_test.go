package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test-prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithMetricPrefix("test-prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test", "version": "1.0"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestRecordHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording engine metrics", func() {
			Convey("Then counter helpers should not panic", func() {
				So(func() {
					RecordSegmentProcessed()
					RecordSegmentFailed()
					RecordSegmentSkipped("short_segment")
					RecordEncounter("overtake")
					RecordEncounter("counterflow")
					RecordEncounter("co_presence")
					RecordRawPass()
					RecordStrictPass()
					RecordPathRouted("direct")
					RecordPathRouted("binned")
					RecordConvergencePoint()
				}, ShouldNotPanic)
			})

			Convey("Then publication helpers should not panic", func() {
				So(func() {
					RecordPublication()
					RecordOverrideApplied()
					RecordDivergence()
				}, ShouldNotPanic)
			})

			Convey("Then binning helpers should not panic", func() {
				So(func() {
					RecordBinComputed()
					RecordBinNoData()
					RecordBinFlagged("watch")
					RecordBinFlagged("critical")
					RecordCoarseningFallback()
					RecordSegmentComputeLatency(12.5)
				}, ShouldNotPanic)
			})

			Convey("Then gauge helpers should not panic", func() {
				So(func() {
					RecordInputError()
					RecordRulebookError()
					UpdateRunnersLoaded(1000)
					UpdateSegmentsInCatalog(12)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		Convey("When fetching it", func() {
			registry := Registry()

			Convey("Then it should be gatherable", func() {
				So(registry, ShouldNotBeNil)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}

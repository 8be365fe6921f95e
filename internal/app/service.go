// Package app wires the engine together: it builds pace schedules from the
// loaded field, fans segments out over the worker pool, runs the per-segment
// pipeline, and assembles the final report.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/raceops/courseflow/internal/adapters/audit"
	"github.com/raceops/courseflow/internal/adapters/hotspots"
	"github.com/raceops/courseflow/internal/adapters/jobqueue"
	"github.com/raceops/courseflow/internal/catalog"
	"github.com/raceops/courseflow/internal/config"
	"github.com/raceops/courseflow/internal/domain/binning"
	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/domain/overlap"
	"github.com/raceops/courseflow/internal/domain/pace"
	"github.com/raceops/courseflow/internal/domain/rulebook"
	"github.com/raceops/courseflow/internal/domain/selection"
	"github.com/raceops/courseflow/internal/domain/types"
	"github.com/raceops/courseflow/pkg/logger"
	"github.com/raceops/courseflow/pkg/metrics"
)

// Error taxonomy codes carried on segment results with status error.
const (
	ErrCodeRulebookConfig = "rulebook_config"
	ErrCodeOverlapFailed  = "overlap_failed"
	ErrCodeBinningFailed  = "binning_failed"
	ErrCodeEnqueueFailed  = "enqueue_failed"
	ErrCodePanic          = "panic"
)

// Service runs the full analysis over one loaded race.
type Service struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	rulebook *rulebook.Rulebook

	schedules map[model.EventID][]*pace.Schedule
	runners   int

	detector  *overlap.Detector
	binner    *binning.Engine
	publisher *selection.Publisher
	registry  *selection.Registry
	hotspots  hotspots.Store
	audit     *audit.Store

	now func() time.Time
	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithOverrideRegistry installs a pre-populated override registry.
func WithOverrideRegistry(r *selection.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithAuditStore enables decision and flagged-bin persistence.
func WithAuditStore(a *audit.Store) Option {
	return func(s *Service) { s.audit = a }
}

// WithHotspotStore overrides the flagged-bin index.
func WithHotspotStore(h hotspots.Store) Option {
	return func(s *Service) {
		if h != nil {
			s.hotspots = h
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Service over a loaded catalog, field, and rulebook. Runners
// whose pace curve cannot be scheduled are dropped with a warning; they
// never abort the run.
func New(cfg *config.Config, cat *catalog.Catalog, runners []model.Runner, rb *rulebook.Rulebook, opts ...Option) (*Service, error) {
	if cfg == nil || cat == nil || rb == nil {
		return nil, ErrMissingDependency
	}

	s := &Service{
		cfg:      cfg,
		catalog:  cat,
		rulebook: rb,
		registry: selection.NewRegistry(),
		hotspots: hotspots.NewTreapStore(),
		now:      time.Now,
		log:      logger.Get().Named("app"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.publisher = selection.NewPublisher(s.registry,
		selection.WithClock(s.now),
		selection.WithLogger(s.log),
	)
	s.detector = overlap.NewDetector(
		overlap.WithConflictRadius(cfg.ConflictRadiusM),
		overlap.WithSpatialThreshold(cfg.SpatialThresholdM),
		overlap.WithStrictMinOverlap(time.Duration(cfg.StrictMinOverlapSec)*time.Second),
		overlap.WithBinLength(cfg.BinLengthM),
		overlap.WithLogger(s.log),
	)
	s.binner = binning.NewEngine(
		binning.WithBinLength(cfg.BinLengthM),
		binning.WithWindow(time.Duration(cfg.WindowSec)*time.Second),
		binning.WithMinSegmentLength(cfg.MinSegmentLengthM),
		binning.WithBudget(time.Duration(cfg.SegmentBudgetMS)*time.Millisecond),
		binning.WithLogger(s.log),
	)

	s.schedules = make(map[model.EventID][]*pace.Schedule)
	for _, r := range runners {
		gun, ok := cat.Gun(r.Event)
		if !ok {
			s.log.Warn(context.Background(), "runner references unknown event",
				logger.String("runner", r.Key()))
			metrics.RecordInputError()
			continue
		}
		sched, err := pace.NewSchedule(r, gun)
		if err != nil {
			s.log.Warn(context.Background(), "runner pace curve rejected",
				logger.String("runner", r.Key()),
				logger.Error(err))
			metrics.RecordInputError()
			continue
		}
		s.schedules[r.Event] = append(s.schedules[r.Event], sched)
		s.runners++
	}

	return s, nil
}

// AnalyzeSegment runs the per-segment pipeline. Failures are folded into
// the result; a panic or error in one segment never reaches another.
func (s *Service) AnalyzeSegment(ctx context.Context, seg model.Segment) (res model.SegmentResult) {
	res = model.SegmentResult{SegmentID: seg.ID, Status: model.SegmentOK}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "segment analysis panicked",
				logger.String("segment", seg.ID),
				logger.Any("panic", r))
			res = model.SegmentResult{
				SegmentID: seg.ID,
				Status:    model.SegmentError,
				ErrCode:   ErrCodePanic,
				ErrDetail: fmt.Sprint(r),
			}
			metrics.RecordSegmentFailed()
		}
	}()

	if seg.SameEvent() {
		s.log.Debug(ctx, "segment services a single event, skipped",
			logger.String("segment", seg.ID))
		metrics.RecordSegmentSkipped(string(model.SkipSameEvent))
		res.Status = model.SegmentSkipped
		res.Skip = model.SkipSameEvent
		return res
	}

	// Resolve thresholds before any computation: a segment with no usable
	// threshold table must not silently pass as unflagged.
	table, err := s.rulebook.Resolve(seg.Schema)
	if err != nil {
		s.log.Error(ctx, "rulebook resolution failed",
			logger.String("segment", seg.ID),
			logger.String("schema", seg.Schema),
			logger.Error(err))
		metrics.RecordRulebookError()
		metrics.RecordSegmentFailed()
		return errorResult(seg.ID, ErrCodeRulebookConfig, err)
	}

	schedsA := s.schedules[seg.EventA]
	schedsB := s.schedules[seg.EventB]

	grid, err := s.binner.Compute(ctx, seg, schedsA, schedsB)
	if err != nil {
		metrics.RecordSegmentFailed()
		return errorResult(seg.ID, ErrCodeBinningFailed, err)
	}
	if grid.ShortSegment {
		// Below the evaluable length: no grid and no LOS, but the overlap
		// pipeline still runs so the skip never hides interaction data.
		res.Status = model.SegmentSkipped
		res.Skip = model.SkipShortSegment
	}

	ov, err := s.detector.Analyze(ctx, seg, schedsA, schedsB)
	if err != nil {
		metrics.RecordSegmentFailed()
		return errorResult(seg.ID, ErrCodeOverlapFailed, err)
	}

	decision := s.publisher.Publish(ctx, seg.ID, ov.RawCount, ov.StrictCount)
	if s.audit != nil {
		if err := s.audit.RecordDecision(ctx, decision); err != nil {
			s.log.Warn(ctx, "audit decision write failed",
				logger.String("segment", seg.ID),
				logger.Error(err))
		}
	}

	res.RawPassCount = ov.RawCount
	res.StrictPassCount = ov.StrictCount
	res.PublishedCount = decision.PublishedCount
	res.OverrideApplied = decision.OverrideApplied
	res.Interactions = ov.Interactions
	res.Convergences = ov.Convergences
	res.Zones = ov.Zones
	res.Path = ov.Path

	if grid.ShortSegment {
		return res
	}

	s.evaluateBins(ctx, seg, table, grid.Bins)
	res.Bins = grid.Bins
	res.MeanCrowdDensity, res.P95CrowdDensity = densitySummary(grid.Bins)

	metrics.RecordSegmentProcessed()
	return res
}

// evaluateBins applies the resolved threshold table to every computed bin
// and indexes the flagged ones.
func (s *Service) evaluateBins(ctx context.Context, seg model.Segment, table rulebook.Table, bins []model.Bin) {
	for i := range bins {
		b := &bins[i]
		if b.Status != model.BinOK {
			continue
		}
		ev := table.Evaluate(b.ArealDensity, b.FlowRate)
		b.LOS = ev.LOS
		b.Severity = ev.Severity
		b.Reason = ev.Reason

		if ev.Severity == model.SeverityNone {
			continue
		}
		metrics.RecordBinFlagged(string(ev.Severity))

		entry := hotspots.Entry{
			Key:          fmt.Sprintf("%s/%d/%d", seg.ID, b.DistIndex, b.TimeIndex),
			SegmentID:    seg.ID,
			DistIndex:    b.DistIndex,
			TimeIndex:    b.TimeIndex,
			CrowdDensity: b.CrowdDensity,
			ArealDensity: b.ArealDensity,
			LOS:          string(ev.LOS),
			Severity:     string(ev.Severity),
			Reason:       string(ev.Reason),
		}
		if _, err := s.hotspots.Record(ctx, entry); err != nil {
			s.log.Warn(ctx, "hotspot index write failed",
				logger.String("bin", entry.Key),
				logger.Error(err))
		}
		if s.audit != nil {
			if err := s.audit.RecordFlaggedBin(ctx, *b); err != nil {
				s.log.Warn(ctx, "audit bin write failed",
					logger.String("bin", entry.Key),
					logger.Error(err))
			}
		}
	}
}

// densitySummary returns mean and p95 crowd density over computed bins.
func densitySummary(bins []model.Bin) (mean, p95 float64) {
	densities := make([]float64, 0, len(bins))
	for _, b := range bins {
		if b.Status != model.BinOK {
			continue
		}
		densities = append(densities, b.CrowdDensity)
	}
	if len(densities) == 0 {
		return 0, 0
	}
	mean = stat.Mean(densities, nil)
	sort.Float64s(densities)
	p95 = stat.Quantile(0.95, stat.Empirical, densities, nil)
	return mean, p95
}

func errorResult(segID, code string, err error) model.SegmentResult {
	return model.SegmentResult{
		SegmentID: segID,
		Status:    model.SegmentError,
		ErrCode:   code,
		ErrDetail: err.Error(),
	}
}

// resultSink collects finished segment results from the worker pool.
type resultSink struct {
	mu      sync.Mutex
	results map[string]model.SegmentResult
}

func (rs *resultSink) Collect(_ context.Context, res model.SegmentResult) {
	rs.mu.Lock()
	rs.results[res.SegmentID] = res
	rs.mu.Unlock()
}

// Run analyses every catalogued segment and assembles the report. Segment
// results arrive in any order but are reported in catalog order.
func (s *Service) Run(ctx context.Context) (*types.Report, error) {
	started := s.now()
	segments := s.catalog.Segments()

	s.log.Info(ctx, "engine run starting",
		logger.Int("segments", len(segments)),
		logger.Int("runners", s.runners),
		logger.Int("workers", s.cfg.WorkerCount))
	metrics.UpdateSegmentsInCatalog(len(segments))

	queue := jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.cfg.SegmentQueueSize))
	sink := &resultSink{results: make(map[string]model.SegmentResult, len(segments))}
	pool := jobqueue.NewPool(s.cfg.WorkerCount, queue, s, sink)
	pool.Start(ctx)

	for _, seg := range segments {
		if !queue.Enqueue(ctx, seg) {
			s.log.Error(ctx, "segment could not be enqueued",
				logger.String("segment", seg.ID))
			metrics.RecordSegmentFailed()
			sink.Collect(ctx, model.SegmentResult{
				SegmentID: seg.ID,
				Status:    model.SegmentError,
				ErrCode:   ErrCodeEnqueueFailed,
				ErrDetail: "segment job queue rejected the job",
			})
		}
	}

	if err := pool.Drain(ctx); err != nil {
		return nil, fmt.Errorf("draining worker pool: %w", err)
	}

	report := s.assemble(ctx, sink, started)

	if s.audit != nil {
		if err := s.audit.FinishRun(ctx, s.now(), len(segments), s.runners); err != nil {
			s.log.Warn(ctx, "audit run finish failed", logger.Error(err))
		}
	}

	s.log.Info(ctx, "engine run finished",
		logger.Int("ok", report.SegmentsOK),
		logger.Int("skipped", report.SegmentsSkipped),
		logger.Int("errored", report.SegmentsErrored),
		logger.Duration("took", s.now().Sub(started)))
	return report, nil
}

func (s *Service) assemble(ctx context.Context, sink *resultSink, started time.Time) *types.Report {
	report := &types.Report{
		GeneratedAt: started,
		RaceStart:   s.catalog.RaceStart,
		Runners:     s.runners,
	}
	if s.audit != nil {
		report.RunID = s.audit.RunID()
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()

	for _, seg := range s.catalog.Segments() {
		res, ok := sink.results[seg.ID]
		if !ok {
			// A worker died without reporting; surface it, never drop it.
			res = model.SegmentResult{
				SegmentID: seg.ID,
				Status:    model.SegmentError,
				ErrCode:   ErrCodePanic,
				ErrDetail: "segment result missing from sink",
			}
		}
		switch res.Status {
		case model.SegmentOK:
			report.SegmentsOK++
		case model.SegmentSkipped:
			report.SegmentsSkipped++
		case model.SegmentError:
			report.SegmentsErrored++
		}
		report.Segments = append(report.Segments, segmentRow(seg, res))
	}

	top, err := s.hotspots.TopN(ctx, s.cfg.HotspotLimit)
	if err != nil {
		s.log.Warn(ctx, "hotspot ranking failed", logger.Error(err))
	}
	for _, e := range top {
		report.Hotspots = append(report.Hotspots, types.HotspotRow{
			Rank:         e.Rank,
			SegmentID:    e.SegmentID,
			DistIndex:    e.DistIndex,
			TimeIndex:    e.TimeIndex,
			CrowdDensity: e.CrowdDensity,
			ArealDensity: e.ArealDensity,
			LOS:          e.LOS,
			Severity:     e.Severity,
			Reason:       e.Reason,
		})
	}
	return report
}

func segmentRow(seg model.Segment, res model.SegmentResult) types.SegmentRow {
	row := types.SegmentRow{
		SegmentID:       res.SegmentID,
		Label:           seg.Label,
		Status:          string(res.Status),
		ErrCode:         res.ErrCode,
		ErrDetail:       res.ErrDetail,
		Skip:            string(res.Skip),
		RawPassCount:    res.RawPassCount,
		StrictPassCount: res.StrictPassCount,
		PublishedCount:  res.PublishedCount,
		OverrideApplied: res.OverrideApplied,
		CalcPath:        string(res.Path),
		MeanCrowdDensity: res.MeanCrowdDensity,
		P95CrowdDensity:  res.P95CrowdDensity,
	}
	if len(res.Interactions) > 0 {
		row.Interactions = make(map[string]int, len(res.Interactions))
		for kind, n := range res.Interactions {
			row.Interactions[string(kind)] = n
		}
	}
	for _, cp := range res.Convergences {
		row.Convergences = append(row.Convergences, types.ConvergenceRow{AtM: cp.AtM})
	}
	for _, z := range res.Zones {
		row.Zones = append(row.Zones, types.ZoneRow{CenterM: z.CenterM, FromM: z.FromM, ToM: z.ToM})
	}
	for _, b := range res.Bins {
		row.Bins = append(row.Bins, types.BinRow{
			DistIndex:    b.DistIndex,
			TimeIndex:    b.TimeIndex,
			FromM:        b.FromM,
			ToM:          b.ToM,
			WindowStart:  b.Window.Start,
			WindowEnd:    b.Window.End,
			Status:       string(b.Status),
			Occupancy:    b.Occupancy,
			ArealDensity: b.ArealDensity,
			CrowdDensity: b.CrowdDensity,
			FlowRate:     b.FlowRate,
			LOS:          string(b.LOS),
			Severity:     severityString(b.Severity),
			Reason:       string(b.Reason),
		})
	}
	return row
}

// severityString omits the zero severity from report rows.
func severityString(s model.FlagSeverity) string {
	if s == model.SeverityNone {
		return ""
	}
	return string(s)
}

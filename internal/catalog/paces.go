package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/raceops/courseflow/internal/domain/dedupe"
	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/pkg/logger"
	"github.com/raceops/courseflow/pkg/metrics"
)

// PaceLoader reads runner pace curves from CSV. One row per checkpoint:
//
//	event,bib,start_offset_sec,distance_km,elapsed_sec
//
// Rows for the same runner must be contiguous and ascending by distance.
// A (event, bib) block appearing a second time anywhere in the file is a
// duplicate record and is dropped whole.
type PaceLoader struct {
	catalog *Catalog
	deduper dedupe.Deduper
	log     logger.Logger
}

// NewPaceLoader creates a loader bound to a catalog, which supplies the set
// of known events.
func NewPaceLoader(c *Catalog, opts ...PaceOption) *PaceLoader {
	l := &PaceLoader{
		catalog: c,
		deduper: dedupe.NewInMemoryDeduper(),
		log:     logger.Get(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PaceOption configures a PaceLoader.
type PaceOption func(*PaceLoader)

// WithDeduper overrides the duplicate-row guard.
func WithDeduper(d dedupe.Deduper) PaceOption {
	return func(l *PaceLoader) { l.deduper = d }
}

// WithPaceLogger overrides the logger.
func WithPaceLogger(log logger.Logger) PaceOption {
	return func(l *PaceLoader) { l.log = log }
}

// LoadFile reads runners from a CSV file.
func (l *PaceLoader) LoadFile(ctx context.Context, path string) ([]model.Runner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadPaces, err)
	}
	defer func() { _ = f.Close() }()
	return l.Load(ctx, f)
}

// Load reads runners from CSV data.
func (l *PaceLoader) Load(ctx context.Context, r io.Reader) ([]model.Runner, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrLoadPaces, err)
	}
	if header[0] != "event" || header[1] != "bib" {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrLoadPaces, header)
	}

	var (
		runners []model.Runner
		cur     *model.Runner
		line    = 1
	)
	flush := func() {
		if cur == nil {
			return
		}
		l.admit(ctx, *cur, &runners)
		cur = nil
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrLoadPaces, line+1, err)
		}
		line++

		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if cur != nil && (cur.Event != row.event || cur.Bib != row.bib) {
			flush()
		}
		if cur == nil {
			cur = &model.Runner{
				Bib:         row.bib,
				Event:       row.event,
				StartOffset: row.startOffset,
			}
		}
		cur.Checkpoints = append(cur.Checkpoints, model.Checkpoint{
			DistanceKm: row.distanceKm,
			Elapsed:    row.elapsed,
		})
	}
	flush()

	l.log.Info(ctx, "pace curves loaded", logger.Int("runners", len(runners)))
	metrics.UpdateRunnersLoaded(len(runners))
	return runners, nil
}

// admit validates one assembled runner and appends it, or drops it with a
// warning. A dropped runner never fails the whole load.
func (l *PaceLoader) admit(ctx context.Context, r model.Runner, out *[]model.Runner) {
	if _, ok := l.catalog.Gun(r.Event); !ok {
		l.log.Warn(ctx, "dropping runner with unknown event",
			logger.String("event", string(r.Event)),
			logger.String("bib", r.Bib))
		metrics.RecordInputError()
		return
	}
	if len(r.Checkpoints) < 2 {
		l.log.Warn(ctx, "dropping runner with too few checkpoints",
			logger.String("runner", r.Key()),
			logger.Int("checkpoints", len(r.Checkpoints)))
		metrics.RecordInputError()
		return
	}
	for i := 1; i < len(r.Checkpoints); i++ {
		prev, next := r.Checkpoints[i-1], r.Checkpoints[i]
		if next.DistanceKm <= prev.DistanceKm || next.Elapsed <= prev.Elapsed {
			l.log.Warn(ctx, "dropping runner with non-increasing pace curve",
				logger.String("runner", r.Key()))
			metrics.RecordInputError()
			return
		}
	}
	if l.deduper.SeenAndRecord(ctx, r.Key()) {
		l.log.Warn(ctx, "dropping duplicate runner record",
			logger.String("runner", r.Key()))
		metrics.RecordInputError()
		return
	}
	*out = append(*out, r)
}

type paceRow struct {
	event       model.EventID
	bib         string
	startOffset time.Duration
	distanceKm  float64
	elapsed     time.Duration
}

func parseRow(rec []string) (paceRow, error) {
	var row paceRow
	if rec[0] == "" || rec[1] == "" {
		return row, fmt.Errorf("%w: event and bib are required", ErrBadPaceRow)
	}
	row.event = model.EventID(rec[0])
	row.bib = rec[1]

	offsetSec, err := strconv.ParseFloat(rec[2], 64)
	if err != nil || offsetSec < 0 {
		return row, fmt.Errorf("%w: start_offset_sec %q", ErrBadPaceRow, rec[2])
	}
	row.startOffset = time.Duration(offsetSec * float64(time.Second))

	row.distanceKm, err = strconv.ParseFloat(rec[3], 64)
	if err != nil || row.distanceKm < 0 {
		return row, fmt.Errorf("%w: distance_km %q", ErrBadPaceRow, rec[3])
	}

	elapsedSec, err := strconv.ParseFloat(rec[4], 64)
	if err != nil || elapsedSec < 0 {
		return row, fmt.Errorf("%w: elapsed_sec %q", ErrBadPaceRow, rec[4])
	}
	row.elapsed = time.Duration(elapsedSec * float64(time.Second))
	return row, nil
}

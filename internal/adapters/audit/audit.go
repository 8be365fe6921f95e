// Package audit persists publication decisions and flagged bins to a local
// sqlite database, one row per decision. Insert-only: the audit trail for a
// run is never rewritten.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/domain/selection"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		segments INTEGER,
		runners INTEGER
	);
	CREATE TABLE IF NOT EXISTS decisions (
		run_id TEXT,
		segment_id TEXT,
		raw_count INTEGER,
		strict_count INTEGER,
		published_count INTEGER,
		override_applied INTEGER,
		override_name TEXT,
		reason TEXT,
		decided_at TIMESTAMP,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS flagged_bins (
		run_id TEXT,
		segment_id TEXT,
		dist_index INTEGER,
		time_index INTEGER,
		from_m DOUBLE,
		to_m DOUBLE,
		window_start TIMESTAMP,
		crowd_density DOUBLE,
		areal_density DOUBLE,
		flow_rate DOUBLE,
		los TEXT,
		severity TEXT,
		reason TEXT,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
`

// Store is a sqlite-backed audit trail for one or more engine runs.
type Store struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if needed) the audit database at path and registers
// a new run.
func Open(path string, startedAt time.Time) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	s := &Store{db: db, runID: uuid.NewString()}
	if _, err := db.Exec(
		"INSERT INTO runs (run_id, started_at) VALUES (?, ?)",
		s.runID, startedAt,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}
	return s, nil
}

// RunID returns the identifier of the current run.
func (s *Store) RunID() string {
	return s.runID
}

// RecordDecision appends one publication decision.
func (s *Store) RecordDecision(ctx context.Context, d selection.Decision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions
		 (run_id, segment_id, raw_count, strict_count, published_count,
		  override_applied, override_name, reason, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, d.SegmentKey, d.RawCount, d.StrictCount, d.PublishedCount,
		boolToInt(d.OverrideApplied), d.OverrideName, d.Reason, d.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecordFlaggedBin appends one flagged bin.
func (s *Store) RecordFlaggedBin(ctx context.Context, b model.Bin) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flagged_bins
		 (run_id, segment_id, dist_index, time_index, from_m, to_m,
		  window_start, crowd_density, areal_density, flow_rate,
		  los, severity, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, b.SegmentID, b.DistIndex, b.TimeIndex, b.FromM, b.ToM,
		b.Window.Start, b.CrowdDensity, b.ArealDensity, b.FlowRate,
		string(b.LOS), string(b.Severity), string(b.Reason),
	)
	if err != nil {
		return fmt.Errorf("record flagged bin: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its end time and totals.
func (s *Store) FinishRun(ctx context.Context, finishedAt time.Time, segments, runners int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, segments = ?, runners = ? WHERE run_id = ?",
		finishedAt, segments, runners, s.runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// DecisionCount returns the number of decisions recorded for this run.
func (s *Store) DecisionCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM decisions WHERE run_id = ?", s.runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

// FlaggedBinCount returns the number of flagged bins recorded for this run.
func (s *Store) FlaggedBinCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM flagged_bins WHERE run_id = ?", s.runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count flagged bins: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

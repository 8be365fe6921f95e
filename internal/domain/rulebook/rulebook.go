// Package rulebook maps bin-level density and flow-rate metrics to
// Level-of-Service bands and operational flags.
//
// Threshold tables are externally supplied, versioned configuration. They are
// validated once, at construction; the evaluator never invents a threshold.
// Band comparison uses inclusive upper bounds: density <= band max selects
// that band.
package rulebook

import (
	"fmt"

	"github.com/raceops/courseflow/internal/domain/model"
)

// Schema classifies a segment type and selects which threshold table
// applies. Schemas are resolved once per segment at load time, not per bin.
type Schema string

// Canonical schemas. A rulebook may define additional ones; SchemaDefault is
// the documented global fallback for segments whose schema is not listed.
const (
	SchemaDefault     Schema = "default"
	SchemaStartCorral Schema = "start_corral"
	SchemaNarrow      Schema = "on_course_narrow"
	SchemaOpen        Schema = "on_course_open"
)

// Table holds one schema's ordered band boundaries.
type Table struct {
	Schema Schema

	// DensityMax holds inclusive upper bounds (runners/m²) for LOS A
	// through E, ascending. F is unbounded.
	DensityMax []float64

	// Rate thresholds in runners/m/min. Optional per schema; when
	// RatesDefined is false the rate criterion is simply not evaluated.
	RatesDefined bool
	RateWarn     float64
	RateCritical float64
}

// Evaluation is the rulebook verdict for one bin.
type Evaluation struct {
	LOS      model.LOSBand
	Severity model.FlagSeverity
	Reason   model.FlagReason
}

// Rulebook is an immutable, validated set of threshold tables.
type Rulebook struct {
	version string
	tables  map[Schema]Table
}

// New validates every table and builds a Rulebook. Invalid thresholds are a
// constructor-time error; there is no runtime default.
func New(version string, tables map[Schema]Table) (*Rulebook, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("rulebook %q has no tables: %w", version, ErrThresholdConfig)
	}
	out := make(map[Schema]Table, len(tables))
	for schema, tbl := range tables {
		tbl.Schema = schema
		if err := validateTable(tbl); err != nil {
			return nil, fmt.Errorf("rulebook %q schema %q: %w", version, schema, err)
		}
		out[schema] = tbl
	}
	return &Rulebook{version: version, tables: out}, nil
}

func validateTable(t Table) error {
	want := len(model.LOSBands) - 1
	if len(t.DensityMax) != want {
		return fmt.Errorf("need %d density bounds (A-E), got %d: %w",
			want, len(t.DensityMax), ErrThresholdConfig)
	}
	prev := 0.0
	for i, max := range t.DensityMax {
		if max <= prev {
			return fmt.Errorf("density bound %d (%s=%g) not strictly increasing and positive: %w",
				i, model.LOSBands[i], max, ErrThresholdConfig)
		}
		prev = max
	}
	if t.RatesDefined {
		if t.RateWarn <= 0 || t.RateCritical <= t.RateWarn {
			return fmt.Errorf("rate thresholds warn=%g critical=%g must satisfy 0 < warn < critical: %w",
				t.RateWarn, t.RateCritical, ErrThresholdConfig)
		}
	}
	return nil
}

// Version returns the rulebook's version string.
func (rb *Rulebook) Version() string { return rb.version }

// Schemas lists the schemas the rulebook defines.
func (rb *Rulebook) Schemas() []Schema {
	out := make([]Schema, 0, len(rb.tables))
	for s := range rb.tables {
		out = append(out, s)
	}
	return out
}

// Resolve returns the table for a segment's schema. An empty or unknown
// schema falls back to the default table; if there is no default either,
// the segment cannot be evaluated and resolution fails.
func (rb *Rulebook) Resolve(schema string) (Table, error) {
	if schema != "" {
		if tbl, ok := rb.tables[Schema(schema)]; ok {
			return tbl, nil
		}
	}
	if tbl, ok := rb.tables[SchemaDefault]; ok {
		return tbl, nil
	}
	return Table{}, fmt.Errorf("schema %q: %w", schema, ErrSchemaUnresolved)
}

// Evaluate classifies one bin's areal density (runners/m²) and flow rate
// (runners/m/min) against the table.
func (t Table) Evaluate(arealDensity, flowRate float64) Evaluation {
	band := model.LOSBands[len(model.LOSBands)-1]
	for i, max := range t.DensityMax {
		if arealDensity <= max {
			band = model.LOSBands[i]
			break
		}
	}

	densityCritical := band == model.LOSE || band == model.LOSF
	densityWatch := band == model.LOSD

	rateCritical := t.RatesDefined && flowRate >= t.RateCritical
	rateWarn := t.RatesDefined && flowRate >= t.RateWarn

	ev := Evaluation{LOS: band, Severity: model.SeverityNone, Reason: model.ReasonNone}
	switch {
	case densityCritical && rateCritical:
		ev.Severity = model.SeverityCritical
		ev.Reason = model.ReasonDensityRate
	case densityCritical:
		ev.Severity = model.SeverityCritical
		ev.Reason = model.ReasonDensity
	case rateCritical:
		ev.Severity = model.SeverityCritical
		ev.Reason = model.ReasonRate
	case densityWatch && rateWarn:
		ev.Severity = model.SeverityWatch
		ev.Reason = model.ReasonDensityRate
	case densityWatch:
		ev.Severity = model.SeverityWatch
		ev.Reason = model.ReasonDensity
	case rateWarn:
		ev.Severity = model.SeverityWatch
		ev.Reason = model.ReasonRate
	}
	return ev
}

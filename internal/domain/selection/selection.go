// Package selection decides, per segment, the single authoritative pass
// count to report downstream.
//
// The rule is strict-first and fail-closed: publish the strict count when it
// is positive, publish zero when it is zero, and never fall back to the raw
// count unless a registered, documented override says so. Every publication
// flows through Publisher.Publish — there is no second copy of this rule
// anywhere in the repo.
package selection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raceops/courseflow/pkg/logger"
	"github.com/raceops/courseflow/pkg/metrics"
)

// Publication reasons recorded on decisions.
const (
	ReasonStrict         = "strict"
	ReasonStrictZero     = "strict_zero_fail_closed"
	ReasonOverridePrefix = "override:"
)

// Decision is the traceable record emitted for every publication.
type Decision struct {
	SegmentKey      string
	RawCount        int
	StrictCount     int
	OverrideApplied bool
	OverrideName    string
	PublishedCount  int
	Reason          string
	DecidedAt       time.Time
}

// Override post-processes raw/strict counts for one segment, for a known and
// documented reason (e.g. a per-segment entry/exit-time correction). All
// overrides are enumerable and carry an expiry.
type Override struct {
	Name      string
	Rationale string
	Expires   time.Time
	Apply     func(raw, strict int) int
}

// RegisteredOverride pairs an override with its segment key for audits.
type RegisteredOverride struct {
	SegmentKey string
	Override   Override
}

// Registry holds per-segment overrides. Identical results regardless of the
// calling context: lookups are pure reads after registration.
type Registry struct {
	mu        sync.RWMutex
	overrides map[string]Override
}

// NewRegistry creates an empty override registry.
func NewRegistry() *Registry {
	return &Registry{overrides: make(map[string]Override)}
}

// Register adds an override for a segment key. Overrides without a name,
// rationale, expiry, or apply function are rejected: an exception nobody can
// audit is not an exception, it is a bug.
func (r *Registry) Register(segmentKey string, o Override) error {
	if segmentKey == "" || o.Name == "" || o.Rationale == "" || o.Apply == nil || o.Expires.IsZero() {
		return fmt.Errorf("override %q for %q: name, rationale, expiry and apply are all required: %w",
			o.Name, segmentKey, ErrBadOverride)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overrides[segmentKey]; ok {
		return fmt.Errorf("segment %q: %w", segmentKey, ErrDuplicateOverride)
	}
	r.overrides[segmentKey] = o
	return nil
}

// Lookup returns the override for a segment key, if any.
func (r *Registry) Lookup(segmentKey string) (Override, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overrides[segmentKey]
	return o, ok
}

// List returns all registered overrides sorted by segment key.
func (r *Registry) List() []RegisteredOverride {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredOverride, 0, len(r.overrides))
	for key, o := range r.overrides {
		out = append(out, RegisteredOverride{SegmentKey: key, Override: o})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentKey < out[j].SegmentKey })
	return out
}

// Publisher routes every publication decision through the one selection rule.
type Publisher struct {
	registry *Registry
	now      func() time.Time
	logger   logger.Logger
}

// Option applies a configuration option to the Publisher.
type Option func(*Publisher)

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher creates a Publisher over the given registry.
func NewPublisher(registry *Registry, opts ...Option) *Publisher {
	p := &Publisher{
		registry: registry,
		now:      time.Now,
		logger:   logger.Get().Named("selection"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish applies the selection rule and emits the decision record.
func (p *Publisher) Publish(ctx context.Context, segmentKey string, raw, strict int) Decision {
	d := Decision{
		SegmentKey:  segmentKey,
		RawCount:    raw,
		StrictCount: strict,
		DecidedAt:   p.now(),
	}

	if o, ok := p.registry.Lookup(segmentKey); ok {
		if d.DecidedAt.After(o.Expires) {
			p.logger.Warn(ctx, "override expired, falling through to strict-first rule",
				logger.String("segment", segmentKey),
				logger.String("override", o.Name),
				logger.String("expired", o.Expires.Format(time.RFC3339)),
			)
		} else {
			d.OverrideApplied = true
			d.OverrideName = o.Name
			d.PublishedCount = o.Apply(raw, strict)
			d.Reason = ReasonOverridePrefix + o.Name
			metrics.RecordOverrideApplied()
			p.emit(ctx, d)
			return d
		}
	}

	if strict > 0 {
		d.PublishedCount = strict
		d.Reason = ReasonStrict
	} else {
		// Fail closed. The raw count is never a substitute for strict.
		d.PublishedCount = 0
		d.Reason = ReasonStrictZero
	}
	p.emit(ctx, d)
	return d
}

func (p *Publisher) emit(ctx context.Context, d Decision) {
	metrics.RecordPublication()
	p.logger.Info(ctx, "publication decision",
		logger.String("segment", d.SegmentKey),
		logger.Int("raw", d.RawCount),
		logger.Int("strict", d.StrictCount),
		logger.Bool("override", d.OverrideApplied),
		logger.Int("published", d.PublishedCount),
		logger.String("reason", d.Reason),
	)
}

// Verify recomputes the decision through an independent rendition of the
// rule and reports whether the two agree. Dev/test instrumentation only: a
// disagreement is surfaced loudly, never resolved silently.
func (p *Publisher) Verify(ctx context.Context, d Decision) bool {
	want := referencePublish(d.RawCount, d.StrictCount, d.OverrideApplied, func(raw, strict int) int {
		o, ok := p.registry.Lookup(d.SegmentKey)
		if !ok {
			return -1
		}
		return o.Apply(raw, strict)
	})
	if want == d.PublishedCount {
		return true
	}
	metrics.RecordDivergence()
	p.logger.Error(ctx, "selection divergence: independent rule disagrees",
		logger.String("segment", d.SegmentKey),
		logger.Int("published", d.PublishedCount),
		logger.Int("recomputed", want),
	)
	return false
}

// referencePublish is a deliberately separate statement of the rule used
// only for cross-checking Publish.
func referencePublish(raw, strict int, overridden bool, apply func(raw, strict int) int) int {
	if overridden {
		return apply(raw, strict)
	}
	if strict > 0 {
		return strict
	}
	return 0
}

// Package falsepositive validates raw candidates: it raises, lowers or
// flags their confidence using structural checks (checksums, grammars,
// entropy, depth) and contextual exclusions (placeholder data,
// documentation, framework code, markup context, response status).
//
// A Filter is immutable after New and safe for concurrent use. Validate
// performs no I/O, is deterministic for a given candidate and exclusion
// set, and never drops a candidate: benign-looking matches are flagged
// for review instead.
package falsepositive

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/waftester/scantriage/pkg/finding"
)

// Option configures a Filter.
type Option func(*Filter)

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(f *Filter) { f.th = t }
}

// WithExclusions appends user exclusion patterns.
func WithExclusions(ex ...Exclusion) Option {
	return func(f *Filter) { f.pending = append(f.pending, ex...) }
}

// WithLogger sets the logger used for recovered validator failures.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// Filter applies per-category validation.
type Filter struct {
	th         Thresholds
	exclusions []*Exclusion
	pending    []Exclusion
	logger     *slog.Logger

	validated atomic.Int64
	flagged   atomic.Int64
	demoted   atomic.Int64
	promoted  atomic.Int64
	failures  atomic.Int64
}

// Stats is a snapshot of Filter counters.
type Stats struct {
	Validated int64
	Flagged   int64
	Demoted   int64
	Promoted  int64
	Failures  int64
}

// New builds a Filter. It fails on invalid thresholds or exclusions.
func New(opts ...Option) (*Filter, error) {
	f := &Filter{th: DefaultThresholds(), logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.th.Validate(); err != nil {
		return nil, err
	}
	for _, e := range f.pending {
		ex := e
		ex.Categories = slices.Clone(e.Categories)
		if err := ex.compile(); err != nil {
			return nil, err
		}
		f.exclusions = append(f.exclusions, &ex)
	}
	f.pending = nil
	return f, nil
}

// Thresholds returns the limits in effect.
func (f *Filter) Thresholds() Thresholds { return f.th }

// Stats returns the current counters.
func (f *Filter) Stats() Stats {
	return Stats{
		Validated: f.validated.Load(),
		Flagged:   f.flagged.Load(),
		Demoted:   f.demoted.Load(),
		Promoted:  f.promoted.Load(),
		Failures:  f.failures.Load(),
	}
}

// Validate adjusts c in place. If a check panics, c is restored to its
// state on entry.
func (f *Filter) Validate(c *finding.Candidate) {
	orig := *c
	orig.Reasons = slices.Clone(c.Reasons)
	defer func() {
		if r := recover(); r != nil {
			*c = orig
			f.failures.Add(1)
			f.logger.Debug("validator recovered",
				slog.String("rule", c.RuleID),
				slog.String("url", c.URL),
				slog.String("panic", fmt.Sprint(r)))
			return
		}
		f.validated.Add(1)
		if c.LikelyFalsePositive && !orig.LikelyFalsePositive {
			f.flagged.Add(1)
		}
		switch d := c.Confidence.Score() - orig.Confidence.Score(); {
		case d < 0:
			f.demoted.Add(1)
		case d > 0:
			f.promoted.Add(1)
		}
	}()

	switch c.Category {
	case finding.SensitiveData:
		f.checkSensitive(c)
	case finding.XSS, finding.SQLInjection, finding.CommandInjection:
		f.checkMarkup(c)
	case finding.PathTraversal:
		f.checkTraversal(c)
	case finding.BackupFileExposure, finding.SensitiveEndpoint:
		checkStatus(c)
	}

	for _, e := range f.exclusions {
		if e.Matches(c) {
			e.apply(c)
		}
	}
}

// ValidateAll validates each candidate in place.
func (f *Filter) ValidateAll(cands []finding.Candidate) {
	for i := range cands {
		f.Validate(&cands[i])
	}
}

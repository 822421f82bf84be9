// Package aggregate merges validated candidates into deduplicated
// findings and builds the final report.
//
// An Aggregator is owned by a single goroutine. The pipeline feeds it
// from one collector stage so the grouping map needs no locking.
package aggregate

import (
	"cmp"
	"encoding/hex"
	"slices"

	"github.com/spaolacci/murmur3"

	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/strutil"
	"github.com/waftester/scantriage/pkg/traffic"
)

// Key identifies a group of equivalent candidates.
type Key struct {
	Category finding.Category
	URL      string
	Evidence string // normalized
}

// Fingerprint returns a stable hex identifier for k.
func (k Key) Fingerprint() string {
	h := murmur3.New128()
	h.Write([]byte(k.Category))
	h.Write([]byte{0})
	h.Write([]byte(k.URL))
	h.Write([]byte{0})
	h.Write([]byte(k.Evidence))
	return hex.EncodeToString(h.Sum(nil))
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithNormalizedLength sets how many runes of evidence take part in
// the grouping key.
func WithNormalizedLength(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.normLen = n
		}
	}
}

type group struct {
	f       finding.Finding
	rep     rank
	allFP   bool
	fields  map[traffic.FieldKind]bool
	reasons map[string]bool
}

// Aggregator groups candidates by (category, url, normalized evidence).
// The merged result does not depend on the order candidates arrive in.
type Aggregator struct {
	normLen    int
	groups     map[Key]*group
	candidates int64
}

// New creates an empty Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		normLen: defaults.NormalizedEvidenceLength,
		groups:  make(map[Key]*group),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// KeyOf returns the grouping key for c.
func (a *Aggregator) KeyOf(c *finding.Candidate) Key {
	return Key{
		Category: c.Category,
		URL:      c.URL,
		Evidence: strutil.Normalize(c.Evidence, a.normLen),
	}
}

// Add merges one candidate.
func (a *Aggregator) Add(c finding.Candidate) {
	a.candidates++
	k := a.KeyOf(&c)
	g, ok := a.groups[k]
	if !ok {
		g = &group{
			f: finding.Finding{
				ID:         k.Fingerprint(),
				Type:       c.Category,
				Name:       c.Name,
				RuleID:     c.RuleID,
				URL:        c.URL,
				Method:     c.Method,
				Evidence:   c.Evidence,
				Confidence: c.Confidence,
				Severity:   c.Severity,
			},
			rep:     rankOf(&c),
			allFP:   true,
			fields:  make(map[traffic.FieldKind]bool),
			reasons: make(map[string]bool),
		}
		a.groups[k] = g
	} else if r := rankOf(&c); r.beats(g.rep) {
		g.rep = r
		g.f.Name = c.Name
		g.f.RuleID = c.RuleID
		g.f.Method = c.Method
		g.f.Evidence = c.Evidence
	}

	g.f.OccurrenceCount++
	g.f.Confidence = g.f.Confidence.Max(c.Confidence)
	g.f.Severity = g.f.Severity.Max(c.Severity)
	g.allFP = g.allFP && c.LikelyFalsePositive
	g.fields[c.Field] = true
	for _, r := range c.Reasons {
		g.reasons[r] = true
	}
}

// AddAll merges a batch of candidates.
func (a *Aggregator) AddAll(cands []finding.Candidate) {
	for _, c := range cands {
		a.Add(c)
	}
}

// Len returns the number of groups so far.
func (a *Aggregator) Len() int { return len(a.groups) }

// Candidates returns how many candidates were merged.
func (a *Aggregator) Candidates() int64 { return a.candidates }

// rank orders the candidates of a group; the best one supplies the
// finding's name, rule, method and evidence.
type rank struct {
	severity, confidence   int
	rule, evidence, method string
}

func rankOf(c *finding.Candidate) rank {
	return rank{
		severity:   c.Severity.Score(),
		confidence: c.Confidence.Score(),
		rule:       c.RuleID,
		evidence:   c.Evidence,
		method:     c.Method,
	}
}

// beats reports whether r outranks o: stronger severity, then
// confidence, then the lowest rule ID, evidence and method.
func (r rank) beats(o rank) bool {
	return cmp.Or(
		cmp.Compare(r.severity, o.severity),
		cmp.Compare(r.confidence, o.confidence),
		cmp.Compare(o.rule, r.rule),
		cmp.Compare(o.evidence, r.evidence),
		cmp.Compare(o.method, r.method),
	) > 0
}

// Findings returns every group as a finding, sorted, without applying a
// confidence threshold.
func (a *Aggregator) Findings() []finding.Finding {
	out := make([]finding.Finding, 0, len(a.groups))
	for _, g := range a.groups {
		out = append(out, g.finding())
	}
	Sort(out)
	return out
}

func (g *group) finding() finding.Finding {
	f := g.f
	f.LikelyFalsePositive = g.allFP
	for _, k := range traffic.FieldKinds {
		if g.fields[k] {
			f.Fields = append(f.Fields, k)
		}
	}
	for r := range g.reasons {
		f.Reasons = append(f.Reasons, r)
	}
	slices.Sort(f.Reasons)
	return f
}

// Sort orders findings by severity and confidence (both descending), then
// URL, category, evidence and ID ascending.
func Sort(fs []finding.Finding) {
	slices.SortFunc(fs, func(a, b finding.Finding) int {
		return cmp.Or(
			cmp.Compare(b.Severity.Score(), a.Severity.Score()),
			cmp.Compare(b.Confidence.Score(), a.Confidence.Score()),
			cmp.Compare(a.URL, b.URL),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Evidence, b.Evidence),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// Report applies the minimum confidence and summarizes the result. It
// does not consume the Aggregator; calling it twice with different
// thresholds is valid.
func (a *Aggregator) Report(min finding.Confidence) *Report {
	all := a.Findings()
	r := &Report{
		Summary:  newSummary(),
		Findings: make([]finding.Finding, 0, len(all)),
	}
	r.Summary.TotalFound = len(all)
	for _, f := range all {
		if !f.Confidence.AtLeast(min) {
			r.Summary.FilteredByConfidence++
			continue
		}
		r.Findings = append(r.Findings, f)
		r.Summary.count(f)
	}
	r.Summary.Reported = len(r.Findings)
	return r
}

// Package matcher evaluates catalog rules against chunks and emits raw
// candidates.
//
// Matching is chunk-local and stateless apart from counters: a Matcher
// may be shared by any number of workers. Within one category, when two
// rules match overlapping text the rule earlier in catalog order keeps
// the span. Different categories never suppress each other.
package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/waftester/scantriage/pkg/catalog"
	"github.com/waftester/scantriage/pkg/chunker"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/strutil"
	"github.com/waftester/scantriage/pkg/traffic"
)

var (
	// ErrBinaryChunk marks a chunk skipped because it holds binary data.
	ErrBinaryChunk = errors.New("matcher: binary content")

	// ErrChunkPanic marks a chunk skipped because matching it panicked.
	ErrChunkPanic = errors.New("matcher: chunk could not be processed")
)

// Option configures a Matcher.
type Option func(*Matcher)

// WithEvidenceLength bounds reported evidence, in runes.
func WithEvidenceLength(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.evidenceLen = n
		}
	}
}

// WithContextRadius sets how many bytes around a match the validator sees.
func WithContextRadius(n int) Option {
	return func(m *Matcher) {
		if n >= 0 {
			m.contextRadius = n
		}
	}
}

// WithMaxMatches caps matches per rule per chunk.
func WithMaxMatches(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxMatches = n
		}
	}
}

// WithLogger sets the logger for skipped-chunk diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// Matcher turns chunks into candidates.
type Matcher struct {
	cat           *catalog.Catalog
	evidenceLen   int
	contextRadius int
	maxMatches    int
	logger        *slog.Logger

	scanned atomic.Int64
	skipped atomic.Int64
}

// New returns a Matcher over cat.
func New(cat *catalog.Catalog, opts ...Option) *Matcher {
	m := &Matcher{
		cat:           cat,
		evidenceLen:   defaults.EvidenceMaxLength,
		contextRadius: defaults.ContextRadius,
		maxMatches:    defaults.MaxMatchesPerRule,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scanned returns the number of chunks matched successfully.
func (m *Matcher) Scanned() int64 { return m.scanned.Load() }

// Skipped returns the number of chunks that could not be processed.
func (m *Matcher) Skipped() int64 { return m.skipped.Load() }

// Match evaluates every applicable rule against ch. A non-nil error
// means the chunk was skipped and counted; it never aborts a scan.
func (m *Matcher) Match(ch chunker.Chunk) (cands []finding.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cands = nil
			err = fmt.Errorf("%w: %v", ErrChunkPanic, r)
		}
		if err != nil {
			m.skipped.Add(1)
			m.logger.Debug("chunk skipped",
				slog.String("url", ch.URL),
				slog.String("field", string(ch.Field)),
				slog.Int("index", ch.Index),
				slog.String("reason", err.Error()))
			return
		}
		m.scanned.Add(1)
	}()

	if !chunker.Single(ch.Field) && strutil.BinaryRatio(ch.Text, defaults.BinarySample) > defaults.BinaryRatio {
		return nil, ErrBinaryChunk
	}

	var claimed map[finding.Category][]span
	for _, rule := range m.cat.ForField(ch.Field) {
		if !rule.AcceptsStatus(ch.StatusCode) || !rule.AcceptsURL(ch.URL) {
			continue
		}
		if rule.Absent {
			if c, ok := m.matchAbsent(rule, ch); ok {
				cands = append(cands, c)
			}
			continue
		}
		emitted := 0
		for _, loc := range rule.Regexp().FindAllStringSubmatchIndex(ch.Text, -1) {
			start, end := loc[0], loc[1]
			if end == start {
				continue
			}
			if claimed == nil {
				claimed = make(map[finding.Category][]span)
			}
			if overlapsAny(claimed[rule.Category], start, end) {
				continue
			}
			// Spans owned by a neighbouring window are still claimed so
			// later rules of the category cannot take them over.
			claimed[rule.Category] = append(claimed[rule.Category], span{start, end})
			if reported(ch, start, end) || deferred(ch, start, end) {
				continue
			}
			cands = append(cands, m.candidate(rule, ch, loc))
			if emitted++; emitted == m.maxMatches {
				break
			}
		}
	}
	return cands, nil
}

func (m *Matcher) candidate(rule *catalog.Rule, ch chunker.Chunk, loc []int) finding.Candidate {
	start, end := loc[0], loc[1]
	vs, ve := start, end
	if vi := rule.ValueIndex(); vi > 0 && loc[2*vi] >= 0 {
		vs, ve = loc[2*vi], loc[2*vi+1]
	}
	surround, offset := strutil.Window(ch.Text, vs, ve, m.contextRadius)

	c := m.base(rule, ch)
	c.Evidence = strutil.Center(strings.TrimSpace(ch.Text[start:end]), m.evidenceLen)
	c.Value = strutil.Head(ch.Text[vs:ve], defaults.MaxValueLength)
	c.Context = surround
	c.MatchOffset = offset
	return c
}

// matchAbsent fires when the trigger is present and the expression is
// not. Its evidence is the rule's fixed text, so every firing for one URL
// collapses into a single finding.
func (m *Matcher) matchAbsent(rule *catalog.Rule, ch chunker.Chunk) (finding.Candidate, bool) {
	trig := rule.TriggerRegexp()
	if trig == nil {
		return finding.Candidate{}, false
	}
	loc := trig.FindStringIndex(ch.Text)
	if loc == nil || rule.Regexp().MatchString(ch.Text) {
		return finding.Candidate{}, false
	}
	surround, offset := strutil.Window(ch.Text, loc[0], loc[1], m.contextRadius)
	c := m.base(rule, ch)
	c.Evidence = strutil.Center(rule.Evidence, m.evidenceLen)
	c.Value = ch.Text[loc[0]:loc[1]]
	c.Context = surround
	c.MatchOffset = offset
	return c, true
}

func (m *Matcher) base(rule *catalog.Rule, ch chunker.Chunk) finding.Candidate {
	return finding.Candidate{
		RuleID:     rule.ID,
		Category:   rule.Category,
		Subkind:    rule.Subkind,
		Name:       rule.DisplayName(),
		URL:        ch.URL,
		Method:     ch.Method,
		Status:     ch.StatusCode,
		Field:      ch.Field,
		Confidence: rule.Confidence,
		Severity:   rule.Severity,
	}
}

// reported reports whether the previous window of the field already
// emitted the match. That holds when it ends inside the lead, or when it
// covers exactly the lead, which is the cut-off end of a match the
// previous window kept.
func reported(ch chunker.Chunk, start, end int) bool {
	return end < ch.Lead || (ch.Lead > 0 && start == 0 && end == ch.Lead)
}

// deferred reports whether the match runs into the end of the window
// and starts inside the bytes the next window repeats. The next window
// sees it intact, so only that window reports it.
func deferred(ch chunker.Chunk, start, end int) bool {
	return ch.More && end == len(ch.Text) && start > len(ch.Text)-ch.Tail
}

type span struct{ start, end int }

func overlapsAny(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

// MatchRecord chunks rec with c and matches every chunk. It is a
// convenience for callers that do not run a pipeline.
func (m *Matcher) MatchRecord(c *chunker.Chunker, rec *traffic.Record) []finding.Candidate {
	var out []finding.Candidate
	for ch := range c.Chunks(rec, defaults.MaxHeaderBlock) {
		cands, err := m.Match(ch)
		if err != nil {
			continue
		}
		out = append(out, cands...)
	}
	return out
}

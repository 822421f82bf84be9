package aggregate

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/traffic"
)

func cand(cat finding.Category, url, evidence string, conf finding.Confidence, sev finding.Severity) finding.Candidate {
	return finding.Candidate{
		RuleID:     string(cat) + "-rule",
		Category:   cat,
		Name:       cat.DisplayName(),
		URL:        url,
		Method:     "GET",
		Field:      traffic.FieldResponse,
		Evidence:   evidence,
		Confidence: conf,
		Severity:   sev,
	}
}

func TestMergeKeepsStrongest(t *testing.T) {
	a := New()
	low := cand(finding.XSS, "http://a/x", "<script>alert(1)</script>", finding.ConfidenceLow, finding.Medium)
	low.LikelyFalsePositive = true
	low.Reasons = []string{"inside code element"}
	high := cand(finding.XSS, "http://a/x", "  <SCRIPT>alert(1)</script> ", finding.ConfidenceHigh, finding.High)
	high.Field = traffic.FieldURL

	a.Add(low)
	a.Add(high)
	require.Equal(t, 1, a.Len())

	fs := a.Findings()
	require.Len(t, fs, 1)
	f := fs[0]
	assert.Equal(t, 2, f.OccurrenceCount)
	assert.Equal(t, finding.ConfidenceHigh, f.Confidence)
	assert.Equal(t, finding.High, f.Severity)
	assert.False(t, f.LikelyFalsePositive, "one unflagged instance keeps the finding unflagged")
	assert.Equal(t, []traffic.FieldKind{traffic.FieldURL, traffic.FieldResponse}, f.Fields)
	assert.Equal(t, []string{"inside code element"}, f.Reasons)
	assert.Equal(t, high.Evidence, f.Evidence)
}

func TestMergeAllFlagged(t *testing.T) {
	a := New()
	for range 3 {
		c := cand(finding.SensitiveData, "http://a/", "test@example.com", finding.ConfidenceMedium, finding.Low)
		c.LikelyFalsePositive = true
		a.Add(c)
	}
	fs := a.Findings()
	require.Len(t, fs, 1)
	assert.True(t, fs[0].LikelyFalsePositive)
	assert.Equal(t, 3, fs[0].OccurrenceCount)
	assert.EqualValues(t, 3, a.Candidates())
}

func TestKeySeparatesCategoryAndURL(t *testing.T) {
	a := New()
	a.Add(cand(finding.XSS, "http://a/1", "payload", finding.ConfidenceHigh, finding.High))
	a.Add(cand(finding.XSS, "http://a/2", "payload", finding.ConfidenceHigh, finding.High))
	a.Add(cand(finding.SQLInjection, "http://a/1", "payload", finding.ConfidenceHigh, finding.High))
	assert.Equal(t, 3, a.Len())
}

func TestNormalizedLength(t *testing.T) {
	prefix := "x"
	for range 120 {
		prefix += "y"
	}
	a := New(WithNormalizedLength(50))
	a.Add(cand(finding.XSS, "http://a/", prefix+"AAA", finding.ConfidenceHigh, finding.High))
	a.Add(cand(finding.XSS, "http://a/", prefix+"BBB", finding.ConfidenceHigh, finding.High))
	assert.Equal(t, 1, a.Len())
}

func TestFingerprintStable(t *testing.T) {
	k := Key{Category: finding.XSS, URL: "http://a/", Evidence: "<script>"}
	assert.Equal(t, k.Fingerprint(), k.Fingerprint())
	assert.Len(t, k.Fingerprint(), 32)

	other := k
	other.URL = "http://b/"
	assert.NotEqual(t, k.Fingerprint(), other.Fingerprint())
}

func randomCandidates(r *rand.Rand, n int) []finding.Candidate {
	cats := []finding.Category{finding.XSS, finding.SQLInjection, finding.SensitiveData, finding.PathTraversal}
	out := make([]finding.Candidate, n)
	for i := range out {
		c := cand(
			cats[r.IntN(len(cats))],
			fmt.Sprintf("http://host/%d", r.IntN(5)),
			fmt.Sprintf("Evidence %d", r.IntN(6)),
			finding.Confidences[r.IntN(len(finding.Confidences))],
			finding.Severities[r.IntN(len(finding.Severities))],
		)
		c.RuleID = fmt.Sprintf("rule-%d", r.IntN(3))
		c.LikelyFalsePositive = r.IntN(3) == 0
		if c.LikelyFalsePositive {
			c.Reasons = []string{fmt.Sprintf("reason %d", r.IntN(2))}
		}
		out[i] = c
	}
	return out
}

func TestDedupInvariant(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for trial := range 20 {
		a := New()
		a.AddAll(randomCandidates(r, 200))
		seen := make(map[Key]bool)
		for _, f := range a.Report(finding.ConfidenceLow).Findings {
			k := Key{Category: f.Type, URL: f.URL, Evidence: a.KeyOf(&finding.Candidate{Evidence: f.Evidence}).Evidence}
			assert.False(t, seen[k], "trial %d: duplicate %v", trial, k)
			seen[k] = true
		}
	}
}

func TestOrderIndependent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	cands := randomCandidates(r, 300)

	a := New()
	a.AddAll(cands)
	want := a.Report(finding.ConfidenceLow)

	for range 5 {
		shuffled := append([]finding.Candidate(nil), cands...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		b := New()
		b.AddAll(shuffled)
		assert.Equal(t, want, b.Report(finding.ConfidenceLow))
	}
}

func TestThresholdMonotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	a := New()
	a.AddAll(randomCandidates(r, 500))

	low := a.Report(finding.ConfidenceLow)
	medium := a.Report(finding.ConfidenceMedium)
	high := a.Report(finding.ConfidenceHigh)
	certain := a.Report(finding.ConfidenceCertain)

	assert.GreaterOrEqual(t, len(low.Findings), len(medium.Findings))
	assert.GreaterOrEqual(t, len(medium.Findings), len(high.Findings))
	assert.GreaterOrEqual(t, len(high.Findings), len(certain.Findings))

	for _, rep := range []*Report{low, medium, high, certain} {
		assert.Equal(t, rep.Summary.TotalFound, rep.Summary.Reported+rep.Summary.FilteredByConfidence)
	}
	assert.Zero(t, low.Summary.FilteredByConfidence)
}

func TestReportOrderingAndSummary(t *testing.T) {
	a := New()
	a.Add(cand(finding.SensitiveData, "http://b/", "a@b.io", finding.ConfidenceMedium, finding.Low))
	a.Add(cand(finding.SQLInjection, "http://b/", "' or 1=1", finding.ConfidenceHigh, finding.Critical))
	a.Add(cand(finding.SQLInjection, "http://a/", "' or 2=2", finding.ConfidenceHigh, finding.Critical))
	a.Add(cand(finding.XSS, "http://a/", "<script>", finding.ConfidenceCertain, finding.Critical))
	a.Add(cand(finding.PathTraversal, "http://a/", "../x", finding.ConfidenceLow, finding.High))
	flagged := cand(finding.MissingHeader, "http://a/", "X-Frame-Options missing", finding.ConfidenceCertain, finding.Medium)
	flagged.LikelyFalsePositive = true
	a.Add(flagged)

	rep := a.Report(finding.ConfidenceMedium)
	var got []string
	for _, f := range rep.Findings {
		got = append(got, string(f.Type)+" "+f.URL)
	}
	assert.Equal(t, []string{
		"xss http://a/",
		"sql_injection http://a/",
		"sql_injection http://b/",
		"missing_header http://a/",
		"sensitive_data http://b/",
	}, got)

	s := rep.Summary
	assert.Equal(t, 6, s.TotalFound)
	assert.Equal(t, 5, s.Reported)
	assert.Equal(t, 1, s.FilteredByConfidence)
	assert.Equal(t, 1, s.FlaggedFalsePositive)
	assert.Equal(t, 3, s.BySeverity[finding.Critical])
	assert.Equal(t, 0, s.BySeverity[finding.High])
	assert.Equal(t, 2, s.ByConfidence[finding.ConfidenceHigh])
	assert.Equal(t, 2, s.ByCategory[finding.SQLInjection])
	assert.Len(t, s.BySeverity, len(finding.Severities))

	top := rep.Top(4)
	require.Len(t, top, 4)
	assert.Equal(t, finding.SensitiveData, top[3].Type, "flagged findings are skipped while others remain")
	assert.False(t, rep.Empty())
}

func TestEmptyReport(t *testing.T) {
	rep := New().Report(finding.ConfidenceMedium)
	assert.True(t, rep.Empty())
	assert.NotNil(t, rep.Findings)
	assert.Zero(t, rep.Summary.TotalFound)
	assert.Empty(t, rep.Top(10))
}

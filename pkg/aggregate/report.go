package aggregate

import (
	"time"

	"github.com/waftester/scantriage/pkg/finding"
)

// Report is the self-describing result of one run.
type Report struct {
	Meta     RunMeta           `json:"metadata"`
	Summary  Summary           `json:"summary"`
	Findings []finding.Finding `json:"findings"`
}

// RunMeta describes how a report was produced.
type RunMeta struct {
	RunID          string             `json:"run_id"`
	Tool           string             `json:"tool"`
	Version        string             `json:"version"`
	CatalogVersion string             `json:"catalog_version"`
	Rules          int                `json:"rules"`
	Input          string             `json:"input,omitempty"`
	Format         string             `json:"format,omitempty"`
	MinConfidence  finding.Confidence `json:"min_confidence"`
	Workers        int                `json:"workers"`
	ChunkSize      int                `json:"chunk_size"`
	ChunkOverlap   int                `json:"chunk_overlap"`

	RecordsRead     int64 `json:"records_read"`
	RecordsSkipped  int64 `json:"records_skipped"`
	ChunksProcessed int64 `json:"chunks_processed"`
	ChunksSkipped   int64 `json:"chunks_skipped"`
	Candidates      int64 `json:"candidates"`
	ValidatorErrors int64 `json:"validator_errors"`

	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	Interrupted bool      `json:"interrupted,omitzero"`
}

// Summary holds report statistics. TotalFound counts deduplicated
// findings before the confidence threshold; the per-level maps count
// only reported findings.
type Summary struct {
	TotalFound           int `json:"total_found"`
	Reported             int `json:"reported"`
	FilteredByConfidence int `json:"filtered_by_confidence"`
	FlaggedFalsePositive int `json:"flagged_false_positive"`

	BySeverity   map[finding.Severity]int   `json:"by_severity"`
	ByConfidence map[finding.Confidence]int `json:"by_confidence"`
	ByCategory   map[finding.Category]int   `json:"by_category"`
}

func newSummary() Summary {
	s := Summary{
		BySeverity:   make(map[finding.Severity]int, len(finding.Severities)),
		ByConfidence: make(map[finding.Confidence]int, len(finding.Confidences)),
		ByCategory:   make(map[finding.Category]int),
	}
	for _, sev := range finding.Severities {
		s.BySeverity[sev] = 0
	}
	for _, c := range finding.Confidences {
		s.ByConfidence[c] = 0
	}
	return s
}

func (s *Summary) count(f finding.Finding) {
	s.BySeverity[f.Severity]++
	s.ByConfidence[f.Confidence]++
	s.ByCategory[f.Type]++
	if f.LikelyFalsePositive {
		s.FlaggedFalsePositive++
	}
}

// Top returns up to n reported findings, skipping likely false
// positives unless there are too few others.
func (r *Report) Top(n int) []finding.Finding {
	out := make([]finding.Finding, 0, n)
	for _, f := range r.Findings {
		if len(out) == n {
			return out
		}
		if !f.LikelyFalsePositive {
			out = append(out, f)
		}
	}
	for _, f := range r.Findings {
		if len(out) == n {
			break
		}
		if f.LikelyFalsePositive {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether no finding met the threshold.
func (r *Report) Empty() bool { return len(r.Findings) == 0 }

package finding

import "github.com/waftester/scantriage/pkg/traffic"

// Finding is the externally visible, deduplicated unit of a report.
// Within one report no two Findings share (Type, URL, normalized Evidence).
type Finding struct {
	ID                  string              `json:"id"`
	Type                Category            `json:"type"`
	Name                string              `json:"name"`
	RuleID              string              `json:"rule_id"`
	URL                 string              `json:"url"`
	Method              string              `json:"method,omitempty"`
	Evidence            string              `json:"evidence"`
	Confidence          Confidence          `json:"confidence"`
	Severity            Severity            `json:"severity"`
	LikelyFalsePositive bool                `json:"likely_false_positive"`
	OccurrenceCount     int                 `json:"occurrence_count"`
	Fields              []traffic.FieldKind `json:"fields,omitempty"`
	Reasons             []string            `json:"reasons,omitempty"`
	CWE                 string              `json:"cwe,omitempty"`
	Remediation         string              `json:"remediation,omitempty"`
}

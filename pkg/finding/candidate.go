package finding

import "github.com/waftester/scantriage/pkg/traffic"

// Candidate is one raw match produced by the matcher, before
// false-positive filtering and deduplication.
type Candidate struct {
	RuleID   string
	Category Category
	Subkind  string
	Name     string
	URL      string
	Method   string
	Status   int
	Field    traffic.FieldKind

	// Evidence is the bounded text reported to users.
	Evidence string
	// Value is the part of the match the validator inspects (the rule's
	// "value" capture group, or the whole match).
	Value string
	// Context is the text surrounding the match inside its chunk.
	// It is consumed by the validator and never reported.
	Context string
	// MatchOffset is the byte offset of Value inside Context.
	MatchOffset int

	Confidence          Confidence
	Severity            Severity
	LikelyFalsePositive bool
	Reasons             []string
}

// Flag marks the candidate as a likely false positive with a reason.
func (c *Candidate) Flag(reason string) {
	c.LikelyFalsePositive = true
	c.Reasons = append(c.Reasons, reason)
}

// Demote lowers the confidence to at most max and records why.
func (c *Candidate) Demote(max Confidence, reason string) {
	if c.Confidence.Score() > max.Score() {
		c.Confidence = max
		c.Reasons = append(c.Reasons, reason)
	}
}

// Promote raises the confidence to at least min and records why.
func (c *Candidate) Promote(min Confidence, reason string) {
	if c.Confidence.Score() < min.Score() {
		c.Confidence = min
		c.Reasons = append(c.Reasons, reason)
	}
}

package finding

import (
	"fmt"
	"strings"
)

// Confidence is the estimated likelihood that a finding is a true positive.
type Confidence string

const (
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
	ConfidenceCertain Confidence = "certain"
)

// Confidences lists every level from most to least confident.
var Confidences = []Confidence{ConfidenceCertain, ConfidenceHigh, ConfidenceMedium, ConfidenceLow}

// IsValid reports whether c is a recognized confidence level.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh, ConfidenceCertain:
		return true
	}
	return false
}

// Score returns Certain=4, High=3, Medium=2, Low=1, Unknown=0.
func (c Confidence) Score() int {
	switch c {
	case ConfidenceCertain:
		return 4
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// String returns the confidence as a string.
func (c Confidence) String() string {
	return string(c)
}

// AtLeast reports whether c is at or above min.
func (c Confidence) AtLeast(min Confidence) bool {
	return c.Score() >= min.Score()
}

// Max returns the more confident of c and other.
func (c Confidence) Max(other Confidence) Confidence {
	if other.Score() > c.Score() {
		return other
	}
	return c
}

// Min returns the less confident of c and other.
func (c Confidence) Min(other Confidence) Confidence {
	if other.Score() < c.Score() {
		return other
	}
	return c
}

// Lower moves c down by steps levels, stopping at Low.
func (c Confidence) Lower(steps int) Confidence {
	return confidenceFromScore(c.Score() - steps)
}

// Raise moves c up by steps levels, stopping at Certain.
func (c Confidence) Raise(steps int) Confidence {
	return confidenceFromScore(c.Score() + steps)
}

func confidenceFromScore(score int) Confidence {
	switch {
	case score <= 1:
		return ConfidenceLow
	case score == 2:
		return ConfidenceMedium
	case score == 3:
		return ConfidenceHigh
	default:
		return ConfidenceCertain
	}
}

// ParseConfidence parses a confidence name case-insensitively, so the
// CLI spelling "Medium" and the wire spelling "medium" both work.
func ParseConfidence(name string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(name)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownConfidence, name)
	}
	return c, nil
}

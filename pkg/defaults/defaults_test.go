package defaults_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/finding"
)

func TestVersionIsSemver(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`), defaults.Version)
}

func TestChunkOverlapSmallerThanSize(t *testing.T) {
	assert.Less(t, defaults.ChunkOverlap, defaults.ChunkSize)
	assert.Greater(t, defaults.ChunkOverlap, defaults.EvidenceMaxLength,
		"overlap must cover a full evidence window")
}

func TestNormalizedLengthWithinEvidence(t *testing.T) {
	assert.LessOrEqual(t, defaults.NormalizedEvidenceLength, defaults.EvidenceMaxLength)
}

func TestMinConfidenceParses(t *testing.T) {
	c, err := finding.ParseConfidence(defaults.MinConfidence)
	assert.NoError(t, err)
	assert.Equal(t, finding.ConfidenceMedium, c)
}

func TestWorkersPositive(t *testing.T) {
	assert.GreaterOrEqual(t, defaults.Workers(), 1)
}

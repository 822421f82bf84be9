package finding

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Severity
		want bool
	}{
		{Critical, true},
		{High, true},
		{Medium, true},
		{Low, true},
		{Info, true},
		{"Unknown", false},
		{"", false},
		{"CRITICAL", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.s.IsValid())
		})
	}
}

func TestSeverityScoreOrdering(t *testing.T) {
	t.Parallel()

	shuffled := []Severity{Low, Critical, Info, Medium, High}
	sort.Slice(shuffled, func(i, j int) bool { return shuffled[i].Score() > shuffled[j].Score() })
	assert.Equal(t, Severities, shuffled)
	assert.Equal(t, 0, Severity("bogus").Score())
}

func TestSeverityMax(t *testing.T) {
	t.Parallel()

	assert.Equal(t, High, Medium.Max(High))
	assert.Equal(t, Critical, Critical.Max(Low))
	assert.Equal(t, Info, Severity("").Max(Info))
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"High", "HIGH", " high "} {
		s, err := ParseSeverity(in)
		require.NoError(t, err)
		assert.Equal(t, High, s)
	}

	_, err := ParseSeverity("severe")
	assert.True(t, errors.Is(err, ErrUnknownSeverity))
}

func TestSeverityToSARIF(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "error", Critical.ToSARIF())
	assert.Equal(t, "error", High.ToSARIF())
	assert.Equal(t, "warning", Medium.ToSARIF())
	assert.Equal(t, "note", Low.ToSARIF())
	assert.Equal(t, "note", Info.ToSARIF())
	assert.Equal(t, "9.5", Critical.ToSARIFScore())
}

package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/jsonutil"
	"github.com/waftester/scantriage/pkg/traffic"
)

func sampleReport() *aggregate.Report {
	findings := []finding.Finding{
		{
			ID:              "a1",
			Type:            finding.SQLInjection,
			Name:            "SQL tautology",
			RuleID:          "sqli-tautology",
			URL:             "https://shop.test/search?q=1",
			Method:          "GET",
			Evidence:        "' OR 1=1 --",
			Confidence:      finding.ConfidenceHigh,
			Severity:        finding.Critical,
			OccurrenceCount: 3,
			Fields:          []traffic.FieldKind{traffic.FieldRequest, traffic.FieldResponse},
			CWE:             "CWE-89",
			Remediation:     "Use parameterized queries.",
		},
		{
			ID:                  "b2",
			Type:                finding.SensitiveData,
			Name:                "Email address",
			RuleID:              "sensitive-email",
			URL:                 "https://shop.test/about",
			Evidence:            "user@example.com",
			Confidence:          finding.ConfidenceMedium,
			Severity:            finding.Low,
			LikelyFalsePositive: true,
			OccurrenceCount:     1,
			Reasons:             []string{"placeholder domain"},
		},
	}
	return &aggregate.Report{
		Meta: aggregate.RunMeta{
			RunID:           "run-1",
			Tool:            "scantriage",
			Version:         "1.2.0",
			CatalogVersion:  "2024.1",
			Rules:           80,
			Input:           "/tmp/shop.xml",
			Format:          "burp-xml",
			MinConfidence:   finding.ConfidenceMedium,
			RecordsRead:     12,
			RecordsSkipped:  1,
			ChunksProcessed: 40,
			Candidates:      9,
			StartedAt:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			DurationMS:      1530,
		},
		Summary: aggregate.Summary{
			TotalFound:           3,
			Reported:             2,
			FilteredByConfidence: 1,
			FlaggedFalsePositive: 1,
			BySeverity: map[finding.Severity]int{
				finding.Critical: 1, finding.High: 0, finding.Medium: 0, finding.Low: 1, finding.Info: 0,
			},
			ByConfidence: map[finding.Confidence]int{
				finding.ConfidenceCertain: 0, finding.ConfidenceHigh: 1, finding.ConfidenceMedium: 1, finding.ConfidenceLow: 0,
			},
			ByCategory: map[finding.Category]int{finding.SQLInjection: 1, finding.SensitiveData: 1},
		},
		Findings: findings,
	}
}

func TestBaseName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/data/shop.xml":        "shop",
		"capture.2024.har":      "capture.2024",
		"noext":                 "noext",
		"-":                     "session",
		"":                      "session",
		"/data/.hidden":         ".hidden",
		filepath.Join("a", "b"): "b",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), in)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var doc struct {
		Meta struct {
			RunID       string `json:"run_id"`
			Interrupted *bool  `json:"interrupted"`
		} `json:"metadata"`
		Summary struct {
			Reported   int            `json:"reported"`
			BySeverity map[string]int `json:"by_severity"`
		} `json:"summary"`
		Findings []struct {
			Type       string   `json:"type"`
			Confidence string   `json:"confidence"`
			Fields     []string `json:"fields"`
		} `json:"findings"`
	}
	require.NoError(t, jsonutil.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "run-1", doc.Meta.RunID)
	assert.Nil(t, doc.Meta.Interrupted, "false interrupted flag is omitted")
	assert.Equal(t, 2, doc.Summary.Reported)
	assert.Len(t, doc.Summary.BySeverity, 5)
	require.Len(t, doc.Findings, 2)
	assert.Equal(t, "sql_injection", doc.Findings[0].Type)
	assert.Equal(t, "high", doc.Findings[0].Confidence)
	assert.Equal(t, []string{"request", "response"}, doc.Findings[0].Fields)

	// Map members are sorted, so the bytes are stable.
	var again bytes.Buffer
	require.NoError(t, WriteJSON(&again, sampleReport()))
	assert.Equal(t, buf.String(), again.String())
}

func TestWriteJSONEmptyFindings(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	rep.Findings = nil

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))
	assert.Contains(t, buf.String(), `"findings": []`)
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, rep, Files{Findings: "out/shop_vulnerabilities.json"}))
	text := buf.String()

	assert.Contains(t, text, "ScanTriage Triage Summary")
	assert.Contains(t, text, "/tmp/shop.xml (burp-xml)")
	assert.Contains(t, text, "Threshold:   Medium confidence and above")
	assert.Contains(t, text, "Records read:      12 (1 skipped)")
	assert.Contains(t, text, "Distinct issues found:          3")
	assert.Contains(t, text, "Filtered by confidence:         1")
	assert.Contains(t, text, "CRITICAL   1")
	assert.Contains(t, text, "1. [CRITICAL] SQL tautology")
	assert.Contains(t, text, "GET https://shop.test/search?q=1")
	assert.Contains(t, text, "3x in request, response")
	assert.Contains(t, text, "CWE-89")
	assert.Contains(t, text, "2. [LOW] Email address  (likely false positive)")
	assert.Contains(t, text, "Why flagged: placeholder domain")
	assert.Contains(t, text, "out/shop_vulnerabilities.json")
	assert.NotContains(t, text, "interrupted")
	assert.NotContains(t, text, "SARIF:")
	assert.NotContains(t, text, "<no value>")
}

func TestWriteSummaryEmptyAndInterrupted(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	rep.Findings = nil
	rep.Meta.Interrupted = true

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, rep, Files{}))
	text := buf.String()

	assert.Contains(t, text, "The run was interrupted")
	assert.Contains(t, text, "No findings met the confidence threshold.")
	assert.NotContains(t, text, "By severity:")
}

func TestWriteSARIF(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, sampleReport()))

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name    string `json:"name"`
					Version string `json:"version"`
					Rules   []struct {
						ID      string `json:"id"`
						HelpURI string `json:"helpUri"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID  string `json:"ruleId"`
				Level   string `json:"level"`
				Message struct {
					Text string `json:"text"`
				} `json:"message"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
					} `json:"physicalLocation"`
				} `json:"locations"`
				Properties map[string]any `json:"properties"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, jsonutil.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, "scantriage", run.Tool.Driver.Name)
	assert.Equal(t, "1.2.0", run.Tool.Driver.Version)
	require.Len(t, run.Tool.Driver.Rules, 2)
	assert.Equal(t, "sqli-tautology", run.Tool.Driver.Rules[0].ID)
	assert.Equal(t, "https://cwe.mitre.org/data/definitions/89.html", run.Tool.Driver.Rules[0].HelpURI)

	require.Len(t, run.Results, 2)
	first := run.Results[0]
	assert.Equal(t, "sqli-tautology", first.RuleID)
	assert.Equal(t, "error", first.Level)
	assert.Equal(t, "SQL tautology: ' OR 1=1 --", first.Message.Text)
	require.Len(t, first.Locations, 1)
	assert.Equal(t, "https://shop.test/search?q=1", first.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, "high", first.Properties["confidence"])

	assert.Equal(t, "note", run.Results[1].Level)
	assert.Equal(t, true, run.Results[1].Properties["likelyFalsePositive"])
}

func TestCWEURI(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cwe.mitre.org/data/definitions/79.html", cweURI("cwe-79"))
	assert.Empty(t, cweURI(""))
	assert.Empty(t, cweURI("CWE-"))
	assert.Empty(t, cweURI("OWASP-A1"))
}

func TestWriterWrite(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "reports")
	w := New(dir, "/captures/shop.har", WithSARIF(true))

	files, err := w.Write(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shop_vulnerabilities.json"), files.Findings)
	assert.Equal(t, filepath.Join(dir, "shop_SUMMARY.txt"), files.Summary)
	assert.Equal(t, filepath.Join(dir, "shop_vulnerabilities.sarif"), files.SARIF)

	for _, p := range []string{files.Findings, files.Summary, files.SARIF} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}

	summary, err := os.ReadFile(files.Summary)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "SARIF:       "+files.SARIF)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestWriterDefaultsToInputDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := New("", filepath.Join(dir, "session.jsonl"))
	files, err := w.Write(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session_vulnerabilities.json"), files.Findings)
	assert.Empty(t, files.SARIF)
}

func TestWriterNilReport(t *testing.T) {
	t.Parallel()

	_, err := New(t.TempDir(), "x.har").Write(nil)
	assert.ErrorIs(t, err, ErrNoReport)
}

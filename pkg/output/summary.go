package output

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/finding"
)

const summaryTemplate = `{{ .Tool }} Triage Summary
{{ repeat 60 "=" }}
Input:       {{ .Meta.Input | default "(stdin)" }}{{ with .Meta.Format }} ({{ . }}){{ end }}
Run ID:      {{ .Meta.RunID }}
Started:     {{ .Meta.StartedAt | date "2006-01-02 15:04:05 MST" }}
Duration:    {{ .Duration }}
Catalog:     {{ .Meta.CatalogVersion }} ({{ .Meta.Rules }} rules)
Threshold:   {{ .Meta.MinConfidence | toString | title }} confidence and above
{{- if .Meta.Interrupted }}

*** The run was interrupted. Results cover only the traffic read before the stop. ***
{{- end }}

Traffic
{{ repeat 60 "-" }}
Records read:      {{ .Meta.RecordsRead }}{{ if .Meta.RecordsSkipped }} ({{ .Meta.RecordsSkipped }} skipped){{ end }}
Chunks scanned:    {{ .Meta.ChunksProcessed }}{{ if .Meta.ChunksSkipped }} ({{ .Meta.ChunksSkipped }} skipped){{ end }}
Raw matches:       {{ .Meta.Candidates }}

Findings
{{ repeat 60 "-" }}
Distinct issues found:          {{ .Summary.TotalFound }}
Reported at or above threshold: {{ .Summary.Reported }}
Filtered by confidence:         {{ .Summary.FilteredByConfidence }}
Flagged as likely false pos.:   {{ .Summary.FlaggedFalsePositive }}
{{- if .Report.Empty }}

No findings met the confidence threshold.
{{- else }}

By severity:
{{- range .Severities }}
  {{ . | toString | upper | printf "%-10s" }} {{ index $.Summary.BySeverity . }}
{{- end }}

By confidence:
{{- range .Confidences }}
  {{ . | toString | upper | printf "%-10s" }} {{ index $.Summary.ByConfidence . }}
{{- end }}

By category:
{{- range .Categories }}
  {{ printf "%-28s" .Name }} {{ .Count }}
{{- end }}

Top {{ len .Top }} of {{ .Summary.Reported }}
{{ repeat 60 "-" }}
{{- range $i, $f := .Top }}
{{ add1 $i }}. [{{ $f.Severity | toString | upper }}] {{ $f.Name }}{{ if $f.LikelyFalsePositive }}  (likely false positive){{ end }}
   URL:        {{ with $f.Method }}{{ . }} {{ end }}{{ $f.URL }}
   Confidence: {{ $f.Confidence | toString | title }}
   Evidence:   {{ $f.Evidence | trunc 120 | quote }}
   Seen:       {{ $f.OccurrenceCount }}x{{ with $f.Fields }} in {{ join ", " . }}{{ end }}
{{- with $f.CWE }}
   CWE:        {{ . }}
{{- end }}
{{- with $f.Reasons }}
   Why flagged: {{ join "; " . }}
{{- end }}
{{- with $f.Remediation }}
   Fix:        {{ . | wrapWith 72 "\n               " }}
{{- end }}
{{ end }}
{{- end }}
Reports
{{ repeat 60 "-" }}
Findings:    {{ .Files.Findings }}
{{- with .Files.SARIF }}
SARIF:       {{ . }}
{{- end }}
`

var summaryTmpl = template.Must(template.New("summary").Funcs(sprig.TxtFuncMap()).Parse(summaryTemplate))

type categoryCount struct {
	Name  string
	Count int
}

type summaryData struct {
	Tool        string
	Report      *aggregate.Report
	Meta        aggregate.RunMeta
	Summary     aggregate.Summary
	Duration    string
	Severities  []finding.Severity
	Confidences []finding.Confidence
	Categories  []categoryCount
	Top         []finding.Finding
	Files       Files
}

// WriteSummary renders the narrative summary of rep. files lists the
// companion reports mentioned at the end.
func WriteSummary(w io.Writer, rep *aggregate.Report, files Files) error {
	data := summaryData{
		Tool:        defaults.ToolNameDisplay,
		Report:      rep,
		Meta:        rep.Meta,
		Summary:     rep.Summary,
		Duration:    formatDuration(time.Duration(rep.Meta.DurationMS) * time.Millisecond),
		Severities:  finding.Severities,
		Confidences: finding.Confidences,
		Categories:  categoryCounts(rep.Summary.ByCategory),
		Top:         rep.Top(defaults.TopFindings),
		Files:       files,
	}
	if err := summaryTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("output: summary: %w", err)
	}
	return nil
}

func categoryCounts(m map[finding.Category]int) []categoryCount {
	out := make([]categoryCount, 0, len(m))
	for c, n := range m {
		if n > 0 {
			out = append(out, categoryCount{Name: c.DisplayName(), Count: n})
		}
	}
	slices.SortFunc(out, func(a, b categoryCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Name, b.Name))
	})
	return out
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

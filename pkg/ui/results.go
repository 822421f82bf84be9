package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/catalog"
	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/strutil"
)

// evidenceWidth bounds evidence on a console line.
const evidenceWidth = 80

// FormatFinding renders one finding as a nuclei-style line:
//
//	[high] [sql_injection] [certain] https://shop.test/search "' OR 1=1--" x3
func FormatFinding(f finding.Finding) string {
	var b strings.Builder
	b.WriteString(BracketStyle.Render("["))
	b.WriteString(SeverityStyle(f.Severity).Render(string(f.Severity)))
	b.WriteString(BracketStyle.Render("] ["))
	b.WriteString(CategoryStyle.Render(string(f.Type)))
	b.WriteString(BracketStyle.Render("] ["))
	b.WriteString(ConfidenceStyle(f.Confidence).Render(string(f.Confidence)))
	b.WriteString(BracketStyle.Render("] "))
	b.WriteString(URLStyle.Render(SanitizeString(f.URL)))
	b.WriteString(" ")
	b.WriteString(StatValueStyle.Render(fmt.Sprintf("%q", strutil.Truncate(SanitizeString(f.Evidence), evidenceWidth))))
	if f.OccurrenceCount > 1 {
		b.WriteString(StatLabelStyle.Render(fmt.Sprintf(" x%d", f.OccurrenceCount)))
	}
	if f.LikelyFalsePositive {
		b.WriteString(" ")
		b.WriteString(FlaggedStyle.Render("(likely false positive)"))
	}
	return b.String()
}

// PrintReport prints the end-of-run summary and the top findings.
func PrintReport(rep *aggregate.Report, top int) {
	if IsSilent() || rep == nil {
		return
	}
	w := writer()
	s := rep.Summary

	PrintSection("Triage Summary")
	printStat(w, "Records", fmt.Sprintf("%d read, %d skipped", rep.Meta.RecordsRead, rep.Meta.RecordsSkipped))
	printStat(w, "Chunks", fmt.Sprintf("%d scanned, %d skipped", rep.Meta.ChunksProcessed, rep.Meta.ChunksSkipped))
	printStat(w, "Duration", formatDuration(time.Duration(rep.Meta.DurationMS)*time.Millisecond))
	printStat(w, "Found", fmt.Sprintf("%d distinct", s.TotalFound))
	printStat(w, "Reported", fmt.Sprintf("%d at %s+ confidence", s.Reported, rep.Meta.MinConfidence))
	printStat(w, "Filtered", fmt.Sprint(s.FilteredByConfidence))
	printStat(w, "Flagged FP", fmt.Sprint(s.FlaggedFalsePositive))

	if rep.Empty() {
		fmt.Fprintln(w)
		PrintSuccess("No findings met the confidence threshold")
		return
	}

	fmt.Fprintln(w)
	var badges []string
	for _, sev := range finding.Severities {
		if n := s.BySeverity[sev]; n > 0 {
			badges = append(badges, SeverityStyle(sev).Render(fmt.Sprintf("%s %d", strings.ToUpper(string(sev)), n)))
		}
	}
	fmt.Fprintf(w, "  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, spaced(badges)...))

	PrintSection(fmt.Sprintf("Top Findings (%d of %d)", min(top, len(rep.Findings)), len(rep.Findings)))
	for _, f := range rep.Top(top) {
		fmt.Fprintf(w, "  %s\n", FormatFinding(f))
	}
}

// PrintProgress prints a one-line progress update.
func PrintProgress(records, chunks, skipped int64, elapsed time.Duration) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(writer(), "  %s %s records  %s chunks  %s skipped  %s\n",
		BannerStyle.Render(Icon("⏳", "*")),
		StatValueStyle.Render(fmt.Sprint(records)),
		StatValueStyle.Render(fmt.Sprint(chunks)),
		StatValueStyle.Render(fmt.Sprint(skipped)),
		StatLabelStyle.Render(formatDuration(elapsed)),
	)
}

// PrintRules lists catalog rules as aligned columns (to w).
func PrintRules(w io.Writer, rules []*catalog.Rule) {
	idWidth := len("ID")
	for _, r := range rules {
		idWidth = max(idWidth, len(r.ID))
	}
	header := fmt.Sprintf("%s  %-20s  %-9s  %-8s  %s",
		padRight("ID", idWidth), "CATEGORY", "SEVERITY", "CONF", "NAME")
	fmt.Fprintln(w, StatLabelStyle.Render(header))
	for _, r := range rules {
		fmt.Fprintf(w, "%s  %-20s  %s  %-8s  %s\n",
			padRight(r.ID, idWidth),
			r.Category,
			padRight(SeverityStyle(r.Severity).Render(string(r.Severity)), 9),
			r.Confidence,
			r.DisplayName(),
		)
	}
}

func printStat(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", ConfigLabelStyle.Render(label+":"), StatValueStyle.Render(value))
}

func spaced(parts []string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}

// padRight pads s to width visible cells.
// Uses lipgloss.Width so ANSI codes do not count.
func padRight(s string, width int) string {
	if pad := width - lipgloss.Width(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

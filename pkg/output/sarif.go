package output

import (
	"cmp"
	"fmt"
	"io"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/finding"
)

// WriteSARIF writes rep as a SARIF 2.1.0 log with one run. Each catalog
// rule that produced a finding becomes a reporting descriptor; the
// finding URL is the artifact location.
func WriteSARIF(w io.Writer, rep *aggregate.Report) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("output: sarif: %w", err)
	}

	run := sarif.NewRunWithInformationURI(defaults.ToolName, defaults.ToolURI)
	version := defaults.Version
	run.Tool.Driver.Version = &version

	for _, f := range rep.Findings {
		ruleID := cmp.Or(f.RuleID, string(f.Type))
		rule := run.AddRule(ruleID).
			WithDescription(cmp.Or(f.Name, f.Type.DisplayName())).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: f.Severity.ToSARIF(),
			}).
			WithProperties(ruleProperties(f))
		if f.Remediation != "" {
			help := f.Remediation
			rule.Help = &sarif.MultiformatMessageString{Text: &help}
		}
		if uri := cweURI(f.CWE); uri != "" {
			rule.HelpURI = &uri
		}

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.URL)),
		)
		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(resultMessage(f))).
			WithLevel(f.Severity.ToSARIF()).
			WithLocations([]*sarif.Location{location})
		result.PropertyBag = *sarif.NewPropertyBag()
		result.Add("id", f.ID)
		result.Add("confidence", string(f.Confidence))
		result.Add("occurrences", f.OccurrenceCount)
		result.Add("likelyFalsePositive", f.LikelyFalsePositive)
		if len(f.Reasons) > 0 {
			result.Add("falsePositiveReasons", f.Reasons)
		}
		run.AddResult(result)
	}

	report.AddRun(run)
	if err := report.PrettyWrite(w); err != nil {
		return fmt.Errorf("output: sarif: %w", err)
	}
	return nil
}

func ruleProperties(f finding.Finding) sarif.Properties {
	tags := []string{"security", string(f.Type)}
	if f.CWE != "" {
		tags = append(tags, "external/cwe/"+strings.ToLower(f.CWE))
	}
	return sarif.Properties{
		"security-severity": f.Severity.ToSARIFScore(),
		"tags":              tags,
	}
}

func resultMessage(f finding.Finding) string {
	msg := cmp.Or(f.Name, f.Type.DisplayName())
	if f.Evidence != "" {
		msg += ": " + f.Evidence
	}
	return msg
}

// cweURI turns "CWE-89" into its MITRE definition URL.
func cweURI(cwe string) string {
	id, ok := strings.CutPrefix(strings.ToUpper(cwe), "CWE-")
	if !ok || id == "" {
		return ""
	}
	return "https://cwe.mitre.org/data/definitions/" + id + ".html"
}

package catalog

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/traffic"
)

// ValueGroup is the capture group name that marks the part of a match
// the validator inspects (the digits of a card number, the token of an
// "api_key=..." assignment).
const ValueGroup = "value"

// Rule is one declarative signature. Rules are data: adding one never
// requires matcher or validator changes.
type Rule struct {
	ID       string           `yaml:"id"`
	Category finding.Category `yaml:"category"`
	Subkind  string           `yaml:"subkind,omitempty"`
	Name     string           `yaml:"name,omitempty"`

	// Expression is an RE2 pattern. For Absent rules it describes what
	// must be present; the rule fires when it is missing.
	Expression string `yaml:"expression"`
	// Trigger gates Absent rules: they are evaluated only on chunks
	// where Trigger matches.
	Trigger string `yaml:"trigger,omitempty"`
	Absent  bool   `yaml:"absent,omitempty"`
	// Evidence is the fixed evidence text reported by Absent rules.
	Evidence string `yaml:"evidence,omitempty"`
	// CaseSensitive disables the default case-insensitive compilation.
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`

	// Fields limits the rule to some record fields. Empty means the
	// category default.
	Fields []traffic.FieldKind `yaml:"fields,omitempty"`
	// Statuses limits the rule to responses with these status codes.
	// Empty means any status.
	Statuses []int `yaml:"statuses,omitempty"`
	// Scheme limits the rule to URLs with this scheme ("https").
	Scheme string `yaml:"scheme,omitempty"`

	Confidence  finding.Confidence `yaml:"confidence"`
	Severity    finding.Severity   `yaml:"severity"`
	CWE         string             `yaml:"cwe,omitempty"`
	Remediation string             `yaml:"remediation,omitempty"`

	re         *regexp.Regexp
	trigger    *regexp.Regexp
	valueIndex int
	display    string
}

// Regexp returns the compiled expression. Only valid on rules obtained
// from a Catalog.
func (r *Rule) Regexp() *regexp.Regexp { return r.re }

// TriggerRegexp returns the compiled trigger, or nil.
func (r *Rule) TriggerRegexp() *regexp.Regexp { return r.trigger }

// ValueIndex returns the submatch index of the value group, or 0 when
// the whole match is the value.
func (r *Rule) ValueIndex() int { return r.valueIndex }

// DisplayName returns Name, or a title-cased rendering of the subkind,
// or the category display name.
func (r *Rule) DisplayName() string {
	switch {
	case r.display != "":
		return r.display
	case r.Name != "":
		return r.Name
	case r.Subkind != "":
		// Casers are stateful; one per call keeps this safe for workers.
		return cases.Title(language.English).String(strings.ReplaceAll(r.Subkind, "_", " "))
	default:
		return r.Category.DisplayName()
	}
}

// AppliesTo reports whether the rule scans the given field.
func (r *Rule) AppliesTo(kind traffic.FieldKind) bool {
	return slices.Contains(r.Fields, kind)
}

// AcceptsStatus reports whether the rule applies to a response status.
// Status 0 means unknown and is always accepted.
func (r *Rule) AcceptsStatus(status int) bool {
	return len(r.Statuses) == 0 || status == 0 || slices.Contains(r.Statuses, status)
}

// AcceptsURL reports whether the rule applies to the record URL.
func (r *Rule) AcceptsURL(url string) bool {
	if r.Scheme == "" {
		return true
	}
	return len(url) > len(r.Scheme) && strings.EqualFold(url[:len(r.Scheme)+1], r.Scheme+":")
}

// defaultFields returns the fields a category scans when a rule names
// none.
func defaultFields(c finding.Category) []traffic.FieldKind {
	switch c {
	case finding.MissingHeader:
		return []traffic.FieldKind{traffic.FieldHeader}
	case finding.BackupFileExposure, finding.SensitiveEndpoint:
		return []traffic.FieldKind{traffic.FieldURL}
	case finding.SensitiveData:
		return []traffic.FieldKind{traffic.FieldURL, traffic.FieldRequest, traffic.FieldHeader, traffic.FieldResponse}
	default:
		return []traffic.FieldKind{traffic.FieldURL, traffic.FieldRequest, traffic.FieldResponse}
	}
}

package falsepositive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/iohelper"
	"github.com/waftester/scantriage/pkg/regexcache"
)

// ErrInvalidExclusion is returned for an exclusion that does not compile.
var ErrInvalidExclusion = errors.New("falsepositive: invalid exclusion")

// Exclusion actions.
const (
	ActionFlag   = "flag"
	ActionDemote = "demote"
)

// Exclusion is a user-supplied benign pattern. A candidate matching every
// populated selector is flagged (or demoted to Low) with the exclusion's
// description as the reason. Candidates are never dropped.
type Exclusion struct {
	ID          string             `yaml:"id"`
	Description string             `yaml:"description"`
	Categories  []finding.Category `yaml:"categories,omitempty"`
	RuleIDs     []string           `yaml:"rule_ids,omitempty"`
	URL         string             `yaml:"url,omitempty"`
	Evidence    string             `yaml:"evidence,omitempty"`
	Context     string             `yaml:"context,omitempty"`
	Action      string             `yaml:"action,omitempty"`
	Disabled    bool               `yaml:"disabled,omitempty"`

	url      *regexp.Regexp
	evidence *regexp.Regexp
	context  *regexp.Regexp
}

// compile validates the exclusion and prepares its expressions.
func (e *Exclusion) compile() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidExclusion)
	}
	for i, c := range e.Categories {
		cat, err := finding.ParseCategory(string(c))
		if err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidExclusion, e.ID, err)
		}
		e.Categories[i] = cat
	}
	switch e.Action {
	case "":
		e.Action = ActionFlag
	case ActionFlag, ActionDemote:
	default:
		return fmt.Errorf("%w %q: unknown action %q", ErrInvalidExclusion, e.ID, e.Action)
	}
	var err error
	for _, p := range []struct {
		src string
		dst **regexp.Regexp
	}{{e.URL, &e.url}, {e.Evidence, &e.evidence}, {e.Context, &e.context}} {
		if p.src == "" {
			continue
		}
		if *p.dst, err = regexcache.Compile(p.src, true); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidExclusion, e.ID, err)
		}
	}
	if len(e.Categories) == 0 && len(e.RuleIDs) == 0 && e.url == nil && e.evidence == nil && e.context == nil {
		return fmt.Errorf("%w %q: no selector", ErrInvalidExclusion, e.ID)
	}
	if e.Description == "" {
		e.Description = "matches exclusion " + e.ID
	}
	return nil
}

// Matches reports whether the exclusion applies to c.
func (e *Exclusion) Matches(c *finding.Candidate) bool {
	if e.Disabled {
		return false
	}
	if len(e.Categories) > 0 && !slices.Contains(e.Categories, c.Category) {
		return false
	}
	if len(e.RuleIDs) > 0 && !slices.Contains(e.RuleIDs, c.RuleID) {
		return false
	}
	if e.url != nil && !e.url.MatchString(c.URL) {
		return false
	}
	if e.evidence != nil && !e.evidence.MatchString(c.Evidence) {
		return false
	}
	if e.context != nil && !e.context.MatchString(c.Context) {
		return false
	}
	return true
}

func (e *Exclusion) apply(c *finding.Candidate) {
	reason := "excluded (" + e.ID + "): " + e.Description
	if e.Action == ActionDemote {
		c.Demote(finding.ConfidenceLow, reason)
		return
	}
	c.Flag(reason)
}

type exclusionFile struct {
	Exclusions []Exclusion `yaml:"exclusions"`
}

// LoadExclusions decodes a YAML exclusion pack:
//
//	exclusions:
//	  - id: staging-host
//	    description: staging fixtures
//	    url: '^https://staging\.'
//	    categories: [sensitive_data]
func LoadExclusions(r io.Reader) ([]Exclusion, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f exclusionFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidExclusion, err)
	}
	return f.Exclusions, nil
}

// LoadExclusionFile reads an exclusion pack from path.
func LoadExclusionFile(path string) ([]Exclusion, error) {
	data, err := iohelper.ReadFile(path, iohelper.DefaultMaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("falsepositive: read exclusions: %w", err)
	}
	ex, err := LoadExclusions(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ex, nil
}

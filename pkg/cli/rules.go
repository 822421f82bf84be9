package cli

import (
	"fmt"
	"io"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/jsonutil"
	"github.com/waftester/scantriage/pkg/ui"
)

// RulesOptions for listing the signature catalog.
type RulesOptions struct {
	ConfigFile string
	Category   string
	JSON       bool
}

// ruleInfo is the JSON form of a catalog rule.
type ruleInfo struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Category   finding.Category   `json:"category"`
	Subkind    string             `json:"subkind,omitempty"`
	Severity   finding.Severity   `json:"severity"`
	Confidence finding.Confidence `json:"confidence"`
	CWE        string             `json:"cwe,omitempty"`
	Absent     bool               `json:"absent,omitzero"`
}

// RunRules lists the built-in rules plus any from the configuration.
func RunRules(opts *RulesOptions, w io.Writer) error {
	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return err
	}
	extra, err := cfg.LoadRules()
	if err != nil {
		return err
	}
	cat, err := newCatalog(extra)
	if err != nil {
		return err
	}

	rules := cat.Rules()
	if opts.Category != "" {
		c, err := finding.ParseCategory(opts.Category)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		rules = cat.Category(c)
	}

	if !opts.JSON {
		ui.PrintRules(w, rules)
		return nil
	}
	infos := make([]ruleInfo, 0, len(rules))
	for _, r := range rules {
		infos = append(infos, ruleInfo{
			ID:         r.ID,
			Name:       r.DisplayName(),
			Category:   r.Category,
			Subkind:    r.Subkind,
			Severity:   r.Severity,
			Confidence: r.Confidence,
			CWE:        r.CWE,
			Absent:     r.Absent,
		})
	}
	enc := jsonutil.NewEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(map[string]any{
		"catalog_version": cat.Version(),
		"rules":           infos,
	})
}

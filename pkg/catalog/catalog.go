// Package catalog holds the signature rules the matcher evaluates.
//
// A Catalog is immutable once built and safe for concurrent use. Rule
// order is significant: when two rules of the same category match
// overlapping text, the rule registered first wins the span. Building
// the same rule set always yields the same order and the same Version.
package catalog

import (
	"encoding/hex"
	"slices"
	"strconv"

	"github.com/spaolacci/murmur3"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/traffic"
)

// Catalog is a read-only, ordered rule registry.
type Catalog struct {
	rules      []*Rule
	byID       map[string]*Rule
	byCategory map[finding.Category][]*Rule
	byField    map[traffic.FieldKind][]*Rule
	version    string
}

func newCatalog(rules []*Rule) *Catalog {
	c := &Catalog{
		rules:      rules,
		byID:       make(map[string]*Rule, len(rules)),
		byCategory: make(map[finding.Category][]*Rule),
		byField:    make(map[traffic.FieldKind][]*Rule),
	}
	h := murmur3.New64()
	for _, r := range rules {
		c.byID[r.ID] = r
		c.byCategory[r.Category] = append(c.byCategory[r.Category], r)
		for _, f := range r.Fields {
			c.byField[f] = append(c.byField[f], r)
		}
		for _, part := range []string{r.ID, r.Expression, r.Trigger, string(r.Confidence), string(r.Severity), strconv.FormatBool(r.Absent)} {
			h.Write([]byte(part))
			h.Write([]byte{0})
		}
	}
	c.version = hex.EncodeToString(h.Sum(nil))
	return c
}

// Version identifies the rule set. It changes whenever a rule is added,
// removed, reordered or edited.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns every rule in catalog order.
func (c *Catalog) Rules() []*Rule { return slices.Clone(c.rules) }

// Category returns the ordered rules of one category.
func (c *Catalog) Category(cat finding.Category) []*Rule {
	return slices.Clone(c.byCategory[cat])
}

// ForField returns, in catalog order, the rules that scan a field.
// The returned slice is shared and must not be modified.
func (c *Catalog) ForField(kind traffic.FieldKind) []*Rule {
	return c.byField[kind]
}

// Rule looks a rule up by ID.
func (c *Catalog) Rule(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Categories returns the categories that have at least one rule, in
// taxonomy order.
func (c *Catalog) Categories() []finding.Category {
	var out []finding.Category
	for _, cat := range finding.Categories {
		if len(c.byCategory[cat]) > 0 {
			out = append(out, cat)
		}
	}
	return out
}

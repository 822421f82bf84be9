package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/regexcache"
)

var (
	// ErrInvalidRule is returned (wrapped) for a rule that is missing a
	// required attribute or does not compile.
	ErrInvalidRule = errors.New("catalog: invalid rule")

	// ErrDuplicateRule is returned when two rules share an ID.
	ErrDuplicateRule = errors.New("catalog: duplicate rule id")
)

var schemeRE = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// Builder accumulates validated rules. It is not safe for concurrent use.
type Builder struct {
	rules []*Rule
	ids   map[string]struct{}
	cache *regexcache.Cache
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		ids:   make(map[string]struct{}),
		cache: regexcache.New(),
	}
}

// Register validates, normalizes and compiles rules, appending them in
// order. On error nothing from this call is registered.
func (b *Builder) Register(rules ...Rule) error {
	compiled := make([]*Rule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		r, err := b.compile(rules[i])
		if err != nil {
			return err
		}
		if _, dup := b.ids[r.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRule, r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRule, r.ID)
		}
		seen[r.ID] = struct{}{}
		compiled = append(compiled, r)
	}
	for _, r := range compiled {
		b.ids[r.ID] = struct{}{}
	}
	b.rules = append(b.rules, compiled...)
	return nil
}

// Len returns the number of registered rules.
func (b *Builder) Len() int { return len(b.rules) }

// Build freezes the registered rules into a Catalog. The builder may be
// reused; later registrations do not affect catalogs already built.
func (b *Builder) Build() *Catalog {
	rules := make([]*Rule, len(b.rules))
	copy(rules, b.rules)
	return newCatalog(rules)
}

func (b *Builder) compile(in Rule) (*Rule, error) {
	r := in
	r.display = ""
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidRule, r.ID, fmt.Sprintf(format, args...))
	}

	cat, err := finding.ParseCategory(string(r.Category))
	if err != nil {
		return nil, fail("%v", err)
	}
	r.Category = cat
	if r.Confidence, err = finding.ParseConfidence(string(r.Confidence)); err != nil {
		return nil, fail("%v", err)
	}
	if r.Severity, err = finding.ParseSeverity(string(r.Severity)); err != nil {
		return nil, fail("%v", err)
	}
	r.Subkind = strings.ToLower(strings.TrimSpace(r.Subkind))

	if r.Expression == "" {
		return nil, fail("missing expression")
	}
	fold := !r.CaseSensitive
	if r.re, err = b.cache.Compile(r.Expression, fold); err != nil {
		return nil, fail("%v", err)
	}
	r.valueIndex = 0
	if idx := r.re.SubexpIndex(ValueGroup); idx > 0 {
		r.valueIndex = idx
	}

	if r.Absent {
		if r.Trigger == "" {
			return nil, fail("absent rule needs a trigger")
		}
		if r.Evidence == "" {
			r.Evidence = r.DisplayName()
		}
	}
	if r.Trigger != "" {
		if r.trigger, err = b.cache.Compile(r.Trigger, fold); err != nil {
			return nil, fail("trigger: %v", err)
		}
	} else {
		r.trigger = nil
	}

	if len(r.Fields) == 0 {
		r.Fields = defaultFields(r.Category)
	} else {
		r.Fields = append(r.Fields[:0:0], r.Fields...)
	}
	for _, f := range r.Fields {
		if !f.IsValid() {
			return nil, fail("unknown field %q", f)
		}
	}
	r.Statuses = append(r.Statuses[:0:0], r.Statuses...)
	for _, s := range r.Statuses {
		if s < 100 || s > 599 {
			return nil, fail("status %d out of range", s)
		}
	}
	r.Scheme = strings.ToLower(strings.TrimSpace(r.Scheme))
	if r.Scheme != "" && !schemeRE.MatchString(r.Scheme) {
		return nil, fail("bad scheme %q", r.Scheme)
	}
	r.display = r.DisplayName()
	return &r, nil
}

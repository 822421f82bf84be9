// Package regexcache provides a thread-safe cache for compiled regular
// expressions. Rule packs loaded from several files often repeat the same
// pattern text; the cache compiles each distinct pattern once and shares
// the resulting *regexp.Regexp, which is safe for concurrent use.
//
// Usage:
//
//	re, err := regexcache.Compile(`(?P<value>AKIA[0-9A-Z]{16})`, false)
//	if err != nil {
//	    // handle error
//	}
package regexcache

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
)

// ErrBadPattern is returned (wrapped) when a pattern fails to compile.
var ErrBadPattern = errors.New("regexcache: invalid pattern")

type key struct {
	pattern string
	fold    bool
}

// Cache holds compiled expressions keyed by pattern and case folding.
type Cache struct {
	m      sync.Map
	hits   atomic.Int64
	misses atomic.Int64
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Compile returns the compiled form of pattern. When fold is set the
// expression is compiled case-insensitively.
func (c *Cache) Compile(pattern string, fold bool) (*regexp.Regexp, error) {
	k := key{pattern: pattern, fold: fold}
	if cached, ok := c.m.Load(k); ok {
		c.hits.Add(1)
		return cached.(*regexp.Regexp), nil
	}
	c.misses.Add(1)

	src := pattern
	if fold {
		src = "(?i)" + pattern
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadPattern, pattern, err)
	}

	actual, _ := c.m.LoadOrStore(k, re)
	return actual.(*regexp.Regexp), nil
}

// MustCompile is like Compile but panics on error. Intended for
// package-level built-in patterns.
func (c *Cache) MustCompile(pattern string, fold bool) *regexp.Regexp {
	re, err := c.Compile(pattern, fold)
	if err != nil {
		panic(err)
	}
	return re
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns cache hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Reset drops all cached expressions and counters.
func (c *Cache) Reset() {
	c.m.Clear()
	c.hits.Store(0)
	c.misses.Store(0)
}

var shared = New()

// Compile compiles pattern through the process-wide cache.
func Compile(pattern string, fold bool) (*regexp.Regexp, error) {
	return shared.Compile(pattern, fold)
}

// MustCompile compiles pattern through the process-wide cache and panics
// on error.
func MustCompile(pattern string, fold bool) *regexp.Regexp {
	return shared.MustCompile(pattern, fold)
}

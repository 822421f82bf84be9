// Package strutil provides shared string utilities for evidence handling:
// rune-safe truncation, centered windows, context extraction and the
// canonical normalization used for deduplication.
package strutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Truncate returns s cut to maxLen runes. If truncated, a "..." suffix
// is appended (included in maxLen). Returns s unchanged if
// utf8.RuneCountInString(s) <= maxLen.
// Safe for maxLen <= 0 (returns empty string).
// This function is rune-aware and never produces invalid UTF-8.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runeCount := utf8.RuneCountInString(s)
	if runeCount <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// Head returns the longest prefix of s that is at most maxBytes long and
// does not end inside a rune.
func Head(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	n := maxBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Center returns at most maxLen runes of s taken from its middle, so a
// long match keeps the part around its center instead of its prefix.
func Center(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	if n <= maxLen {
		return s
	}
	skip := (n - maxLen) / 2
	r := []rune(s)
	return string(r[skip : skip+maxLen])
}

// Window returns text[start-radius : end+radius] clamped to text and
// widened to rune boundaries, along with the offset of start inside the
// returned window.
func Window(text string, start, end, radius int) (string, int) {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return text[lo:hi], start - lo
}

// Normalize produces the canonical comparison form of evidence:
// lowercased, whitespace runs collapsed to one space, trimmed, then cut
// to maxLen runes without a suffix.
func Normalize(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	out := b.String()
	if maxLen > 0 && utf8.RuneCountInString(out) > maxLen {
		out = string([]rune(out)[:maxLen])
	}
	return out
}

// BinaryRatio reports the share of bytes in the first sample bytes of s
// that are NUL, non-whitespace control characters, or invalid UTF-8.
func BinaryRatio(s string, sample int) float64 {
	if sample > 0 && len(s) > sample {
		s = s[:sample]
		for len(s) > 0 && !utf8.ValidString(s[len(s)-1:]) && !utf8.RuneStart(s[len(s)-1]) {
			s = s[:len(s)-1]
		}
	}
	if len(s) == 0 {
		return 0
	}
	bad := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
			bad++
		case r == 0:
			bad++
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
			bad += size
		}
		i += size
	}
	return float64(bad) / float64(len(s))
}

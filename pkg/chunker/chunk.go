package chunker

import (
	"iter"
	"unicode/utf8"

	"github.com/waftester/scantriage/pkg/traffic"
)

// Chunk is a window of one record field together with the record
// attributes the matcher and validator need.
type Chunk struct {
	URL        string
	Method     string
	StatusCode int
	Field      traffic.FieldKind
	Index      int
	Offset     int64
	Lead       int
	More       bool
	Tail       int
	Text       string
}

// Single reports whether fields of this kind are always emitted as one
// chunk regardless of size.
func Single(kind traffic.FieldKind) bool {
	return kind == traffic.FieldURL || kind == traffic.FieldHeader
}

// Chunks yields the chunks of rec in field order: url, request, header,
// response. Empty fields yield nothing. The url and header fields are
// emitted whole; the header block is capped at maxHeader bytes when
// maxHeader is positive.
func (c *Chunker) Chunks(rec *traffic.Record, maxHeader int) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for _, kind := range traffic.FieldKinds {
			text := rec.Field(kind)
			if text == "" {
				continue
			}
			base := Chunk{
				URL:        rec.URL,
				Method:     rec.Method,
				StatusCode: rec.StatusCode,
				Field:      kind,
			}
			if Single(kind) {
				if kind == traffic.FieldHeader && maxHeader > 0 && len(text) > maxHeader {
					text = cutBytes(text, maxHeader)
				}
				base.Text = text
				if !yield(base) {
					return
				}
				continue
			}
			for w := range c.Split(text) {
				ch := base
				ch.Index, ch.Offset, ch.Lead, ch.Text = w.Index, w.Offset, w.Lead, w.Text
				ch.More, ch.Tail = w.More, w.Tail
				if !yield(ch) {
					return
				}
			}
		}
	}
}

func cutBytes(s string, n int) string {
	for n > 0 && n < len(s) && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Package chunker splits record fields into bounded, overlapping windows.
//
// Consecutive windows of a field share at least Overlap bytes, so any
// substring of Overlap bytes or fewer lies intact inside some window.
// Boundaries never fall inside a UTF-8 sequence: a window end is moved
// back to the nearest rune start and the next window start is moved back
// too, which only ever widens the overlap.
package chunker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"

	"github.com/waftester/scantriage/pkg/bufpool"
)

var (
	// ErrInvalidSize is returned for a non-positive window size.
	ErrInvalidSize = errors.New("chunker: chunk size must be positive")

	// ErrInvalidOverlap is returned when overlap is negative or not
	// smaller than the window size.
	ErrInvalidOverlap = errors.New("chunker: overlap must be in [0, size)")
)

// Window is one slice of a field.
type Window struct {
	Index int
	// Offset is the byte position of Text within the field.
	Offset int64
	// Lead is the number of leading bytes of Text that the previous
	// window already contained.
	Lead int
	// More is set when another window of the same field follows. Tail is
	// then the number of trailing bytes of Text that window repeats.
	More bool
	Tail int
	Text string
}

// Chunker produces windows of at most Size bytes.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker for the given window size and overlap.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum window length in bytes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the minimum number of bytes shared by neighbours.
func (c *Chunker) Overlap() int { return c.overlap }

// Split yields the windows of text. Text no longer than Size yields
// exactly one window. Window texts are substrings of text, so no field
// bytes are copied.
func (c *Chunker) Split(text string) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if len(text) <= c.size {
			yield(Window{Text: text})
			return
		}
		start, prevEnd := 0, 0
		for index := 0; ; index++ {
			end := c.cut(text, start, start+c.size)
			w := Window{Index: index, Offset: int64(start), Text: text[start:end]}
			if index > 0 {
				w.Lead = prevEnd - start
			}
			next := end
			if end < len(text) {
				next = c.advance(text, start, end)
				w.More, w.Tail = true, end-next
			}
			if !yield(w) || !w.More {
				return
			}
			prevEnd = end
			start = next
		}
	}
}

// SplitReader yields the windows of the field read from r, holding at
// most Size bytes of it at a time. The windows are identical to those
// Split would produce for the same bytes. A read error is yielded once
// and ends the sequence.
func (c *Chunker) SplitReader(r io.Reader) iter.Seq2[Window, error] {
	return func(yield func(Window, error) bool) {
		br := bufio.NewReader(r)
		buf := bufpool.GetSlice(c.size)
		defer bufpool.PutSlice(buf)

		var offset int64
		filled, lead := 0, 0
		eof := false
		for index := 0; ; index++ {
			if !eof {
				n, err := io.ReadFull(br, buf[filled:])
				filled += n
				switch {
				case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
					eof = true
				case err != nil:
					yield(Window{}, fmt.Errorf("chunker: read at offset %d: %w", offset+int64(filled), err))
					return
				default:
					// A full buffer says nothing about what follows.
					if _, perr := br.Peek(1); errors.Is(perr, io.EOF) {
						eof = true
					}
				}
			}
			if eof && index > 0 && filled == lead {
				return
			}

			text := string(buf[:filled])
			end := filled
			if !eof {
				end = completeRunes(text)
			}
			w := Window{Index: index, Offset: offset, Lead: lead, Text: text[:end]}
			next := end
			if !eof {
				next = c.advance(text, 0, end)
				w.More, w.Tail = true, end-next
			}
			if !yield(w, nil) || !w.More {
				return
			}

			copy(buf, buf[next:filled])
			filled -= next
			offset += int64(next)
			lead = end - next
		}
	}
}

// cut returns the end of the window starting at start, at most limit and
// never inside a rune. A window always holds at least one rune.
func (c *Chunker) cut(text string, start, limit int) int {
	if limit >= len(text) {
		return len(text)
	}
	end := limit
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		_, size := utf8.DecodeRuneInString(text[start:])
		end = start + size
	}
	return end
}

// completeRunes returns the length of the longest prefix of text that does
// not end in a truncated UTF-8 sequence. The bytes after text are not yet
// known, so a trailing rune is kept only when it is complete.
func completeRunes(text string) int {
	p := len(text)
	for p > 0 && len(text)-p < utf8.UTFMax && !utf8.RuneStart(text[p-1]) {
		p--
	}
	if p == 0 {
		return len(text)
	}
	p--
	if utf8.FullRuneInString(text[p:]) {
		return len(text)
	}
	if p == 0 {
		return len(text)
	}
	return p
}

// advance returns the start of the window following [start, end).
func (c *Chunker) advance(text string, start, end int) int {
	next := end - c.overlap
	for next > start && !utf8.RuneStart(text[next]) {
		next--
	}
	if next <= start {
		_, size := utf8.DecodeRuneInString(text[start:])
		next = start + size
	}
	return next
}

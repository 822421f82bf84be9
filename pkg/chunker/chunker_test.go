package chunker

import (
	"errors"
	"io"
	"math/rand/v2"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/scantriage/pkg/traffic"
)

func collect(c *Chunker, text string) []Window {
	var out []Window
	for w := range c.Split(text) {
		out = append(out, w)
	}
	return out
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(0, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New(-5, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New(10, 10)
	assert.ErrorIs(t, err, ErrInvalidOverlap)
	_, err = New(10, -1)
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	c, err := New(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Size())
	assert.Equal(t, 3, c.Overlap())
}

func TestSplit_SmallFieldIsOneWindow(t *testing.T) {
	t.Parallel()

	c, err := New(16, 4)
	require.NoError(t, err)

	for _, text := range []string{"", "short", strings.Repeat("x", 16)} {
		ws := collect(c, text)
		require.Len(t, ws, 1)
		assert.Equal(t, text, ws[0].Text)
		assert.Zero(t, ws[0].Lead)
		assert.False(t, ws[0].More)
	}
}

func TestSplit_Windows(t *testing.T) {
	t.Parallel()

	c, err := New(10, 4)
	require.NoError(t, err)

	ws := collect(c, "abcdefghijklmnopqrstuvwxyz")
	require.Len(t, ws, 4)
	assert.Equal(t, "abcdefghij", ws[0].Text)
	assert.Equal(t, "ghijklmnop", ws[1].Text)
	assert.Equal(t, int64(6), ws[1].Offset)
	assert.Equal(t, 4, ws[1].Lead)
	assert.Equal(t, "mnopqrstuv", ws[2].Text)
	assert.Equal(t, "stuvwxyz", ws[3].Text)
	for i, w := range ws {
		assert.Equal(t, i, w.Index)
	}
	for _, w := range ws[:3] {
		assert.True(t, w.More)
		assert.Equal(t, 4, w.Tail)
	}
	assert.False(t, ws[3].More)
	assert.Zero(t, ws[3].Tail)
}

func TestSplit_NeverSplitsRunes(t *testing.T) {
	t.Parallel()

	c, err := New(7, 2)
	require.NoError(t, err)

	text := strings.Repeat("héllo wörld ✓ ", 20)
	for w := range c.Split(text) {
		assert.True(t, utf8.ValidString(w.Text), "window %d not valid UTF-8: %q", w.Index, w.Text)
		assert.LessOrEqual(t, len(w.Text), 7)
	}
}

func TestSplit_EarlyStop(t *testing.T) {
	t.Parallel()

	c, err := New(4, 1)
	require.NoError(t, err)
	n := 0
	for range c.Split(strings.Repeat("a", 100)) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

var alphabet = []rune("abcdefghijklmnopqrstuvwxyz0123456789 '=<>/\\.éü✓中")

func randomText(r *rand.Rand, n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteRune(alphabet[r.IntN(len(alphabet))])
	}
	return b.String()
}

// Every substring of at most Overlap bytes lies inside some window.
func TestSplit_CoverageProperty(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 200; trial++ {
		size := 8 + r.IntN(120)
		overlap := r.IntN(size - 7)
		c, err := New(size, overlap)
		require.NoError(t, err)

		text := randomText(r, r.IntN(size*6))
		ws := collect(c, text)
		require.NotEmpty(t, ws)

		assert.Equal(t, int64(0), ws[0].Offset)
		last := ws[len(ws)-1]
		assert.Equal(t, len(text), int(last.Offset)+len(last.Text), "windows must reach the end")
		assert.False(t, last.More)

		for i := 1; i < len(ws); i++ {
			prevEnd := int(ws[i-1].Offset) + len(ws[i-1].Text)
			assert.Greater(t, ws[i].Offset, ws[i-1].Offset, "windows must advance")
			assert.LessOrEqual(t, int(ws[i].Offset), prevEnd-overlap,
				"trial %d: size=%d overlap=%d window %d starts too late", trial, size, overlap, i)
			assert.Equal(t, prevEnd-int(ws[i].Offset), ws[i].Lead)
			assert.True(t, ws[i-1].More)
			assert.Equal(t, ws[i].Lead, ws[i-1].Tail)
		}

		for start := 0; start+overlap <= len(text); start += 1 + r.IntN(7) {
			sub := text[start : start+overlap]
			found := false
			for _, w := range ws {
				off := int(w.Offset)
				if off <= start && start+overlap <= off+len(w.Text) {
					assert.Equal(t, sub, w.Text[start-off:start-off+overlap])
					found = true
					break
				}
			}
			require.True(t, found, "trial %d: substring at %d not covered", trial, start)
		}
	}
}

func TestSplitReader_MatchesSplit(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 100; trial++ {
		size := 8 + r.IntN(64)
		overlap := r.IntN(size - 7)
		c, err := New(size, overlap)
		require.NoError(t, err)

		text := randomText(r, r.IntN(size*5))
		want := collect(c, text)

		var got []Window
		for w, err := range c.SplitReader(iotest.OneByteReader(strings.NewReader(text))) {
			require.NoError(t, err)
			got = append(got, w)
		}
		assert.Equal(t, want, got, "trial %d size=%d overlap=%d", trial, size, overlap)
	}
}

func TestSplitReader_Error(t *testing.T) {
	t.Parallel()

	c, err := New(8, 2)
	require.NoError(t, err)

	boom := errors.New("disk gone")
	src := io.MultiReader(strings.NewReader(strings.Repeat("a", 20)), iotest.ErrReader(boom))
	var windows, errs int
	for _, err := range c.SplitReader(src) {
		if err != nil {
			errs++
			assert.ErrorIs(t, err, boom)
			continue
		}
		windows++
	}
	assert.Equal(t, 1, errs)
	assert.Positive(t, windows)
}

func TestChunks(t *testing.T) {
	t.Parallel()

	c, err := New(32, 8)
	require.NoError(t, err)

	rec := &traffic.Record{
		URL:             "https://shop.test/search?q=x",
		Method:          "GET",
		StatusCode:      200,
		RequestText:     "GET /search?q=x HTTP/1.1\r\nHost: shop.test\r\nCookie: sid=1; theme=dark; lang=en-GB\r\n\r\n",
		ResponseHeaders: traffic.NewHeaders("Content-Type", "text/html", "Set-Cookie", "sid=1"),
		ResponseText:    strings.Repeat("<p>hello</p>", 10),
	}

	var fields []traffic.FieldKind
	byField := map[traffic.FieldKind]int{}
	for ch := range c.Chunks(rec, 0) {
		if len(fields) == 0 || fields[len(fields)-1] != ch.Field {
			fields = append(fields, ch.Field)
		}
		byField[ch.Field]++
		assert.Equal(t, rec.URL, ch.URL)
		assert.Equal(t, "GET", ch.Method)
		assert.Equal(t, 200, ch.StatusCode)
	}
	assert.Equal(t, traffic.FieldKinds, fields)
	assert.Equal(t, 1, byField[traffic.FieldURL])
	assert.Equal(t, 1, byField[traffic.FieldHeader])
	assert.Greater(t, byField[traffic.FieldRequest], 1)
	assert.Greater(t, byField[traffic.FieldResponse], 1)
}

func TestChunks_SkipsEmptyAndCapsHeaders(t *testing.T) {
	t.Parallel()

	c, err := New(1024, 16)
	require.NoError(t, err)

	rec := &traffic.Record{
		URL:             "http://a.test/",
		ResponseHeaders: traffic.NewHeaders("X-Long", strings.Repeat("v", 500)),
	}
	var got []Chunk
	for ch := range c.Chunks(rec, 64) {
		got = append(got, ch)
	}
	require.Len(t, got, 2)
	assert.Equal(t, traffic.FieldURL, got[0].Field)
	assert.Equal(t, traffic.FieldHeader, got[1].Field)
	assert.Len(t, got[1].Text, 64)
}

func TestSplitReader_LastWindowAtBufferBoundary(t *testing.T) {
	t.Parallel()

	c, err := New(8, 2)
	require.NoError(t, err)

	for _, text := range []string{strings.Repeat("a", 8), strings.Repeat("b", 14)} {
		var got []Window
		for w, err := range c.SplitReader(strings.NewReader(text)) {
			require.NoError(t, err)
			got = append(got, w)
		}
		require.NotEmpty(t, got)
		assert.False(t, got[len(got)-1].More, "%q: last window must be final", text)
		assert.Equal(t, collect(c, text), got)
	}
}

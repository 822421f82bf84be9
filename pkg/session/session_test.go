package session

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/scantriage/pkg/traffic"
)

// drain reads src to the end, separating records from skippable errors.
func drain(t *testing.T, src traffic.Source) ([]traffic.Record, []error) {
	t.Helper()
	var (
		recs    []traffic.Record
		skipped []error
	)
	for {
		rec, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return recs, skipped
		}
		if traffic.IsSkippable(err) {
			skipped = append(skipped, err)
			continue
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		head string
		want Format
		err  error
	}{
		{"burp items", `<items burpVersion="2023.1">`, FormatBurpXML, nil},
		{"burp prolog", "<?xml version=\"1.0\"?>\n<!DOCTYPE items [\n]>\n<items>", FormatBurpXML, nil},
		{"burp bom", "\xEF\xBB\xBF<items>", FormatBurpXML, nil},
		{"har", `{"log":{"version":"1.2","entries":[]}}`, FormatHAR, nil},
		{"har whitespace", "\n  { \"log\" : {} }", FormatHAR, nil},
		{"jsonl", `{"url":"https://a.test/","status":200}`, FormatJSONL, nil},
		{"empty", "  \n", "", ErrUnrecognizedFormat},
		{"text", "GET / HTTP/1.1\r\nHost: a.test\r\n", "", ErrUnrecognizedFormat},
		{"gzip", "\x1F\x8B\x08\x00", "", ErrUnsupportedFormat},
		{"zip", "PK\x03\x04rest", "", ErrUnsupportedFormat},
		{"sqlite", "SQLite format 3\x00", "", ErrUnsupportedFormat},
		{"binary", strings.Repeat("\x00\x01\x02\x03", 64), "", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Detect([]byte(tt.head))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := New(strings.NewReader(""), Format("pcap"))
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestBurpXML(t *testing.T) {
	t.Parallel()

	resp := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nServer: nginx\r\n\r\n<p>hello</p>"
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>
<!DOCTYPE items [
<!ELEMENT items (item*)>
]>
<items burpVersion="2023.10">
  <item>
    <time>Mon Jan 01 00:00:00 UTC 2024</time>
    <url><![CDATA[https://shop.test/search?q=1]]></url>
    <method><![CDATA[GET]]></method>
    <status>200</status>
    <request base64="true"><![CDATA[` + b64("GET /search?q=1 HTTP/1.1\r\nHost: shop.test\r\n\r\n") + `]]></request>
    <response base64="true"><![CDATA[` + b64(resp) + `]]></response>
  </item>
  <item>
    <url>https://shop.test/broken</url>
    <response base64="true">%%%not base64%%%</response>
  </item>
  <item>
    <url>https://shop.test/plain</url>
    <status>404</status>
    <request base64="false"><![CDATA[POST /plain HTTP/1.1
Host: shop.test

a=1]]></request>
    <response base64="false"><![CDATA[HTTP/1.1 200 OK
X-Test: yes

not found]]></response>
  </item>
</items>`

	src, f, err := NewReader(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, FormatBurpXML, f)

	recs, skipped := drain(t, src)
	require.Len(t, recs, 2)
	require.Len(t, skipped, 1)

	var rerr *traffic.RecordError
	require.ErrorAs(t, skipped[0], &rerr)
	assert.Equal(t, 1, rerr.Index)
	assert.Equal(t, "https://shop.test/broken", rerr.URL)

	first := recs[0]
	assert.Equal(t, "https://shop.test/search?q=1", first.URL)
	assert.Equal(t, "GET", first.Method)
	assert.Equal(t, 200, first.StatusCode)
	assert.Equal(t, "nginx", first.ResponseHeaders.Get("server"))
	assert.Equal(t, "<p>hello</p>", first.ResponseText)
	assert.Contains(t, first.RequestText, "Host: shop.test")

	plain := recs[1]
	assert.Equal(t, "POST", plain.Method, "method falls back to the request line")
	assert.Equal(t, 404, plain.StatusCode, "status element overrides the response line")
	assert.Equal(t, "yes", plain.ResponseHeaders.Get("X-Test"))

	require.NoError(t, src.Close())
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestBurpXMLTruncated(t *testing.T) {
	t.Parallel()

	src, err := New(strings.NewReader("<items><item><url>https://a.test/</url><response>"), FormatBurpXML)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.False(t, traffic.IsSkippable(err), "a broken document is fatal")
}

func TestHAR(t *testing.T) {
	t.Parallel()

	doc := `{
  "log": {
    "version": "1.2",
    "creator": {"name": "browser", "version": "1"},
    "pages": [{"id": "p1"}],
    "entries": [
      {
        "request": {
          "method": "POST",
          "url": "https://api.test/login",
          "httpVersion": "HTTP/2",
          "headers": [{"name": ":authority", "value": "api.test"}, {"name": "Content-Type", "value": "application/json"}],
          "postData": {"mimeType": "application/json", "text": "{\"user\":\"a\"}"}
        },
        "response": {
          "status": 401,
          "statusText": "Unauthorized",
          "headers": [{"name": "WWW-Authenticate", "value": "Bearer"}],
          "content": {"mimeType": "application/json", "text": "{\"error\":\"denied\"}"}
        }
      },
      {"request": "not an object", "response": {}},
      {
        "request": {"method": "GET", "url": "https://api.test/logo", "headers": []},
        "response": {
          "status": 200,
          "headers": [],
          "content": {"mimeType": "text/plain", "text": "` + b64("hello world") + `", "encoding": "base64"}
        }
      }
    ]
  }
}`

	src, f, err := NewReader(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, FormatHAR, f)

	recs, skipped := drain(t, src)
	require.Len(t, recs, 2)
	require.Len(t, skipped, 1)

	var rerr *traffic.RecordError
	require.ErrorAs(t, skipped[0], &rerr)
	assert.Equal(t, 1, rerr.Index)

	login := recs[0]
	assert.Equal(t, "POST", login.Method)
	assert.Equal(t, 401, login.StatusCode)
	assert.Equal(t, "Bearer", login.ResponseHeaders.Get("www-authenticate"))
	assert.True(t, strings.HasPrefix(login.RequestText, "POST https://api.test/login HTTP/2\r\n"))
	assert.NotContains(t, login.RequestText, ":authority", "pseudo-headers are dropped")
	assert.True(t, strings.HasSuffix(login.RequestText, "\r\n\r\n{\"user\":\"a\"}"))

	assert.Equal(t, "hello world", recs[1].ResponseText)
}

func TestHARWithoutEntries(t *testing.T) {
	t.Parallel()

	src, err := New(strings.NewReader(`{"log":{"version":"1.2","pages":[]}}`), FormatHAR)
	require.NoError(t, err)

	recs, skipped := drain(t, src)
	assert.Empty(t, recs)
	assert.Empty(t, skipped)
}

func TestHAREntriesNotArray(t *testing.T) {
	t.Parallel()

	src, err := New(strings.NewReader(`{"log":{"entries":{}}}`), FormatHAR)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.False(t, traffic.IsSkippable(err))
}

func TestJSONL(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"url":"https://a.test/one","method":"GET","status":200,"response":"<html></html>","headers":[["Server","nginx"]]}`,
		``,
		`{"url":"https://a.test/two","response":"HTTP/1.1 500 Internal Server Error\r\nX-Powered-By: PHP\r\n\r\nFatal error","request":"PUT /two HTTP/1.1\r\n\r\n"}`,
		`{not json`,
		`{"method":"GET"}`,
		"\t",
		`{"url":"https://a.test/three","status":302}`,
	}, "\n")

	src, f, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)

	recs, skipped := drain(t, src)
	require.Len(t, recs, 3)
	require.Len(t, skipped, 2)

	assert.Equal(t, "nginx", recs[0].ResponseHeaders.Get("Server"))
	assert.Equal(t, "<html></html>", recs[0].ResponseText)

	two := recs[1]
	assert.Equal(t, 500, two.StatusCode)
	assert.Equal(t, "PUT", two.Method)
	assert.Equal(t, "PHP", two.ResponseHeaders.Get("x-powered-by"))
	assert.Equal(t, "Fatal error", two.ResponseText)

	assert.Equal(t, "https://a.test/three", recs[2].URL)
	assert.Equal(t, 302, recs[2].StatusCode)

	for _, err := range skipped {
		assert.ErrorIs(t, err, traffic.ErrSkippableRecord)
	}
}

func TestNextHonoursContext(t *testing.T) {
	t.Parallel()

	src, err := New(strings.NewReader(`{"url":"https://a.test/"}`), FormatJSONL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"url":"https://a.test/","status":200}`+"\n"), 0o600))

	src, f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)

	recs, _ := drain(t, src)
	require.Len(t, recs, 1)
	require.NoError(t, src.Close())

	_, _, err = Open(filepath.Join(dir, "missing.har"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "project.burp")
	require.NoError(t, os.WriteFile(bad, []byte("\x1F\x8B\x08\x00\x00"), 0o600))
	_, _, err = Open(bad)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), bad)
}

package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/waftester/scantriage/pkg/jsonutil"
	"github.com/waftester/scantriage/pkg/traffic"
)

type harHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harEntry struct {
	Request struct {
		Method      string      `json:"method"`
		URL         string      `json:"url"`
		HTTPVersion string      `json:"httpVersion"`
		Headers     []harHeader `json:"headers"`
		PostData    *struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"postData"`
	} `json:"request"`
	Response struct {
		Status      int         `json:"status"`
		StatusText  string      `json:"statusText"`
		HTTPVersion string      `json:"httpVersion"`
		Headers     []harHeader `json:"headers"`
		Content     struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"content"`
	} `json:"response"`
}

// harSource walks log.entries one entry at a time. Each entry is read as
// a raw value first, so a malformed entry is skippable as long as the
// document itself is well-formed JSON.
type harSource struct {
	stream
	dec     *jsontext.Decoder
	started bool
}

func newHARSource(r io.Reader) *harSource {
	return &harSource{dec: jsonutil.NewDecoder(r, jsonutil.Lenient)}
}

// Next implements traffic.Source.
func (s *harSource) Next(ctx context.Context) (traffic.Record, error) {
	if err := s.begin(ctx); err != nil {
		return traffic.Record{}, err
	}
	if !s.started {
		s.started = true
		found, err := s.seekEntries()
		if err != nil {
			s.done = true
			return traffic.Record{}, fmt.Errorf("session: har: %w", err)
		}
		if !found {
			s.done = true
			return traffic.Record{}, io.EOF
		}
	}
	if s.dec.PeekKind() == ']' {
		s.done = true
		return traffic.Record{}, io.EOF
	}
	raw, err := s.dec.ReadValue()
	if err != nil {
		s.done = true
		return traffic.Record{}, fmt.Errorf("session: har entry %d: %w", s.index, err)
	}
	defer func() { s.index++ }()

	var e harEntry
	if err := jsonutil.Unmarshal(raw, &e, jsonutil.Lenient); err != nil {
		return traffic.Record{}, s.skip("", "malformed entry", err)
	}
	return s.record(&e)
}

// errStopObject ends an Object walk early once the wanted member is found.
var errStopObject = errors.New("stop")

// seekEntries positions the decoder inside the log.entries array.
func (s *harSource) seekEntries() (bool, error) {
	found := false
	err := jsonutil.Object(s.dec, func(name string) error {
		if name != "log" {
			return s.dec.SkipValue()
		}
		return jsonutil.Object(s.dec, func(name string) error {
			if name != "entries" {
				return s.dec.SkipValue()
			}
			tok, err := s.dec.ReadToken()
			if err != nil {
				return err
			}
			if tok.Kind() != '[' {
				return fmt.Errorf("log.entries is %v, not an array", tok.Kind())
			}
			found = true
			return errStopObject
		})
	})
	if errors.Is(err, errStopObject) {
		return found, nil
	}
	return found, err
}

func (s *harSource) record(e *harEntry) (traffic.Record, error) {
	req, resp := &e.Request, &e.Response
	if req.URL == "" {
		return traffic.Record{}, s.skip("", "entry has no request url", nil)
	}
	body := resp.Content.Text
	if strings.EqualFold(resp.Content.Encoding, "base64") {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return traffic.Record{}, s.skip(req.URL, "response content is not valid base64", err)
		}
		body = string(raw)
	}

	headers := make(traffic.Headers, 0, len(resp.Headers))
	for _, h := range resp.Headers {
		headers = append(headers, traffic.Header{Name: h.Name, Value: h.Value})
	}
	return traffic.Record{
		URL:             req.URL,
		Method:          req.Method,
		RequestText:     rawRequest(e),
		ResponseText:    body,
		ResponseHeaders: headers,
		StatusCode:      resp.Status,
	}, nil
}

// rawRequest renders a HAR request as HTTP/1.1 text.
func rawRequest(e *harEntry) string {
	req := &e.Request
	var b strings.Builder
	version := req.HTTPVersion
	if version == "" || strings.HasPrefix(version, "h") {
		version = "HTTP/1.1"
	}
	fmt.Fprintf(&b, "%s %s %s\r\n", req.Method, req.URL, version)
	for _, h := range req.Headers {
		if strings.HasPrefix(h.Name, ":") {
			continue
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	if req.PostData != nil {
		b.WriteString(req.PostData.Text)
	}
	return b.String()
}

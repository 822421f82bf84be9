package session

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/waftester/scantriage/pkg/traffic"
)

// burpItem is one <item> of a Burp Suite "Save items" XML export.
type burpItem struct {
	URL      string   `xml:"url"`
	Method   string   `xml:"method"`
	Status   string   `xml:"status"`
	Request  burpBody `xml:"request"`
	Response burpBody `xml:"response"`
}

type burpBody struct {
	Base64 bool   `xml:"base64,attr"`
	Text   string `xml:",chardata"`
}

func (b burpBody) decode() (string, error) {
	if !b.Base64 {
		return b.Text, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b.Text))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type burpSource struct {
	stream
	dec *xml.Decoder
}

func newBurpSource(r io.Reader) *burpSource {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// Burp writes UTF-8 but some exports are labelled ISO-8859-1.
		return input, nil
	}
	return &burpSource{dec: dec}
}

// Next implements traffic.Source.
func (s *burpSource) Next(ctx context.Context) (traffic.Record, error) {
	if err := s.begin(ctx); err != nil {
		return traffic.Record{}, err
	}
	for {
		tok, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			s.done = true
			return traffic.Record{}, io.EOF
		}
		if err != nil {
			s.done = true
			return traffic.Record{}, fmt.Errorf("session: burp xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "item" {
			continue
		}

		var item burpItem
		if err := s.dec.DecodeElement(&item, &start); err != nil {
			s.done = true
			return traffic.Record{}, fmt.Errorf("session: burp xml item %d: %w", s.index, err)
		}
		rec, err := s.record(item)
		s.index++
		return rec, err
	}
}

func (s *burpSource) record(item burpItem) (traffic.Record, error) {
	url := strings.TrimSpace(item.URL)
	if url == "" {
		return traffic.Record{}, s.skip("", "item has no url", nil)
	}
	req, err := item.Request.decode()
	if err != nil {
		return traffic.Record{}, s.skip(url, "request is not valid base64", err)
	}
	resp, err := item.Response.decode()
	if err != nil {
		return traffic.Record{}, s.skip(url, "response is not valid base64", err)
	}

	rec := traffic.Record{
		URL:         url,
		Method:      strings.TrimSpace(item.Method),
		RequestText: req,
	}
	if rec.Method == "" {
		rec.Method, _ = traffic.ParseRawRequest(req)
	}
	status, headers, body := traffic.ParseRawResponse(resp)
	rec.StatusCode, rec.ResponseHeaders, rec.ResponseText = status, headers, body
	if n, err := strconv.Atoi(strings.TrimSpace(item.Status)); err == nil && n > 0 {
		rec.StatusCode = n
	}
	return rec, nil
}

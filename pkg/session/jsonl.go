package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/waftester/scantriage/pkg/jsonutil"
	"github.com/waftester/scantriage/pkg/traffic"
)

// jsonlRecord is one line of a JSON Lines session:
//
//	{"url":"...","method":"GET","status":200,"request":"...","response":"...","headers":[["Server","nginx"]]}
//
// When headers is absent and response is a raw HTTP response, the
// status and headers are taken from it.
type jsonlRecord struct {
	URL      string      `json:"url"`
	Method   string      `json:"method"`
	Status   int         `json:"status"`
	Request  string      `json:"request"`
	Response string      `json:"response"`
	Headers  [][2]string `json:"headers"`
}

type jsonlSource struct {
	stream
	r    *bufio.Reader
	line int
}

func newJSONLSource(r io.Reader) *jsonlSource {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, readBufferSize)
	}
	return &jsonlSource{r: br}
}

// Next implements traffic.Source. Blank lines are ignored.
func (s *jsonlSource) Next(ctx context.Context) (traffic.Record, error) {
	if err := s.begin(ctx); err != nil {
		return traffic.Record{}, err
	}
	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			s.done = true
			return traffic.Record{}, fmt.Errorf("session: jsonl line %d: %w", s.line+1, err)
		}
		eof := err != nil
		s.line++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if eof {
				s.done = true
				return traffic.Record{}, io.EOF
			}
			continue
		}
		if eof {
			s.done = true
		}
		rec, rerr := s.record(line)
		s.index++
		return rec, rerr
	}
}

func (s *jsonlSource) record(line []byte) (traffic.Record, error) {
	var jr jsonlRecord
	if err := jsonutil.Unmarshal(line, &jr, jsonutil.Lenient); err != nil {
		return traffic.Record{}, s.skip("", fmt.Sprintf("line %d is not a JSON record", s.line), err)
	}
	if jr.URL == "" {
		return traffic.Record{}, s.skip("", fmt.Sprintf("line %d has no url", s.line), nil)
	}
	rec := traffic.Record{
		URL:          jr.URL,
		Method:       jr.Method,
		RequestText:  jr.Request,
		ResponseText: jr.Response,
		StatusCode:   jr.Status,
	}
	if len(jr.Headers) > 0 {
		rec.ResponseHeaders = make(traffic.Headers, 0, len(jr.Headers))
		for _, h := range jr.Headers {
			rec.ResponseHeaders = append(rec.ResponseHeaders, traffic.Header{Name: h[0], Value: h[1]})
		}
	} else if status, headers, body := traffic.ParseRawResponse(jr.Response); status > 0 {
		rec.ResponseHeaders, rec.ResponseText = headers, body
		if rec.StatusCode == 0 {
			rec.StatusCode = status
		}
	}
	if rec.Method == "" {
		rec.Method, _ = traffic.ParseRawRequest(jr.Request)
	}
	return rec, nil
}

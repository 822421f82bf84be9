package traffic

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrSkippableRecord marks a per-record failure. The record is dropped and
// counted; the stream itself remains usable.
var ErrSkippableRecord = errors.New("traffic: skippable record")

// RecordError describes a single record that could not be decoded.
type RecordError struct {
	// Index is the zero-based position of the record in the stream.
	Index  int
	URL    string
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("record %d", e.Index)
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrSkippableRecord and the cause.
func (e *RecordError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSkippableRecord}
	}
	return []error{ErrSkippableRecord, e.Err}
}

// IsSkippable reports whether err only affects a single record.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrSkippableRecord)
}

// Source yields captured records one at a time.
//
// Next returns io.EOF once the stream is exhausted and an error matching
// ErrSkippableRecord when one record is unusable; any other error means
// the stream cannot continue. Close releases the underlying input and
// makes subsequent Next calls return io.EOF.
type Source interface {
	Next(ctx context.Context) (Record, error)
	Close() error
}

// SliceSource serves records from memory. It is used by tests and by
// callers that already hold decoded records.
type SliceSource struct {
	records []Record
	pos     int
	closed  bool
}

// NewSliceSource returns a Source over records.
func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if s.closed || s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// Close implements Source.
func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}

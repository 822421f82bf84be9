// Package session reads captured proxy traffic into traffic.Records.
//
// Three formats are recognized from their first bytes: Burp Suite XML
// exports, HAR 1.2 archives and JSON Lines. All readers stream; a
// record that cannot be decoded is reported as a *traffic.RecordError
// and the reader moves on to the next one.
package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/waftester/scantriage/pkg/jsonutil"
	"github.com/waftester/scantriage/pkg/strutil"
	"github.com/waftester/scantriage/pkg/traffic"
)

var (
	// ErrUnrecognizedFormat means the input matched none of the known
	// session formats.
	ErrUnrecognizedFormat = errors.New("session: unrecognized format")

	// ErrUnsupportedFormat means the input is a known but unreadable
	// kind, such as a binary Burp project file or a compressed archive.
	ErrUnsupportedFormat = errors.New("session: unsupported format")
)

// Format names a session file format.
type Format string

const (
	FormatBurpXML Format = "burp-xml"
	FormatHAR     Format = "har"
	FormatJSONL   Format = "jsonl"
)

// sniffSize is how much of the input Detect looks at.
const sniffSize = 4096

const readBufferSize = 64 * 1024

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	gzipMagic = []byte{0x1F, 0x8B}
	zipMagic  = []byte("PK\x03\x04")
	sqlite    = []byte("SQLite format 3\x00")
)

// Detect identifies the format from the first bytes of a file.
func Detect(head []byte) (Format, error) {
	head = bytes.TrimPrefix(head, utf8BOM)
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return "", fmt.Errorf("%w: gzip-compressed input", ErrUnsupportedFormat)
	case bytes.HasPrefix(head, zipMagic):
		return "", fmt.Errorf("%w: zip archive", ErrUnsupportedFormat)
	case bytes.HasPrefix(head, sqlite):
		return "", fmt.Errorf("%w: SQLite database", ErrUnsupportedFormat)
	}

	trimmed := bytes.TrimLeft(head, " \t\r\n")
	switch {
	case len(trimmed) == 0:
		return "", fmt.Errorf("%w: empty input", ErrUnrecognizedFormat)
	case bytes.HasPrefix(trimmed, []byte("<items")),
		bytes.HasPrefix(trimmed, []byte("<?xml")) && bytes.Contains(trimmed, []byte("<items")),
		bytes.HasPrefix(trimmed, []byte("<!DOCTYPE items")):
		return FormatBurpXML, nil
	case trimmed[0] == '{':
		if firstMember(trimmed) == "log" {
			return FormatHAR, nil
		}
		return FormatJSONL, nil
	}

	if strutil.BinaryRatio(string(head), sniffSize) > 0.3 {
		return "", fmt.Errorf("%w: binary data (Burp project files must be exported as XML)", ErrUnsupportedFormat)
	}
	return "", ErrUnrecognizedFormat
}

// firstMember returns the name of the first member of the JSON object
// at the start of data, or "" if it cannot be read.
func firstMember(data []byte) string {
	dec := jsonutil.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.ReadToken(); err != nil || tok.Kind() != '{' {
		return ""
	}
	tok, err := dec.ReadToken()
	if err != nil || tok.Kind() != '"' {
		return ""
	}
	return tok.String()
}

// NewReader detects the format of r and returns a Source over it.
func NewReader(r io.Reader) (traffic.Source, Format, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", fmt.Errorf("session: read: %w", err)
	}
	f, err := Detect(head)
	if err != nil {
		return nil, "", err
	}
	src, err := New(br, f)
	if err != nil {
		return nil, "", err
	}
	return src, f, nil
}

// New returns a Source reading r in the given format.
func New(r io.Reader, f Format) (traffic.Source, error) {
	switch f {
	case FormatBurpXML:
		return newBurpSource(r), nil
	case FormatHAR:
		return newHARSource(r), nil
	case FormatJSONL:
		return newJSONLSource(r), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, f)
}

// Open opens the session file at path. Closing the Source closes the
// file.
func Open(path string) (traffic.Source, Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("session: open: %w", err)
	}
	src, f, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return &fileSource{Source: src, file: file}, f, nil
}

type fileSource struct {
	traffic.Source
	file *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.file.Close())
}

// stream holds the bookkeeping shared by the readers.
type stream struct {
	index  int
	done   bool
	closed bool
}

// begin reports whether a Next call may proceed.
func (s *stream) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed || s.done {
		return io.EOF
	}
	return nil
}

func (s *stream) skip(url, reason string, err error) error {
	return &traffic.RecordError{Index: s.index, URL: url, Reason: reason, Err: err}
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}

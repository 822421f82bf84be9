// Package jsonutil wraps github.com/go-json-experiment/json for the
// reports and session files this tool reads and writes.
//
// Besides the Marshal/Unmarshal helpers it offers Object, which iterates
// the members of an object a streaming decoder is positioned on.
package jsonutil

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrNotObject is returned when an object was expected but another kind
// of value was found.
var ErrNotObject = errors.New("jsonutil: value is not an object")

// Unmarshal parses the JSON-encoded data and stores the result in v.
// Unknown members are ignored.
func Unmarshal(data []byte, v any, opts ...json.Options) error {
	return json.Unmarshal(data, v, opts...)
}

// Marshal returns the JSON encoding of v. Map members are sorted so the
// same value always encodes to the same bytes.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// NewDecoder returns a token decoder reading from r.
func NewDecoder(r io.Reader, opts ...jsontext.Options) *jsontext.Decoder {
	return jsontext.NewDecoder(r, opts...)
}

// Lenient accepts invalid UTF-8 in strings, which captured traffic
// often contains.
var Lenient = jsontext.AllowInvalidUTF8(true)

// Object consumes the object starting at the decoder's next token and
// calls fn for each member name. fn must consume exactly one value
// (ReadValue or SkipValue) before returning.
func Object(dec *jsontext.Decoder, fn func(name string) error) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() != '{' {
		return fmt.Errorf("%w: got %v", ErrNotObject, tok.Kind())
	}
	for dec.PeekKind() != '}' {
		name, err := dec.ReadToken()
		if err != nil {
			return err
		}
		if err := fn(name.String()); err != nil {
			return err
		}
	}
	_, err = dec.ReadToken()
	return err
}

// Encoder writes values to a stream, one per line.
type Encoder struct {
	w      io.Writer
	indent string
}

// NewEncoder creates an encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// SetIndent formats each subsequent value with the given indentation.
func (e *Encoder) SetIndent(indent string) {
	e.indent = indent
}

// Encode writes the JSON encoding of v followed by a newline.
func (e *Encoder) Encode(v any) error {
	opts := []json.Options{json.Deterministic(true)}
	if e.indent != "" {
		opts = append(opts, jsontext.WithIndent(e.indent))
	}
	if err := json.MarshalWrite(e.w, v, opts...); err != nil {
		return err
	}
	_, err := e.w.Write([]byte{'\n'})
	return err
}

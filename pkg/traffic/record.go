package traffic

import "strings"

// FieldKind names the part of a record a chunk of text was taken from.
type FieldKind string

const (
	FieldURL      FieldKind = "url"
	FieldRequest  FieldKind = "request"
	FieldHeader   FieldKind = "header"
	FieldResponse FieldKind = "response"
)

// FieldKinds lists the fields in scan order.
var FieldKinds = []FieldKind{FieldURL, FieldRequest, FieldHeader, FieldResponse}

// IsValid reports whether k is a known field kind.
func (k FieldKind) IsValid() bool {
	switch k {
	case FieldURL, FieldRequest, FieldHeader, FieldResponse:
		return true
	}
	return false
}

// Record is one captured request/response exchange.
// Records are treated as immutable once a Source has produced them.
type Record struct {
	URL             string
	Method          string
	RequestText     string
	ResponseText    string
	ResponseHeaders Headers
	StatusCode      int
}

// Field returns the text of the given field. The header field is the
// response header block rendered as "Name: value" lines. Each byte of
// the record appears in one field only: the request field drops a
// request line that repeats the URL, and the response field drops a raw
// head that HeaderBlock already renders.
func (r *Record) Field(kind FieldKind) string {
	switch kind {
	case FieldURL:
		return r.URL
	case FieldRequest:
		return r.requestField()
	case FieldHeader:
		return r.HeaderBlock()
	case FieldResponse:
		if r.rawHead() {
			_, _, body := ParseRawResponse(r.ResponseText)
			return body
		}
		return r.ResponseText
	default:
		return ""
	}
}

func (r *Record) requestField() string {
	if r.URL == "" {
		return r.RequestText
	}
	line, rest, _ := strings.Cut(r.RequestText, "\n")
	parts := strings.Fields(line)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return r.RequestText
	}
	return rest
}

// rawHead reports whether the headers live only in the head of a raw
// response text.
func (r *Record) rawHead() bool {
	return len(r.ResponseHeaders) == 0 && strings.HasPrefix(r.ResponseText, "HTTP/")
}

// HeaderBlock renders the response headers. When the source supplied no
// parsed headers but the response text is a raw HTTP response, the
// headers are taken from its head.
func (r *Record) HeaderBlock() string {
	if r.rawHead() {
		_, h, _ := ParseRawResponse(r.ResponseText)
		return h.String()
	}
	return r.ResponseHeaders.String()
}

// Size returns the total number of text bytes held by the record.
func (r *Record) Size() int {
	n := len(r.URL) + len(r.RequestText) + len(r.ResponseText)
	for _, h := range r.ResponseHeaders {
		n += len(h.Name) + len(h.Value)
	}
	return n
}

package traffic

import (
	"strings"

	"github.com/waftester/scantriage/pkg/bufpool"
)

// Header is a single response header line.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered header list. Lookups ignore case; order and
// duplicates are preserved exactly as captured.
type Headers []Header

// NewHeaders builds Headers from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewHeaders(pairs ...string) Headers {
	h := make(Headers, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h = append(h, Header{Name: pairs[i], Value: pairs[i+1]})
	}
	return h
}

// Get returns the first value for name, or "" when absent.
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Has reports whether a header with the given name is present.
func (h Headers) Has(name string) bool {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return true
		}
	}
	return false
}

// Values returns every value for name in capture order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// Len returns the number of header lines.
func (h Headers) Len() int {
	return len(h)
}

// String renders the headers as "Name: value" lines separated by "\n".
func (h Headers) String() string {
	if len(h) == 0 {
		return ""
	}
	sb := bufpool.GetString()
	defer bufpool.PutString(sb)
	for i, hdr := range h {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(hdr.Name)
		sb.WriteString(": ")
		sb.WriteString(hdr.Value)
	}
	return sb.String()
}

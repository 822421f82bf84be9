package traffic

import (
	"strconv"
	"strings"
)

// ParseRawResponse splits a raw HTTP response into status code, ordered
// headers and body. It is lenient: a missing status line yields status 0,
// malformed header lines are skipped, and text without a header/body
// separator is treated as headers only when it starts with "HTTP/".
func ParseRawResponse(raw string) (status int, headers Headers, body string) {
	if !strings.HasPrefix(raw, "HTTP/") {
		return 0, nil, raw
	}
	head, body := splitHead(raw)
	lines := splitLines(head)
	if len(lines) == 0 {
		return 0, nil, body
	}
	status = parseStatusLine(lines[0])
	headers = parseHeaderLines(lines[1:])
	return status, headers, body
}

// ParseRawRequest extracts the method and request target from a raw
// HTTP request line. It returns empty strings when the line is malformed.
func ParseRawRequest(raw string) (method, target string) {
	line := raw
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	parts := strings.Fields(strings.TrimRight(line, "\r"))
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// ParseHeaderBlock parses "Name: value" lines into Headers.
func ParseHeaderBlock(block string) Headers {
	return parseHeaderLines(splitLines(block))
}

func splitHead(raw string) (head, body string) {
	if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
		return raw[:i], raw[i+4:]
	}
	if i := strings.Index(raw, "\n\n"); i >= 0 {
		return raw[:i], raw[i+2:]
	}
	return raw, ""
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func parseStatusLine(line string) int {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return 0
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return code
}

func parseHeaderLines(lines []string) Headers {
	headers := make(Headers, 0, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, " \t") {
			continue
		}
		headers = append(headers, Header{Name: name, Value: strings.TrimSpace(value)})
	}
	return headers
}

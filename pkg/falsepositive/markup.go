package falsepositive

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/regexcache"
	"github.com/waftester/scantriage/pkg/traffic"
)

// inertElements render their content as text, so payloads inside them
// do not execute.
var inertElements = map[string]string{
	"code":     "code element",
	"pre":      "preformatted text",
	"textarea": "textarea",
	"xmp":      "xmp element",
	"noscript": "noscript element",
	"title":    "title element",
	"style":    "CSS context",
}

var (
	escapedPayload = regexcache.MustCompile(`&lt;|&gt;|&#0*60;|&#x0*3c;|&quot;|&#0*39;|&#x0*27;|\\u003c|\\x3c|%3c|\\"|\\'`, true)
	docMarker      = regexcache.MustCompile(`(?:^|[\s>("'])(?:examples?|e\.g\.|usage|sample|tutorial|cheat ?sheet|payloads? list|documentation|swagger|openapi|readme|lorem ipsum|test ?case)(?:[\s:<)"',]|$)`, true)
	frameworkIdiom = regexcache.MustCompile(`v-html|ng-bind-html|dangerouslySetInnerHTML|__webpack_require__|__NEXT_DATA__|sourceMappingURL|jQuery|\$\(document\)|React\.createElement|angular\.module|/\*!\s*\w+ v\d`, false)
)

func (f *Filter) checkMarkup(c *finding.Candidate) {
	if c.Field != traffic.FieldResponse {
		return
	}
	if c.Subkind == "command_output" || c.Subkind == "error_disclosure" {
		// Server output; markup around it is irrelevant.
		if docContext(c.Context) {
			c.Flag("documentation or sample context")
		}
		return
	}
	if escapedPayload.MatchString(c.Value) {
		c.Flag("payload is encoded or escaped in the response")
	}
	if where := inertContext(c.Context, c.MatchOffset); where != "" {
		c.Flag("inside " + where)
	}
	if docContext(c.Context) {
		c.Flag("documentation or sample context")
	}
	if m := frameworkIdiom.FindString(c.Context); m != "" {
		c.Flag("framework code (" + m + ")")
	}
}

// inertContext tokenizes the markup preceding offset and returns a label
// for the innermost open element or comment that keeps a payload inert,
// or "" if the match sits in live markup.
func inertContext(ctx string, offset int) string {
	if offset <= 0 || offset > len(ctx) {
		return ""
	}
	prefix := ctx[:offset]
	if i := strings.LastIndex(prefix, "<!--"); i >= 0 && !strings.Contains(prefix[i:], "-->") {
		return "HTML comment"
	}

	var open []string
	z := html.NewTokenizer(strings.NewReader(prefix))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return ""
			}
			break
		}
		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			if _, ok := inertElements[string(name)]; ok {
				open = append(open, string(name))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == string(name) {
					open = open[:i]
					break
				}
			}
		}
	}
	if len(open) == 0 {
		return ""
	}
	return inertElements[open[len(open)-1]]
}

// docContext reports prose that marks the surrounding text as an example.
// Markers must stand alone, so "example.com" in an address does not count.
func docContext(ctx string) bool {
	return docMarker.MatchString(ctx)
}

package falsepositive

import (
	"strings"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/regexcache"
)

var (
	linkAttr    = regexcache.MustCompile(`\b(?:href|src|srcset|action|import|from|url\()\s*=?\s*["']?$`, true)
	staticAsset = regexcache.MustCompile(`\.(?:css|js|mjs|map|png|jpe?g|gif|svg|webp|ico|woff2?|ttf|eot|otf|html?|json|md)(?:[?#].*)?$`, true)
)

func (f *Filter) checkTraversal(c *finding.Candidate) {
	if c.Subkind == "file_disclosure" {
		if docContext(c.Context) {
			c.Flag("documentation or sample context")
		}
		return
	}

	if c.Subkind != "encoded_traversal" {
		if d := traversalDepth(c.Value); d < f.th.MinTraversalDepth {
			c.Demote(finding.ConfidenceLow, "shallow traversal")
		}
	}
	if staticAsset.MatchString(c.Value) {
		c.Flag("relative link to a static asset")
	}
	if c.MatchOffset > 0 && c.MatchOffset <= len(c.Context) {
		before := c.Context[max(0, c.MatchOffset-24):c.MatchOffset]
		if linkAttr.MatchString(before) {
			c.Flag("relative link in markup or import")
		}
	}
}

// traversalDepth counts ".." segments, treating backslashes as separators.
func traversalDepth(v string) int {
	v = strings.ReplaceAll(v, `\`, "/")
	n := 0
	for _, seg := range strings.Split(v, "/") {
		if seg == ".." {
			n++
		}
	}
	return n
}

// checkStatus inspects the response status of a probed path.
func checkStatus(c *finding.Candidate) {
	switch s := c.Status; {
	case s == 404 || s == 410:
		c.Demote(finding.ConfidenceLow, "resource not found")
		c.Flag("response status indicates the resource does not exist")
	case s == 401 || s == 403:
		c.Flag("access denied by the server")
	case s >= 300 && s < 400:
		c.Flag("request was redirected")
	case s >= 500:
		c.Demote(finding.ConfidenceLow, "server error response")
	}
}

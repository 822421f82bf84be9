// Package finding provides the shared vulnerability types used across the
// scantriage pipeline: severity and confidence scales, the category
// taxonomy, raw Candidates emitted by the matcher and the deduplicated
// Findings that end up in a report.
//
// Usage:
//
//	c := finding.Candidate{
//	    Category:   finding.SQLInjection,
//	    URL:        "https://example.com/search",
//	    Evidence:   "' OR '1'='1",
//	    Confidence: finding.ConfidenceHigh,
//	    Severity:   finding.High,
//	}
package finding

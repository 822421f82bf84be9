package finding

import "errors"

// Sentinel errors returned by the Parse helpers.
// Callers should use errors.Is() to check for these.
var (
	// ErrUnknownSeverity indicates a severity name outside info..critical.
	ErrUnknownSeverity = errors.New("finding: unknown severity")

	// ErrUnknownConfidence indicates a confidence name outside low..certain.
	ErrUnknownConfidence = errors.New("finding: unknown confidence")

	// ErrUnknownCategory indicates a category that is not part of the taxonomy.
	ErrUnknownCategory = errors.New("finding: unknown category")
)

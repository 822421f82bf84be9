// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.Chunk.Size = defaults.ChunkSize
//	cfg.Evidence.MaxLength = defaults.EvidenceMaxLength
//
// Do not hardcode sizes or thresholds elsewhere; reference the constant.
package defaults

import (
	"runtime"
	"time"
)

// Version is the current scantriage version.
const Version = "1.2.0"

// Tool identity used in reports, SARIF, metrics and traces.
const (
	ToolName        = "scantriage"
	ToolNameDisplay = "ScanTriage"
	ToolURI         = "https://github.com/waftester/scantriage"
)

// ============================================================================
// CHUNKING
// ============================================================================
//
// Overlap must exceed the longest expected match span so multi-token
// patterns survive a window boundary.
// ============================================================================

const (
	// ChunkSize is the maximum window length in bytes (64 KiB).
	ChunkSize = 64 * 1024

	// ChunkOverlap is the number of bytes shared by consecutive windows (1 KiB).
	ChunkOverlap = 1024

	// MaxHeaderBlock caps the rendered response header block (64 KiB).
	MaxHeaderBlock = 64 * 1024
)

// ============================================================================
// EVIDENCE
// ============================================================================

const (
	// EvidenceMaxLength bounds reported evidence, in runes.
	EvidenceMaxLength = 200

	// ContextRadius is how many bytes around a match the validator sees.
	ContextRadius = 120

	// NormalizedEvidenceLength is the canonical comparison length used
	// by deduplication, in runes.
	NormalizedEvidenceLength = 100

	// MaxValueLength bounds the captured value handed to validators.
	MaxValueLength = 1024

	// MaxMatchesPerRule caps how many matches one rule may report from a
	// single chunk.
	MaxMatchesPerRule = 256

	// BinaryRatio is the share of control bytes above which a body chunk
	// is treated as binary and skipped.
	BinaryRatio = 0.30

	// BinarySample is how many leading bytes of a chunk are inspected.
	BinarySample = 512
)

// ============================================================================
// PIPELINE
// ============================================================================

const (
	// MinConfidence is the default reporting threshold.
	MinConfidence = "medium"

	// QueueDepthPerWorker sizes the chunk channel relative to worker count.
	QueueDepthPerWorker = 4

	// ProgressInterval is the minimum spacing between progress log lines, in seconds.
	ProgressInterval = 2
)

// Workers returns the default worker count: one per usable CPU.
func Workers() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// ============================================================================
// REPORTING
// ============================================================================

const (
	// TopFindings is how many findings the narrative summary lists.
	TopFindings = 10

	// FindingsSuffix and SummarySuffix name the report files:
	// <basename>_vulnerabilities.json and <basename>_SUMMARY.txt.
	FindingsSuffix = "_vulnerabilities.json"
	SummarySuffix  = "_SUMMARY.txt"
	SARIFSuffix    = "_vulnerabilities.sarif"
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// MetricsPath is where the Prometheus endpoint is served.
	MetricsPath = "/metrics"

	// MetricsReadTimeout bounds a scrape request.
	MetricsReadTimeout = 5 * time.Second

	// ShutdownTimeout bounds flushing traces and stopping the metrics server.
	ShutdownTimeout = 5 * time.Second

	// TracingConnectTimeout bounds creating the OTLP exporter.
	TracingConnectTimeout = 10 * time.Second
)

// Package output writes triage reports to disk.
//
// A run produces up to three files named after the input session:
//
//	<base>_vulnerabilities.json   metadata, summary and findings
//	<base>_SUMMARY.txt            human-readable narrative
//	<base>_vulnerabilities.sarif  SARIF 2.1.0, when enabled
//
// Every file is written to a temporary name and renamed into place, so
// an interrupted write never leaves a partial report behind.
package output

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/iohelper"
)

// ErrNoReport is returned when Write is called without a report.
var ErrNoReport = errors.New("output: no report")

// Files holds the paths of the report files.
type Files struct {
	Findings string `json:"findings"`
	Summary  string `json:"summary"`
	SARIF    string `json:"sarif,omitempty"`
}

// Writer writes the report files for one input into a directory.
type Writer struct {
	dir    string
	base   string
	sarif  bool
	perm   os.FileMode
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithSARIF enables the SARIF report.
func WithSARIF(enabled bool) Option {
	return func(w *Writer) { w.sarif = enabled }
}

// WithPermissions sets the mode of the written files.
func WithPermissions(perm os.FileMode) Option {
	return func(w *Writer) { w.perm = perm }
}

// WithLogger sets the logger for write notices.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// New returns a Writer placing reports for input in dir. An empty dir
// means the directory of the input file.
func New(dir, input string, opts ...Option) *Writer {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	w := &Writer{
		dir:    dir,
		base:   BaseName(input),
		perm:   0o644,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// BaseName returns the report base name for an input path: the file
// name without its extension.
func BaseName(input string) string {
	name := filepath.Base(input)
	if name == "." || name == "/" || name == "-" || name == "" {
		return "session"
	}
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// Paths returns where Write will put the files.
func (w *Writer) Paths() Files {
	f := Files{
		Findings: filepath.Join(w.dir, w.base+defaults.FindingsSuffix),
		Summary:  filepath.Join(w.dir, w.base+defaults.SummarySuffix),
	}
	if w.sarif {
		f.SARIF = filepath.Join(w.dir, w.base+defaults.SARIFSuffix)
	}
	return f
}

// Write renders rep into every enabled format.
func (w *Writer) Write(rep *aggregate.Report) (Files, error) {
	if rep == nil {
		return Files{}, ErrNoReport
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("output: %w", err)
	}

	files := w.Paths()
	type job struct {
		path   string
		render func(io.Writer) error
	}
	jobs := []job{
		{files.Findings, func(out io.Writer) error { return WriteJSON(out, rep) }},
		{files.Summary, func(out io.Writer) error { return WriteSummary(out, rep, files) }},
	}
	if w.sarif {
		jobs = append(jobs, job{files.SARIF, func(out io.Writer) error { return WriteSARIF(out, rep) }})
	}

	for _, j := range jobs {
		if err := iohelper.WriteFileAtomic(j.path, w.perm, j.render); err != nil {
			return Files{}, fmt.Errorf("output: write %s: %w", j.path, err)
		}
		w.logger.Debug("report written", slog.String("path", j.path))
	}
	return files, nil
}

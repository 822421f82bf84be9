// Package cli implements the scantriage commands behind cmd/cli. Each
// command takes an options struct and writes to an io.Writer so it can be
// driven from tests without flag parsing or os.Exit.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/waftester/scantriage/pkg/catalog"
	"github.com/waftester/scantriage/pkg/config"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/pipeline"
)

// Command represents a CLI command.
type Command string

const (
	CommandAnalyze Command = "analyze"
	CommandRules   Command = "rules"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// ErrUsage marks errors caused by invalid arguments.
var ErrUsage = errors.New("usage")

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return defaults.ExitSuccess
	case errors.Is(err, pipeline.ErrInterrupted), errors.Is(err, context.Canceled):
		return defaults.ExitInterrupted
	case errors.Is(err, ErrUsage):
		return defaults.ExitUserError
	default:
		return defaults.ExitFatal
	}
}

// NewLogger builds the process logger. JSON selects slog's JSON handler
// for log shipping; otherwise logs are key=value text.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoggerFromConfig builds a logger from the logging section of cfg.
func LoggerFromConfig(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	return NewLogger(w, level, cfg.Logging.JSON), nil
}

// loadConfig returns the file at path, or the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newCatalog reuses the shared built-in catalog when there is nothing to
// add to it.
func newCatalog(extra []catalog.Rule) (*catalog.Catalog, error) {
	if len(extra) == 0 {
		return catalog.Default(), nil
	}
	return catalog.New(extra...)
}

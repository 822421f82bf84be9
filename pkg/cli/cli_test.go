package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/scantriage/pkg/config"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/jsonutil"
	"github.com/waftester/scantriage/pkg/pipeline"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, defaults.ExitSuccess},
		{"usage", fmt.Errorf("%w: bad flag", ErrUsage), defaults.ExitUserError},
		{"interrupted", fmt.Errorf("%w: %w", pipeline.ErrInterrupted, context.Canceled), defaults.ExitInterrupted},
		{"canceled", context.Canceled, defaults.ExitInterrupted},
		{"fatal", errors.New("disk on fire"), defaults.ExitFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var text bytes.Buffer
	NewLogger(&text, slog.LevelInfo, false).Debug("hidden")
	NewLogger(&text, slog.LevelInfo, false).Info("shown", slog.Int("records", 3))
	assert.NotContains(t, text.String(), "hidden")
	assert.Contains(t, text.String(), "msg=shown records=3")

	var js bytes.Buffer
	NewLogger(&js, slog.LevelDebug, true).Debug("line", slog.String("run_id", "r1"))
	var rec struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
		RunID string `json:"run_id"`
	}
	require.NoError(t, jsonutil.Unmarshal(bytes.TrimSpace(js.Bytes()), &rec))
	assert.Equal(t, "DEBUG", rec.Level)
	assert.Equal(t, "line", rec.Msg)
	assert.Equal(t, "r1", rec.RunID)
}

func TestLoggerFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Logging.Level = "warn"
	var buf bytes.Buffer
	logger, err := LoggerFromConfig(&buf, cfg)
	require.NoError(t, err)
	logger.Info("quiet")
	logger.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")

	cfg.Logging.Level = "chatty"
	_, err = LoggerFromConfig(&buf, cfg)
	assert.Error(t, err)
}

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/catalog"
	"github.com/waftester/scantriage/pkg/chunker"
	"github.com/waftester/scantriage/pkg/config"
	"github.com/waftester/scantriage/pkg/falsepositive"
	"github.com/waftester/scantriage/pkg/matcher"
	"github.com/waftester/scantriage/pkg/metrics"
	"github.com/waftester/scantriage/pkg/output"
	"github.com/waftester/scantriage/pkg/pipeline"
	"github.com/waftester/scantriage/pkg/session"
	"github.com/waftester/scantriage/pkg/tracing"
)

// AnalyzeFlags are the command-line overrides of the analyze command.
// Zero values leave the configuration untouched unless the flag's name
// is in Set, so an explicit "-overlap 0" still wins over the file.
type AnalyzeFlags struct {
	ConfigFile    string
	MinConfidence string
	Workers       int
	ChunkSize     int
	ChunkOverlap  int
	OutputDir     string
	SARIF         bool
	MetricsAddr   string
	OTLPEndpoint  string
	LogLevel      string
	LogJSON       bool

	// Set holds the names of the flags given on the command line.
	Set map[string]bool
}

// Flag names shared with the command-line parser.
const (
	FlagConfidence   = "confidence"
	FlagWorkers      = "workers"
	FlagChunkSize    = "chunk-size"
	FlagChunkOverlap = "overlap"
	FlagOutputDir    = "o"
	FlagSARIF        = "sarif"
	FlagMetricsAddr  = "metrics-addr"
	FlagOTLPEndpoint = "otel-endpoint"
	FlagLogLevel     = "log-level"
	FlagLogJSON      = "log-json"
)

func (f *AnalyzeFlags) given(name string, nonZero bool) bool {
	return nonZero || f.Set[name]
}

// Resolve loads the configuration file, if any, and applies the flags
// over it. Invalid flag values are reported as ErrUsage.
func (f *AnalyzeFlags) Resolve() (*config.Config, error) {
	cfg, err := loadConfig(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	if f.given(FlagConfidence, f.MinConfidence != "") {
		cfg.MinConfidence = f.MinConfidence
	}
	if f.given(FlagWorkers, f.Workers != 0) {
		cfg.Workers = f.Workers
	}
	if f.given(FlagChunkSize, f.ChunkSize != 0) {
		cfg.Chunk.Size = f.ChunkSize
	}
	if f.given(FlagChunkOverlap, f.ChunkOverlap != 0) {
		cfg.Chunk.Overlap = f.ChunkOverlap
	}
	if f.given(FlagOutputDir, f.OutputDir != "") {
		cfg.Output.Dir = f.OutputDir
	}
	if f.given(FlagSARIF, f.SARIF) {
		cfg.Output.SARIF = f.SARIF
	}
	if f.given(FlagMetricsAddr, f.MetricsAddr != "") {
		cfg.Metrics.Addr = f.MetricsAddr
	}
	if f.given(FlagOTLPEndpoint, f.OTLPEndpoint != "") {
		cfg.Tracing.Endpoint = f.OTLPEndpoint
	}
	if f.given(FlagLogLevel, f.LogLevel != "") {
		cfg.Logging.Level = f.LogLevel
	}
	if f.given(FlagLogJSON, f.LogJSON) {
		cfg.Logging.JSON = f.LogJSON
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return cfg, nil
}

// AnalyzeOptions for the analyze command.
type AnalyzeOptions struct {
	Input    string
	Config   *config.Config
	Logger   *slog.Logger
	Progress func(pipeline.Progress)
}

// AnalyzeResult is what a run produced.
type AnalyzeResult struct {
	Report *aggregate.Report
	Format session.Format
	Files  output.Files
}

// RunAnalyze classifies one session file and writes the report files.
//
// A source failure returns no report and writes nothing. An interrupted
// run returns the partial report with an error wrapping
// pipeline.ErrInterrupted and also writes nothing, so a report on disk is
// always complete.
func RunAnalyze(ctx context.Context, opts *AnalyzeOptions) (*AnalyzeResult, error) {
	if opts.Input == "" {
		return nil, fmt.Errorf("%w: no session file given", ErrUsage)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cat, filter, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.New(cfg.Chunk.Size, cfg.Chunk.Overlap)
	if err != nil {
		return nil, err
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithWorkers(cfg.WorkerCount()),
		pipeline.WithChunker(ch),
		pipeline.WithMinConfidence(cfg.Confidence()),
		pipeline.WithNormalizedLength(cfg.Evidence.NormalizedLength),
		pipeline.WithMatcherOptions(
			matcher.WithEvidenceLength(cfg.Evidence.MaxLength),
			matcher.WithContextRadius(cfg.Evidence.ContextRadius),
			matcher.WithMaxMatches(cfg.Evidence.MaxMatchesPerRule),
		),
		pipeline.WithLogger(logger),
	}
	if opts.Progress != nil {
		pipeOpts = append(pipeOpts, pipeline.WithProgress(opts.Progress))
	}

	if cfg.Metrics.Addr != "" {
		m, err := metrics.New()
		if err != nil {
			return nil, err
		}
		srv, err := m.Listen(cfg.Metrics.Addr, logger)
		if err != nil {
			return nil, err
		}
		defer srv.Close()
		pipeOpts = append(pipeOpts, pipeline.WithMetrics(m))
	}

	tp, err := tracing.Setup(ctx, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		Headers:     cfg.Tracing.Headers,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("flushing traces", slog.String("error", err.Error()))
		}
	}()

	src, format, err := session.Open(opts.Input)
	if err != nil {
		return nil, err
	}
	pipeOpts = append(pipeOpts, pipeline.WithInput(opts.Input, string(format)))
	p, err := pipeline.New(cat, filter, pipeOpts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	logger.Debug("analysis starting",
		slog.String("input", opts.Input),
		slog.String("format", string(format)),
		slog.Int("rules", cat.Len()),
		slog.Int("workers", cfg.WorkerCount()))

	res := &AnalyzeResult{Format: format}
	res.Report, err = p.Run(ctx, src)
	if err != nil {
		return res, err
	}

	w := output.New(cfg.Output.Dir, opts.Input,
		output.WithSARIF(cfg.Output.SARIF),
		output.WithLogger(logger))
	res.Files, err = w.Write(res.Report)
	if err != nil {
		return res, err
	}
	return res, nil
}

// buildEngine compiles the catalog and the false-positive filter.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*catalog.Catalog, *falsepositive.Filter, error) {
	rules, err := cfg.LoadRules()
	if err != nil {
		return nil, nil, err
	}
	cat, err := newCatalog(rules)
	if err != nil {
		return nil, nil, err
	}
	exclusions, err := cfg.LoadExclusions()
	if err != nil {
		return nil, nil, err
	}
	filter, err := falsepositive.New(
		falsepositive.WithThresholds(cfg.Thresholds),
		falsepositive.WithExclusions(exclusions...),
		falsepositive.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return cat, filter, nil
}

// Package pipeline runs a session through the chunker, matcher, validator
// and aggregator.
//
// Records are read and chunked on the calling goroutine and chunks are
// submitted to a bounded worker pool, so a slow consumer throttles the
// reader. Each worker matches and validates one chunk and hands the
// resulting batch to a single aggregation goroutine, which is the only
// owner of the grouping state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/catalog"
	"github.com/waftester/scantriage/pkg/chunker"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/falsepositive"
	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/matcher"
	"github.com/waftester/scantriage/pkg/metrics"
	"github.com/waftester/scantriage/pkg/tracing"
	"github.com/waftester/scantriage/pkg/traffic"
	"github.com/waftester/scantriage/pkg/workerpool"
)

var (
	// ErrInterrupted is returned, wrapped with the context error, when a
	// run stops early. The partial report is still returned.
	ErrInterrupted = errors.New("pipeline: interrupted")

	// ErrMissingComponent is returned by New without a catalog or filter.
	ErrMissingComponent = errors.New("pipeline: missing component")
)

// Progress is a snapshot of a running analysis.
type Progress struct {
	Records        int64
	RecordsSkipped int64
	Chunks         int64
	ChunksSkipped  int64
	Queued         int
	Elapsed        time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the number of matching goroutines.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithChunker replaces the default 64 KiB / 1 KiB chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.chunker = c
		}
	}
}

// WithMinConfidence sets the reporting threshold.
func WithMinConfidence(c finding.Confidence) Option {
	return func(p *Pipeline) { p.minConf = c }
}

// WithNormalizedLength sets the evidence length used for deduplication.
func WithNormalizedLength(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.normLen = n
		}
	}
}

// WithMatcherOptions passes options through to the matcher.
func WithMatcherOptions(opts ...matcher.Option) Option {
	return func(p *Pipeline) { p.matcherOpts = append(p.matcherOpts, opts...) }
}

// WithMetrics records pipeline counters in m.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger for progress and skipped records.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithInput names the session in the report metadata.
func WithInput(name, format string) Option {
	return func(p *Pipeline) { p.input, p.format = name, format }
}

// WithProgress registers fn to receive throttled progress snapshots and
// a final one when the run ends. fn runs on the reading goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// Pipeline is reusable; each Run starts from empty state.
type Pipeline struct {
	cat     *catalog.Catalog
	filter  *falsepositive.Filter
	matcher *matcher.Matcher
	chunker *chunker.Chunker

	workers     int
	minConf     finding.Confidence
	normLen     int
	matcherOpts []matcher.Option
	metrics     *metrics.Pipeline
	logger      *slog.Logger
	input       string
	format      string
	progress    func(Progress)
}

// New wires a pipeline around an immutable catalog and filter.
func New(cat *catalog.Catalog, filter *falsepositive.Filter, opts ...Option) (*Pipeline, error) {
	if cat == nil || filter == nil {
		return nil, ErrMissingComponent
	}
	p := &Pipeline{
		cat:     cat,
		filter:  filter,
		workers: defaults.Workers(),
		minConf: finding.Confidence(defaults.MinConfidence),
		normLen: defaults.NormalizedEvidenceLength,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.minConf.IsValid() {
		return nil, fmt.Errorf("pipeline: %w", finding.ErrUnknownConfidence)
	}
	if p.chunker == nil {
		c, err := chunker.New(defaults.ChunkSize, defaults.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		p.chunker = c
	}
	p.matcher = matcher.New(cat, append([]matcher.Option{matcher.WithLogger(p.logger)}, p.matcherOpts...)...)
	return p, nil
}

// counters are per run so a reused Pipeline reports only its own work.
type counters struct {
	records        atomic.Int64
	recordsSkipped atomic.Int64
	chunks         atomic.Int64
	chunksSkipped  atomic.Int64
}

func (c *counters) snapshot(start time.Time, queued int) Progress {
	return Progress{
		Records:        c.records.Load(),
		RecordsSkipped: c.recordsSkipped.Load(),
		Chunks:         c.chunks.Load(),
		ChunksSkipped:  c.chunksSkipped.Load(),
		Queued:         queued,
		Elapsed:        time.Since(start),
	}
}

// Run analyses every record src yields and closes src. A skippable
// record error is counted and logged; any other source error aborts the
// run and no report is returned. When ctx ends first, Run stops reading,
// lets in-flight chunks finish and returns the partial report with an
// error wrapping ErrInterrupted.
func (p *Pipeline) Run(ctx context.Context, src traffic.Source) (*aggregate.Report, error) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("input", p.input),
		attribute.String("format", p.format),
		attribute.Int("workers", p.workers),
		attribute.String("catalog.version", p.cat.Version()),
	))
	defer span.End()

	failuresBefore := p.filter.Stats().Failures
	var st counters

	pool := workerpool.New(p.workers,
		workerpool.WithQueueDepth(p.workers*defaults.QueueDepthPerWorker),
		workerpool.WithPanicHandler(func(r any) {
			st.chunksSkipped.Add(1)
			p.logger.Debug("chunk task recovered", slog.String("panic", fmt.Sprint(r)))
		}))

	batches := make(chan []finding.Candidate, p.workers)
	agg := aggregate.New(aggregate.WithNormalizedLength(p.normLen))
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		for b := range batches {
			agg.AddAll(b)
		}
	}()

	readErr := p.read(ctx, src, pool, batches, &st, start)

	pool.Close()
	close(batches)
	<-aggDone

	if cerr := src.Close(); cerr != nil {
		p.logger.Debug("closing source", slog.String("error", cerr.Error()))
	}

	interrupted := errors.Is(readErr, ErrInterrupted)
	if readErr != nil && !interrupted {
		span.RecordError(readErr)
		span.SetStatus(codes.Error, "source failed")
		return nil, readErr
	}

	rep := agg.Report(p.minConf)
	p.annotate(rep)
	rep.Meta = aggregate.RunMeta{
		RunID:           uuid.NewString(),
		Tool:            defaults.ToolName,
		Version:         defaults.Version,
		CatalogVersion:  p.cat.Version(),
		Rules:           p.cat.Len(),
		Input:           p.input,
		Format:          p.format,
		MinConfidence:   p.minConf,
		Workers:         p.workers,
		ChunkSize:       p.chunker.Size(),
		ChunkOverlap:    p.chunker.Overlap(),
		RecordsRead:     st.records.Load(),
		RecordsSkipped:  st.recordsSkipped.Load(),
		ChunksProcessed: st.chunks.Load(),
		ChunksSkipped:   st.chunksSkipped.Load(),
		Candidates:      agg.Candidates(),
		ValidatorErrors: p.filter.Stats().Failures - failuresBefore,
		StartedAt:       start.UTC(),
		DurationMS:      time.Since(start).Milliseconds(),
		Interrupted:     interrupted,
	}

	bySeverity := make(map[string]int, len(rep.Summary.BySeverity))
	for sev, n := range rep.Summary.BySeverity {
		bySeverity[string(sev)] = n
	}
	p.metrics.RunFinished(bySeverity, time.Since(start))

	span.SetAttributes(
		attribute.Int64("records", rep.Meta.RecordsRead),
		attribute.Int64("chunks", rep.Meta.ChunksProcessed),
		attribute.Int64("chunks.skipped", rep.Meta.ChunksSkipped),
		attribute.Int("findings", len(rep.Findings)),
	)
	p.logger.Info("analysis finished",
		slog.String("run_id", rep.Meta.RunID),
		slog.Int64("records", rep.Meta.RecordsRead),
		slog.Int64("records_skipped", rep.Meta.RecordsSkipped),
		slog.Int64("chunks", rep.Meta.ChunksProcessed),
		slog.Int64("chunks_skipped", rep.Meta.ChunksSkipped),
		slog.Int("findings", len(rep.Findings)),
		slog.Int("filtered", rep.Summary.FilteredByConfidence),
		slog.Duration("elapsed", time.Since(start)))

	if interrupted {
		span.SetStatus(codes.Error, "interrupted")
		return rep, readErr
	}
	return rep, nil
}

// read pulls records until the source ends, fails, or ctx is done.
func (p *Pipeline) read(ctx context.Context, src traffic.Source, pool *workerpool.Pool,
	out chan<- []finding.Candidate, st *counters, start time.Time) error {
	progress := rate.Sometimes{Interval: defaults.ProgressInterval * time.Second}
	report := func() {
		snap := st.snapshot(start, pool.Waiting())
		p.metrics.QueueDepth(snap.Queued)
		if p.progress != nil {
			p.progress(snap)
		}
		p.logger.Debug("progress",
			slog.Int64("records", snap.Records),
			slog.Int64("chunks", snap.Chunks),
			slog.Int("queued", snap.Queued))
	}
	defer report()

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		rec, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case ctx.Err() != nil:
				return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
			case traffic.IsSkippable(err):
				st.recordsSkipped.Add(1)
				p.metrics.RecordSkipped()
				p.logger.Debug("record skipped", slog.Int("index", index), slog.String("reason", err.Error()))
				continue
			default:
				return fmt.Errorf("pipeline: reading record %d: %w", index, err)
			}
		}
		st.records.Add(1)
		p.metrics.RecordRead()

		for ch := range p.chunker.Chunks(&rec, defaults.MaxHeaderBlock) {
			if err := pool.Submit(ctx, func() { p.process(ch, out, st) }); err != nil {
				return fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
		}
		progress.Do(report)
	}
}

// process matches and validates one chunk. The batch is sent whole, so
// an interrupted run never aggregates half a chunk.
func (p *Pipeline) process(ch chunker.Chunk, out chan<- []finding.Candidate, st *counters) {
	t := time.Now()
	cands, err := p.matcher.Match(ch)
	p.metrics.ChunkDone(string(ch.Field), err != nil, time.Since(t))
	if err != nil {
		st.chunksSkipped.Add(1)
		return
	}
	st.chunks.Add(1)
	if len(cands) == 0 {
		return
	}
	for i := range cands {
		p.filter.Validate(&cands[i])
		p.metrics.Candidate(string(cands[i].Category), cands[i].LikelyFalsePositive)
	}
	out <- cands
}

// annotate copies rule metadata the candidates do not carry.
func (p *Pipeline) annotate(rep *aggregate.Report) {
	for i := range rep.Findings {
		f := &rep.Findings[i]
		if r, ok := p.cat.Rule(f.RuleID); ok {
			f.CWE = r.CWE
			f.Remediation = r.Remediation
		}
	}
}

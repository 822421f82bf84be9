// Package metrics exposes pipeline counters for Prometheus scraping.
//
// A nil *Pipeline is valid and records nothing, so callers can pass one
// around unconditionally.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waftester/scantriage/pkg/defaults"
)

const namespace = defaults.ToolName

// Pipeline holds the collectors for one process. It uses a private
// registry so tests and embedders do not collide with the default one.
type Pipeline struct {
	registry *prometheus.Registry

	records    *prometheus.CounterVec
	chunks     *prometheus.CounterVec
	candidates *prometheus.CounterVec
	flagged    *prometheus.CounterVec
	findings   *prometheus.GaugeVec
	chunkTime  prometheus.Histogram
	runTime    prometheus.Gauge
	queueDepth prometheus.Gauge
}

// New creates and registers the pipeline collectors.
func New() (*Pipeline, error) {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Traffic records read from the session, by outcome.",
		}, []string{"outcome"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks handed to the matcher, by field and outcome.",
		}, []string{"field", "outcome"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Raw signature matches, by category.",
		}, []string{"category"}),
		flagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_flagged_total",
			Help:      "Candidates marked as likely false positives, by category.",
		}, []string{"category"}),
		findings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "findings",
			Help:      "Findings in the last report, by severity.",
		}, []string{"severity"}),
		chunkTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_seconds",
			Help:      "Time spent matching and validating one chunk.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		runTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last analysis run.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Chunks waiting for a worker.",
		}),
	}
	for _, c := range []prometheus.Collector{
		p.records, p.chunks, p.candidates, p.flagged,
		p.findings, p.chunkTime, p.runTime, p.queueDepth,
	} {
		if err := p.registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return p, nil
}

// Registry returns the private registry.
func (p *Pipeline) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *Pipeline) RecordRead() {
	if p != nil {
		p.records.WithLabelValues("read").Inc()
	}
}

func (p *Pipeline) RecordSkipped() {
	if p != nil {
		p.records.WithLabelValues("skipped").Inc()
	}
}

// ChunkDone records one matched chunk and how long it took.
func (p *Pipeline) ChunkDone(field string, skipped bool, d time.Duration) {
	if p == nil {
		return
	}
	outcome := "processed"
	if skipped {
		outcome = "skipped"
	}
	p.chunks.WithLabelValues(field, outcome).Inc()
	p.chunkTime.Observe(d.Seconds())
}

// Candidate records one raw match.
func (p *Pipeline) Candidate(category string, flagged bool) {
	if p == nil {
		return
	}
	p.candidates.WithLabelValues(category).Inc()
	if flagged {
		p.flagged.WithLabelValues(category).Inc()
	}
}

// QueueDepth sets the number of queued chunks.
func (p *Pipeline) QueueDepth(n int) {
	if p != nil {
		p.queueDepth.Set(float64(n))
	}
}

// RunFinished publishes the final per-severity counts and run time.
func (p *Pipeline) RunFinished(bySeverity map[string]int, d time.Duration) {
	if p == nil {
		return
	}
	for sev, n := range bySeverity {
		p.findings.WithLabelValues(sev).Set(float64(n))
	}
	p.runTime.Set(d.Seconds())
}

// Server serves the metrics endpoint until its context ends.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr (for example ":9090") and starts serving p.Handler at
// defaults.MetricsPath in the background.
func (p *Pipeline) Listen(addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(defaults.MetricsPath, p.Handler())
	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: defaults.MetricsReadTimeout,
			ReadTimeout:       defaults.MetricsReadTimeout,
		},
		ln:     ln,
		logger: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	logger.Debug("metrics listening", slog.String("addr", s.Addr()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops the server, waiting up to defaults.ShutdownTimeout for
// in-flight scrapes.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaults.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

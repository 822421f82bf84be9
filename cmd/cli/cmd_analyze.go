package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/cli"
	"github.com/waftester/scantriage/pkg/config"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/pipeline"
	"github.com/waftester/scantriage/pkg/ui"
)

const analyzeUsage = defaults.ToolName + " analyze [flags] <session-file>"

type analyzeArgs struct {
	flags      cli.AnalyzeFlags
	input      string
	top        int
	noColor    bool
	silent     bool
	noProgress bool
}

// parseAnalyzeArgs accepts flags before and after the session path.
func parseAnalyzeArgs(args []string, errOut io.Writer) (*analyzeArgs, error) {
	a := &analyzeArgs{}
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&a.flags.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&a.flags.MinConfidence, cli.FlagConfidence, "", "Minimum confidence to report: low, medium, high, certain (default medium)")
	fs.IntVar(&a.flags.Workers, cli.FlagWorkers, 0, "Matcher goroutines (default one per CPU)")
	fs.IntVar(&a.flags.ChunkSize, cli.FlagChunkSize, 0, "Chunk size in bytes (default 65536)")
	fs.IntVar(&a.flags.ChunkOverlap, cli.FlagChunkOverlap, 0, "Overlap between chunks in bytes (default 1024)")
	fs.StringVar(&a.flags.OutputDir, cli.FlagOutputDir, "", "Report directory (default: next to the session file)")
	fs.BoolVar(&a.flags.SARIF, cli.FlagSARIF, false, "Also write a SARIF 2.1.0 report")
	fs.StringVar(&a.flags.MetricsAddr, cli.FlagMetricsAddr, "", "Serve Prometheus metrics on this address during the run")
	fs.StringVar(&a.flags.OTLPEndpoint, cli.FlagOTLPEndpoint, "", "OTLP/gRPC collector for traces")
	fs.StringVar(&a.flags.LogLevel, cli.FlagLogLevel, "", "Log level: debug, info, warn, error")
	fs.BoolVar(&a.flags.LogJSON, cli.FlagLogJSON, false, "Write logs as JSON")
	fs.IntVar(&a.top, "top", defaults.TopFindings, "Findings to show on the console")
	fs.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&a.silent, "silent", false, "Only print errors")
	fs.BoolVar(&a.noProgress, "no-progress", false, "Do not print progress lines")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	a.flags.Set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { a.flags.Set[f.Name] = true })

	switch len(positional) {
	case 0:
		return nil, fmt.Errorf("%w: no session file given", cli.ErrUsage)
	case 1:
		a.input = positional[0]
	default:
		return nil, fmt.Errorf("%w: expected one session file, got %d", cli.ErrUsage, len(positional))
	}
	if a.top < 0 {
		return nil, fmt.Errorf("%w: -top must not be negative", cli.ErrUsage)
	}
	return a, nil
}

func runAnalyze(args []string) int {
	a, err := parseAnalyzeArgs(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return defaults.ExitSuccess
	}
	if err != nil {
		return exitCode(err, analyzeUsage)
	}
	ui.SetNoColor(a.noColor)
	ui.SetSilent(a.silent)

	cfg, err := a.flags.Resolve()
	if err != nil {
		return exitCode(err, analyzeUsage)
	}
	logger, err := cli.LoggerFromConfig(os.Stderr, cfg)
	if err != nil {
		return exitCode(err, analyzeUsage)
	}
	slog.SetDefault(logger)

	ui.PrintBanner()
	printAnalyzeConfig(a.input, cfg)

	ctx, cancel := cli.SignalContext(30 * time.Second)
	defer cancel()

	opts := &cli.AnalyzeOptions{Input: a.input, Config: cfg, Logger: logger}
	if !a.noProgress {
		ui.PrintSection("Analyzing")
		opts.Progress = func(p pipeline.Progress) {
			ui.PrintProgress(p.Records, p.Chunks, p.RecordsSkipped+p.ChunksSkipped, p.Elapsed)
		}
	}

	res, err := cli.RunAnalyze(ctx, opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrInterrupted) && res != nil && res.Report != nil {
			ui.PrintWarning(fmt.Sprintf("Interrupted after %d records", res.Report.Meta.RecordsRead))
			ui.PrintInfo("No report written; rerun to completion to get one")
		}
		return exitCode(err, analyzeUsage)
	}

	ui.PrintReport(res.Report, a.top)
	printFilteredHint(res.Report, cfg.Confidence())
	ui.PrintSection("Reports")
	ui.PrintSuccess("Findings: " + res.Files.Findings)
	ui.PrintSuccess("Summary:  " + res.Files.Summary)
	if res.Files.SARIF != "" {
		ui.PrintSuccess("SARIF:    " + res.Files.SARIF)
	}
	return defaults.ExitSuccess
}

// printFilteredHint points at -confidence when the threshold hid findings.
func printFilteredHint(rep *aggregate.Report, min finding.Confidence) {
	n := rep.Summary.FilteredByConfidence
	if n == 0 || min == finding.ConfidenceLow {
		return
	}
	ui.PrintHelp(fmt.Sprintf("%d findings below %s confidence not shown; use -confidence low to include them", n, min))
}

func printAnalyzeConfig(input string, cfg *config.Config) {
	ui.PrintSection("Configuration")
	ui.PrintConfigLine("Session", input)
	ui.PrintConfigLine("Confidence", string(cfg.Confidence())+"+")
	ui.PrintConfigLine("Workers", strconv.Itoa(cfg.WorkerCount()))
	ui.PrintConfigLine("Chunks", fmt.Sprintf("%d bytes, %d overlap", cfg.Chunk.Size, cfg.Chunk.Overlap))
	if n := len(cfg.Rules) + len(cfg.RuleFiles); n > 0 {
		ui.PrintConfigLine("Extra rules", fmt.Sprintf("%d inline, %d files", len(cfg.Rules), len(cfg.RuleFiles)))
	}
	if n := len(cfg.Exclusions) + len(cfg.ExclusionFiles); n > 0 {
		ui.PrintConfigLine("Exclusions", fmt.Sprintf("%d inline, %d files", len(cfg.Exclusions), len(cfg.ExclusionFiles)))
	}
	if cfg.Output.Dir != "" {
		ui.PrintConfigLine("Output", cfg.Output.Dir)
	}
	if cfg.Metrics.Addr != "" {
		ui.PrintConfigLine("Metrics", "http://"+cfg.Metrics.Addr+defaults.MetricsPath)
	}
	if cfg.Tracing.Endpoint != "" {
		ui.PrintConfigLine("Tracing", cfg.Tracing.Endpoint)
	}
}

// Package config loads the YAML configuration file of the analyze
// command. Every field has a default from pkg/defaults; a file only needs
// the keys it changes, and command-line flags override both.
//
//	min_confidence: high
//	workers: 8
//	chunk:
//	  size: 65536
//	  overlap: 1024
//	thresholds:
//	  min_token_entropy: 3.5
//	exclusions:
//	  - id: staging
//	    url: '^https://staging\.'
//	rule_files: [rules/internal.yaml]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/waftester/scantriage/pkg/catalog"
	"github.com/waftester/scantriage/pkg/chunker"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/falsepositive"
	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/iohelper"
)

// Config holds all analyze settings.
type Config struct {
	// MinConfidence is the reporting threshold (low, medium, high, certain).
	MinConfidence string `yaml:"min_confidence"`
	// Workers is the number of matcher workers; 0 means one per CPU.
	Workers int `yaml:"workers"`

	Chunk    ChunkConfig    `yaml:"chunk"`
	Evidence EvidenceConfig `yaml:"evidence"`

	Thresholds     falsepositive.Thresholds  `yaml:"thresholds"`
	Exclusions     []falsepositive.Exclusion `yaml:"exclusions"`
	ExclusionFiles []string                  `yaml:"exclusion_files"`
	Rules          []catalog.Rule            `yaml:"rules"`
	RuleFiles      []string                  `yaml:"rule_files"`

	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`

	// dir resolves relative rule and exclusion file paths.
	dir string
}

// ChunkConfig sizes the windows text fields are split into.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EvidenceConfig bounds what the matcher extracts per match.
type EvidenceConfig struct {
	MaxLength         int `yaml:"max_length"`
	ContextRadius     int `yaml:"context_radius"`
	NormalizedLength  int `yaml:"normalized_length"`
	MaxMatchesPerRule int `yaml:"max_matches_per_rule"`
}

// OutputConfig controls the report files.
type OutputConfig struct {
	Dir   string `yaml:"dir"`
	SARIF bool   `yaml:"sarif"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig enables OTLP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MinConfidence: defaults.MinConfidence,
		Chunk: ChunkConfig{
			Size:    defaults.ChunkSize,
			Overlap: defaults.ChunkOverlap,
		},
		Evidence: EvidenceConfig{
			MaxLength:         defaults.EvidenceMaxLength,
			ContextRadius:     defaults.ContextRadius,
			NormalizedLength:  defaults.NormalizedEvidenceLength,
			MaxMatchesPerRule: defaults.MaxMatchesPerRule,
		},
		Thresholds: falsepositive.DefaultThresholds(),
		Logging:    LoggingConfig{Level: "info"},
		Tracing:    TracingConfig{Insecure: true, SampleRatio: 1},
	}
}

// Load reads the file at path over the defaults.
// Returns ErrConfigNotFound if the file doesn't exist and
// ErrInvalidConfig if it is malformed.
func Load(path string) (*Config, error) {
	data, err := iohelper.ReadFile(path, iohelper.SmallMaxFileSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if _, err := finding.ParseConfidence(c.MinConfidence); err != nil {
		return fmt.Errorf("%w: min_confidence: %v", ErrInvalidConfig, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	if _, err := chunker.New(c.Chunk.Size, c.Chunk.Overlap); err != nil {
		return fmt.Errorf("%w: chunk: %v", ErrInvalidConfig, err)
	}
	e := c.Evidence
	if e.MaxLength < 1 || e.ContextRadius < 0 || e.NormalizedLength < 1 || e.MaxMatchesPerRule < 1 {
		return fmt.Errorf("%w: evidence limits must be positive", ErrInvalidConfig)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalidConfig, err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Confidence returns the parsed reporting threshold.
func (c *Config) Confidence() finding.Confidence {
	conf, err := finding.ParseConfidence(c.MinConfidence)
	if err != nil {
		return finding.Confidence(defaults.MinConfidence)
	}
	return conf
}

// WorkerCount resolves Workers, substituting the CPU count for 0.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return defaults.Workers()
}

// LogLevel parses Logging.Level ("debug", "info", "warn", "error").
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Logging.Level)))
	return lvl, err
}

// LoadRules returns the inline rules followed by the rules of every
// rule file, in order.
func (c *Config) LoadRules() ([]catalog.Rule, error) {
	rules := append([]catalog.Rule(nil), c.Rules...)
	for _, p := range c.RuleFiles {
		more, err := catalog.LoadFile(c.resolve(p))
		if err != nil {
			return nil, err
		}
		rules = append(rules, more...)
	}
	return rules, nil
}

// LoadExclusions returns the inline exclusions followed by those of every
// exclusion file.
func (c *Config) LoadExclusions() ([]falsepositive.Exclusion, error) {
	ex := append([]falsepositive.Exclusion(nil), c.Exclusions...)
	for _, p := range c.ExclusionFiles {
		more, err := falsepositive.LoadExclusionFile(c.resolve(p))
		if err != nil {
			return nil, err
		}
		ex = append(ex, more...)
	}
	return ex, nil
}

func (c *Config) resolve(path string) string {
	if c.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.dir, path)
}

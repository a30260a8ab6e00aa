package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
)

// Config holds tunables for probing, insight scoring and diff reporting.
type Config struct {
	Probe    ProbeConfig   `json:"probe" yaml:"probe"`
	Insights InsightConfig `json:"insights" yaml:"insights"`
	Diff     DiffConfig    `json:"diff" yaml:"diff"`
}

// ProbeConfig controls how probe statements are issued and summarised.
type ProbeConfig struct {
	Warmup              *bool `json:"warmup,omitempty" yaml:"warmup,omitempty"`
	Iterations          int   `json:"iterations" yaml:"iterations"`
	FullQueryIterations int   `json:"full_query_iterations" yaml:"full_query_iterations"`
	CrossJoinLimit      int   `json:"cross_join_limit" yaml:"cross_join_limit"`
	BottleneckLimit     int   `json:"bottleneck_limit" yaml:"bottleneck_limit"`
	DetailQueryChars    int   `json:"detail_query_chars" yaml:"detail_query_chars"`
	DetailSubqueryChars int   `json:"detail_subquery_chars" yaml:"detail_subquery_chars"`
}

// WarmupEnabled reports whether each probe runs once untimed first. Unset means enabled.
func (p ProbeConfig) WarmupEnabled() bool {
	return p.Warmup == nil || *p.Warmup
}

// Merge fills every unset field of p from base. A negative detail limit disables truncation.
func (p ProbeConfig) Merge(base ProbeConfig) ProbeConfig {
	if p.Warmup == nil {
		p.Warmup = base.Warmup
	}
	if p.Iterations == 0 {
		p.Iterations = base.Iterations
	}
	if p.FullQueryIterations == 0 {
		p.FullQueryIterations = base.FullQueryIterations
	}
	if p.CrossJoinLimit == 0 {
		p.CrossJoinLimit = base.CrossJoinLimit
	}
	if p.BottleneckLimit == 0 {
		p.BottleneckLimit = base.BottleneckLimit
	}
	if p.DetailQueryChars == 0 {
		p.DetailQueryChars = base.DetailQueryChars
	}
	if p.DetailSubqueryChars == 0 {
		p.DetailSubqueryChars = base.DetailSubqueryChars
	}
	return p
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// InsightConfig defines thresholds for insight generation.
type InsightConfig struct {
	DominantStepPercent  float64 `json:"dominant_step_percent" yaml:"dominant_step_percent"`
	SubquerySharePercent float64 `json:"subquery_share_percent" yaml:"subquery_share_percent"`
}

// DiffConfig defines thresholds for diff summaries.
type DiffConfig struct {
	MinDeltaMs       float64 `json:"min_delta_ms" yaml:"min_delta_ms"`
	MinPercentChange float64 `json:"min_percent_change" yaml:"min_percent_change"`
	MaxItems         int     `json:"max_items" yaml:"max_items"`
}

// MaxBottleneckLimit is the most steps a report may flag as bottlenecks.
const MaxBottleneckLimit = 5

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Probe: ProbeConfig{
			Warmup:              Bool(true),
			Iterations:          1,
			FullQueryIterations: 1,
			CrossJoinLimit:      1000,
			BottleneckLimit:     MaxBottleneckLimit,
			DetailQueryChars:    400,
			DetailSubqueryChars: 200,
		},
		Insights: InsightConfig{
			DominantStepPercent:  0.50,
			SubquerySharePercent: 0.30,
		},
		Diff: DiffConfig{
			MinDeltaMs:       0.5,
			MinPercentChange: 5.0,
			MaxItems:         8,
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON. Empty path resets to default.
func Apply(path string) error {
	if path == "" {
		Use(Default())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	Use(cfg)
	return nil
}

// Validate rejects values the probes cannot work with.
func (c Config) Validate() error {
	if c.Probe.Iterations < 1 || c.Probe.FullQueryIterations < 1 {
		return fmt.Errorf("config: probe iterations must be at least 1")
	}
	if c.Probe.CrossJoinLimit < 1 {
		return fmt.Errorf("config: cross_join_limit must be positive")
	}
	if c.Probe.BottleneckLimit < 1 || c.Probe.BottleneckLimit > MaxBottleneckLimit {
		return fmt.Errorf("config: bottleneck_limit must be between 1 and %d", MaxBottleneckLimit)
	}
	return nil
}

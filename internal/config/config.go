// Package config carries the pipeline configuration. One Config value is
// built in main and threaded through every component constructor; nothing
// in the pipeline reads process-wide state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Lock     LockConfig     `yaml:"lock"`
	Learning LearningConfig `yaml:"learning"`
	Meta     MetaConfig     `yaml:"meta"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// LockConfig controls the consolidation advisory lock.
type LockConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LearningConfig controls the genome learner.
type LearningConfig struct {
	// DefaultAlpha is the EMA learning rate applied when no per-algorithm
	// override matches.
	DefaultAlpha float64 `yaml:"default_alpha"`
	// AlphaOverrides maps algorithm tags to learning rates. Fast heuristics
	// tolerate higher rates than slow-adapting models.
	AlphaOverrides map[string]float64 `yaml:"alpha_overrides"`
	// MinBatch is the minimum audited rows required before a learning pass
	// runs at all.
	MinBatch int `yaml:"min_batch"`
	// AnomalyZ is the |z-score| above which a scored row is excluded from
	// training.
	AnomalyZ float64 `yaml:"anomaly_z"`
}

// MetaConfig controls the meta-confidence model.
type MetaConfig struct {
	// MinRows is the audited-history threshold below which retraining is
	// skipped.
	MinRows int `yaml:"min_rows"`
	// OverrideThreshold is the multiplier above which a morphology-rejected
	// candidate is admitted as a dissident.
	OverrideThreshold float64 `yaml:"override_threshold"`
}

// NotifyConfig configures the outbound notification sink.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIURL  string `yaml:"api_url"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
	// RatePerMinute caps outbound messages.
	RatePerMinute int `yaml:"rate_per_minute"`
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Lock: LockConfig{
			TimeoutSeconds: 120,
		},
		Learning: LearningConfig{
			DefaultAlpha: 0.15,
			AlphaOverrides: map[string]float64{
				"positional_freq": 0.20,
				"markov_chain":    0.18,
				"dna_gaussian":    0.15,
				"dna_delta":       0.15,
				"oracle_cached":   0.10,
				"consensus":       0.08,
			},
			MinBatch: 5,
			AnomalyZ: 3.0,
		},
		Meta: MetaConfig{
			MinRows:           300,
			OverrideThreshold: 2.5,
		},
		Notify: NotifyConfig{
			Enabled:       false,
			APIURL:        "https://api.telegram.org",
			RatePerMinute: 20,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path, dataDir string) (Config, error) {
	cfg := Default(dataDir)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise corrupt learning state.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Learning.DefaultAlpha <= 0 || c.Learning.DefaultAlpha >= 1 {
		return fmt.Errorf("learning.default_alpha %.3f: must be in (0,1)", c.Learning.DefaultAlpha)
	}
	for algo, a := range c.Learning.AlphaOverrides {
		if a <= 0 || a >= 1 {
			return fmt.Errorf("learning.alpha_overrides[%s] %.3f: must be in (0,1)", algo, a)
		}
	}
	if c.Lock.TimeoutSeconds <= 0 {
		return fmt.Errorf("lock.timeout_seconds must be positive")
	}
	if c.Meta.MinRows < 1 {
		return fmt.Errorf("meta.min_rows must be at least 1")
	}
	return nil
}

// LockTimeout returns the advisory-lock acquisition window.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.Lock.TimeoutSeconds) * time.Second
}

// Alpha returns the learning rate for an algorithm tag.
func (c Config) Alpha(algorithm string) float64 {
	if a, ok := c.Learning.AlphaOverrides[algorithm]; ok {
		return a
	}
	return c.Learning.DefaultAlpha
}

// Derived paths. Everything durable lives under DataDir.

func (c Config) QueueDir() string      { return filepath.Join(c.DataDir, "queue") }
func (c Config) LedgerPath() string    { return filepath.Join(c.DataDir, "ledger.csv") }
func (c Config) GenomePath() string    { return filepath.Join(c.DataDir, "genome.json") }
func (c Config) MetaModelPath() string { return filepath.Join(c.DataDir, "meta_model.json") }
func (c Config) DashboardPath() string { return filepath.Join(c.DataDir, "dashboard.json") }
func (c Config) LockPath() string      { return filepath.Join(c.DataDir, ".consolidate.lock") }
func (c Config) ResultsDir() string    { return filepath.Join(c.DataDir, "results") }

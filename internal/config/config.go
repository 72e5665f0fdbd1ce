package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config enumerates every tunable of the learning engine with documented
// defaults. Operators retune weights and decay rates here, not in code.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Learning LearningConfig `mapstructure:"learning"`
	Patterns PatternConfig  `mapstructure:"patterns"`
	Sources  SourceConfig   `mapstructure:"sources"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Locks    LockConfig     `mapstructure:"locks"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LearningConfig holds the feedback update tunables shared by the keyword
// tracker and the ingester.
type LearningConfig struct {
	Alpha            float64 `mapstructure:"alpha"`          // EMA learning rate for keyword weights
	ArticleWeight    float64 `mapstructure:"article_weight"` // multiplier for article-level feedback
	DigestWeight     float64 `mapstructure:"digest_weight"`  // multiplier for digest-level feedback
	MinKeywordLength int     `mapstructure:"min_keyword_length"`
}

// PatternConfig holds the pattern store tunables.
type PatternConfig struct {
	ConfidenceCeiling float64       `mapstructure:"confidence_ceiling"` // cap for f(sample_count)
	ConfidenceHalfSat float64       `mapstructure:"confidence_half_sat"`
	ConfidenceFloor   float64       `mapstructure:"confidence_floor"` // decay never goes below this
	MinSamples        float64       `mapstructure:"min_samples"`      // Match returns nothing under this
	DecayWindow       time.Duration `mapstructure:"decay_window"`     // untouched longer than this decays
	DecayFactor       float64       `mapstructure:"decay_factor"`     // multiplicative, per decay pass
}

// SourceConfig holds the source reliability tunables.
type SourceConfig struct {
	Beta       float64       `mapstructure:"beta"`        // EMA rate for reliability updates
	DecayEvery time.Duration `mapstructure:"decay_every"` // staleness unit for decay-on-read
	DecayRate  float64       `mapstructure:"decay_rate"`  // fraction of distance to neutral lost per unit
	Floor      float64       `mapstructure:"floor"`       // reliability never decays below this
	MinSamples int           `mapstructure:"min_samples"` // below this, Reliability returns neutral
}

// EngineConfig holds the prediction combination weights and thresholds.
type EngineConfig struct {
	PatternWeight       float64       `mapstructure:"pattern_weight"`
	KeywordWeight       float64       `mapstructure:"keyword_weight"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"` // pattern must clear this to fire
	MinKeywordSamples   float64       `mapstructure:"min_keyword_samples"`  // keyword signal must clear this
	OutcomeMatchWindow  time.Duration `mapstructure:"outcome_match_window"` // best-effort feedback matching
}

// LockConfig holds the advisory job lock settings.
type LockConfig struct {
	Lease time.Duration `mapstructure:"lease"` // a lock older than this is considered stale
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// Environment variables use the CANARYWATCH_ prefix.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("CANARYWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every tunable at its default,
// without touching the filesystem. Used by tests and embedded callers.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; an unmarshal failure is programmer error.
		panic(fmt.Sprintf("config defaults do not unmarshal: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.db_path", "./data/canarywatch.db")

	v.SetDefault("learning.alpha", 0.2)
	v.SetDefault("learning.article_weight", 2.0)
	v.SetDefault("learning.digest_weight", 1.0)
	v.SetDefault("learning.min_keyword_length", 3)

	v.SetDefault("patterns.confidence_ceiling", 0.95)
	v.SetDefault("patterns.confidence_half_sat", 3.0)
	v.SetDefault("patterns.confidence_floor", 0.05)
	v.SetDefault("patterns.min_samples", 2.0)
	v.SetDefault("patterns.decay_window", "720h") // 30 days
	v.SetDefault("patterns.decay_factor", 0.9)

	v.SetDefault("sources.beta", 0.3)
	v.SetDefault("sources.decay_every", "168h") // 7 days
	v.SetDefault("sources.decay_rate", 0.25)
	v.SetDefault("sources.floor", 0.5)
	v.SetDefault("sources.min_samples", 3)

	v.SetDefault("engine.pattern_weight", 0.5)
	v.SetDefault("engine.keyword_weight", 0.3)
	v.SetDefault("engine.confidence_threshold", 0.6)
	v.SetDefault("engine.min_keyword_samples", 1.0)
	v.SetDefault("engine.outcome_match_window", "168h")

	v.SetDefault("locks.lease", "2h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.Learning.Alpha <= 0.0 || c.Learning.Alpha >= 1.0 {
		return fmt.Errorf("learning.alpha must be in (0.0, 1.0)")
	}
	if c.Learning.DigestWeight <= 0 {
		return fmt.Errorf("learning.digest_weight must be positive")
	}
	if c.Learning.ArticleWeight < c.Learning.DigestWeight {
		return fmt.Errorf("learning.article_weight must be >= learning.digest_weight")
	}
	if c.Learning.MinKeywordLength < 1 {
		return fmt.Errorf("learning.min_keyword_length must be at least 1")
	}

	if c.Patterns.ConfidenceCeiling <= 0.0 || c.Patterns.ConfidenceCeiling > 1.0 {
		return fmt.Errorf("patterns.confidence_ceiling must be in (0.0, 1.0]")
	}
	if c.Patterns.ConfidenceHalfSat <= 0 {
		return fmt.Errorf("patterns.confidence_half_sat must be positive")
	}
	if c.Patterns.ConfidenceFloor < 0.0 || c.Patterns.ConfidenceFloor >= c.Patterns.ConfidenceCeiling {
		return fmt.Errorf("patterns.confidence_floor must be in [0.0, confidence_ceiling)")
	}
	if c.Patterns.MinSamples < 0 {
		return fmt.Errorf("patterns.min_samples must not be negative")
	}
	if c.Patterns.DecayWindow < time.Hour {
		return fmt.Errorf("patterns.decay_window must be at least 1 hour")
	}
	if c.Patterns.DecayFactor <= 0.0 || c.Patterns.DecayFactor > 1.0 {
		return fmt.Errorf("patterns.decay_factor must be in (0.0, 1.0]")
	}

	if c.Sources.Beta <= 0.0 || c.Sources.Beta >= 1.0 {
		return fmt.Errorf("sources.beta must be in (0.0, 1.0)")
	}
	if c.Sources.DecayEvery < time.Hour {
		return fmt.Errorf("sources.decay_every must be at least 1 hour")
	}
	if c.Sources.DecayRate < 0.0 || c.Sources.DecayRate >= 1.0 {
		return fmt.Errorf("sources.decay_rate must be in [0.0, 1.0)")
	}
	if c.Sources.Floor < 0.0 || c.Sources.Floor > 0.5 {
		return fmt.Errorf("sources.floor must be in [0.0, 0.5]")
	}
	if c.Sources.MinSamples < 1 {
		return fmt.Errorf("sources.min_samples must be at least 1")
	}

	if c.Engine.PatternWeight < 0 || c.Engine.KeywordWeight < 0 {
		return fmt.Errorf("engine weights must not be negative")
	}
	if c.Engine.PatternWeight+c.Engine.KeywordWeight > 1.0 {
		return fmt.Errorf("engine.pattern_weight + engine.keyword_weight must not exceed 1.0")
	}
	if c.Engine.ConfidenceThreshold < 0.0 || c.Engine.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("engine.confidence_threshold must be between 0.0 and 1.0")
	}
	if c.Engine.MinKeywordSamples < 0 {
		return fmt.Errorf("engine.min_keyword_samples must not be negative")
	}
	if c.Engine.OutcomeMatchWindow < time.Minute {
		return fmt.Errorf("engine.outcome_match_window must be at least 1 minute")
	}

	if c.Locks.Lease < time.Minute {
		return fmt.Errorf("locks.lease must be at least 1 minute")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
storage:
  db_path: "./data/test.db"

learning:
  alpha: 0.25
  article_weight: 2.0
  digest_weight: 1.0
  min_keyword_length: 4

patterns:
  confidence_ceiling: 0.9
  confidence_half_sat: 2.0
  confidence_floor: 0.1
  min_samples: 3.0
  decay_window: 360h
  decay_factor: 0.85

sources:
  beta: 0.2
  decay_every: 72h
  decay_rate: 0.2
  floor: 0.4
  min_samples: 2

engine:
  pattern_weight: 0.4
  keyword_weight: 0.4
  confidence_threshold: 0.5
  min_keyword_samples: 2.0
  outcome_match_window: 96h

locks:
  lease: 1h

logging:
  level: "debug"
  format: "text"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.DBPath != "./data/test.db" {
		t.Errorf("db_path = %s, want ./data/test.db", cfg.Storage.DBPath)
	}
	if cfg.Learning.Alpha != 0.25 {
		t.Errorf("alpha = %v, want 0.25", cfg.Learning.Alpha)
	}
	if cfg.Patterns.DecayWindow != 360*time.Hour {
		t.Errorf("decay_window = %v, want 360h", cfg.Patterns.DecayWindow)
	}
	if cfg.Sources.MinSamples != 2 {
		t.Errorf("sources.min_samples = %d, want 2", cfg.Sources.MinSamples)
	}
	if cfg.Engine.OutcomeMatchWindow != 96*time.Hour {
		t.Errorf("outcome_match_window = %v, want 96h", cfg.Engine.OutcomeMatchWindow)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
	if cfg.Learning.ArticleWeight != 2*cfg.Learning.DigestWeight {
		t.Errorf("article weight %v is not double digest weight %v",
			cfg.Learning.ArticleWeight, cfg.Learning.DigestWeight)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"alpha too high", func(c *Config) { c.Learning.Alpha = 1.5 }},
		{"article below digest", func(c *Config) { c.Learning.ArticleWeight = 0.5 }},
		{"floor above ceiling", func(c *Config) { c.Patterns.ConfidenceFloor = 0.99 }},
		{"decay factor above one", func(c *Config) { c.Patterns.DecayFactor = 1.5 }},
		{"source floor above neutral", func(c *Config) { c.Sources.Floor = 0.8 }},
		{"weights exceed one", func(c *Config) { c.Engine.PatternWeight = 0.9; c.Engine.KeywordWeight = 0.9 }},
		{"tiny lock lease", func(c *Config) { c.Locks.Lease = time.Second }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid configuration")
			}
		})
	}
}

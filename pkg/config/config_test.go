package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("expected default driver %q, got %q", DriverSQLite, cfg.Store.Driver)
	}
	if cfg.Indexer.LengthFormula != LengthLegacy {
		t.Errorf("expected legacy length formula, got %q", cfg.Indexer.LengthFormula)
	}
	if cfg.Kafka.Topics.IndexComplete != "index.complete" {
		t.Errorf("unexpected index complete topic %q", cfg.Kafka.Topics.IndexComplete)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
store:
  driver: memory
crawler:
  maxPages: 25
  concurrency: 3
  fetchTimeout: 2s
indexer:
  lengthFormula: cosine
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WS_CRAWLER_CONCURRENCY", "6")
	t.Setenv("WS_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %q", cfg.Store.Driver)
	}
	if cfg.Crawler.MaxPages != 25 {
		t.Errorf("expected maxPages=25, got %d", cfg.Crawler.MaxPages)
	}
	if cfg.Crawler.Concurrency != 6 {
		t.Errorf("expected env override concurrency=6, got %d", cfg.Crawler.Concurrency)
	}
	if cfg.Crawler.FetchTimeout != 2*time.Second {
		t.Errorf("expected fetchTimeout=2s, got %v", cfg.Crawler.FetchTimeout)
	}
	if cfg.Indexer.LengthFormula != LengthCosine {
		t.Errorf("expected cosine formula, got %q", cfg.Indexer.LengthFormula)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"unknown formula", func(c *Config) { c.Indexer.LengthFormula = "bm25" }},
		{"zero concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }},
		{"zero max pages", func(c *Config) { c.Crawler.MaxPages = 0 }},
		{"zero index workers", func(c *Config) { c.Indexer.Workers = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxResults = 1; c.Search.DefaultLimit = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

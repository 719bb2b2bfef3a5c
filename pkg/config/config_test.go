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
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Graph.RowLimit != 50 {
		t.Errorf("expected default row limit 50, got %d", cfg.Graph.RowLimit)
	}
	if cfg.Orchestrator.ContextBudget != 8192 {
		t.Errorf("expected default context budget 8192, got %d", cfg.Orchestrator.ContextBudget)
	}
	if cfg.Orchestrator.TierTimeout != 20*time.Second {
		t.Errorf("expected default tier timeout 20s, got %s", cfg.Orchestrator.TierTimeout)
	}
	if cfg.LLM.Primary.Kind != "anthropic" || cfg.LLM.Secondary.Kind != "openai" {
		t.Errorf("expected anthropic primary and openai secondary defaults")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medgraph.yaml")
	data := []byte(`
log:
  level: debug
graph:
  row_limit: 10
intents:
  - intent: get_latest_prescription
    phrases: ["prescription", "medication"]
  - intent: search_records
    phrases: ["search", "find"]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
	if cfg.Graph.RowLimit != 10 {
		t.Errorf("expected row limit 10, got %d", cfg.Graph.RowLimit)
	}
	if len(cfg.Intents) != 2 {
		t.Fatalf("expected 2 intent categories, got %d", len(cfg.Intents))
	}
	if cfg.Intents[0].Intent != "get_latest_prescription" {
		t.Errorf("unexpected first intent %q", cfg.Intents[0].Intent)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MEDGRAPH_LOG_FORMAT", "json")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected env to override log format, got %q", cfg.Log.Format)
	}
}

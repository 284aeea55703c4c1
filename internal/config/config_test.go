package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("A missing config file must not be an error, got: %v", err)
	}
	if cfg.LLM.Backend != "gemini" {
		t.Errorf("Backend = %s, want the gemini default", cfg.LLM.Backend)
	}
	if cfg.DispatchTimeout() != 60*time.Second {
		t.Errorf("DispatchTimeout = %s, want 60s", cfg.DispatchTimeout())
	}
	if cfg.Execution.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Execution.MaxAttempts)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	doc := `
log_file: custom.log
llm:
  backend: ollama
  model: llama3
execution:
  dispatch_timeout_ms: 5000
  max_attempts: 5
explore:
  fetch_concurrency: 2
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogFile != "custom.log" {
		t.Errorf("LogFile = %s, want custom.log", cfg.LogFile)
	}
	if cfg.LLM.Backend != "ollama" || cfg.LLM.Model != "llama3" {
		t.Errorf("LLM = %+v, want ollama/llama3", cfg.LLM)
	}
	if cfg.DispatchTimeout() != 5*time.Second {
		t.Errorf("DispatchTimeout = %s, want 5s", cfg.DispatchTimeout())
	}
	if cfg.Execution.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Execution.MaxAttempts)
	}
	if cfg.Explore.FetchConcurrency != 2 {
		t.Errorf("FetchConcurrency = %d, want 2", cfg.Explore.FetchConcurrency)
	}
	// Untouched sections keep their defaults.
	if cfg.Execution.StageConcurrency != 16 {
		t.Errorf("StageConcurrency = %d, want the default 16", cfg.Execution.StageConcurrency)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("STAGEHAND_LLM_BACKEND", "ollama")
	t.Setenv("STAGEHAND_LLM_MODEL", "mistral")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Backend != "ollama" {
		t.Errorf("Backend = %s, want the env override", cfg.LLM.Backend)
	}
	if cfg.LLM.Model != "mistral" {
		t.Errorf("Model = %s, want the env override", cfg.LLM.Model)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("llm: [not: a map"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected a parse error, but got nil")
	}
}

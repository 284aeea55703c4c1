// Package config holds the explicit runtime configuration. The struct is
// built once in main and passed into constructors; nothing reads ambient
// global state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Backend    string `yaml:"backend"`
	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host"`
}

type ExecutionConfig struct {
	DispatchTimeoutMs  int  `yaml:"dispatch_timeout_ms"`
	StageConcurrency   int  `yaml:"stage_concurrency"`
	QueueCapacity      int  `yaml:"queue_capacity"`
	PermitNullResults  bool `yaml:"permit_null_results"`
	SummarizeThreshold int  `yaml:"summarize_threshold"`
	MaxAttempts        int  `yaml:"max_attempts"`
}

type ExploreConfig struct {
	PerLinkTimeoutMs int `yaml:"per_link_timeout_ms"`
	MaxLinkContent   int `yaml:"max_link_content"`
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

type Config struct {
	LogFile       string          `yaml:"log_file"`
	WorkspaceRoot string          `yaml:"workspace_root"`
	CatalogFile   string          `yaml:"catalog_file"`
	LLM           LLMConfig       `yaml:"llm"`
	Execution     ExecutionConfig `yaml:"execution"`
	Explore       ExploreConfig   `yaml:"explore"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogFile:       "stagehand.log",
		WorkspaceRoot: "workspaces",
		LLM: LLMConfig{
			Backend: "gemini",
		},
		Execution: ExecutionConfig{
			DispatchTimeoutMs:  60000,
			StageConcurrency:   16,
			QueueCapacity:      128,
			SummarizeThreshold: 8192,
			MaxAttempts:        3,
		},
		Explore: ExploreConfig{
			PerLinkTimeoutMs: 20000,
			MaxLinkContent:   16384,
			FetchConcurrency: 4,
		},
	}
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. A missing file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("STAGEHAND_LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv("STAGEHAND_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && cfg.LLM.OllamaHost == "" {
		cfg.LLM.OllamaHost = v
	}
	return cfg, nil
}

// DispatchTimeout returns the configured worker-result timeout.
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Execution.DispatchTimeoutMs) * time.Millisecond
}

// PerLinkTimeout returns the bounded per-link fetch attempt window.
func (c *Config) PerLinkTimeout() time.Duration {
	return time.Duration(c.Explore.PerLinkTimeoutMs) * time.Millisecond
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr=%q, want :8080", cfg.Addr)
	}
	if cfg.AI.Provider != "mock" {
		t.Fatalf("AI.Provider=%q, want mock", cfg.AI.Provider)
	}
	if cfg.AI.Preset != "medium" {
		t.Fatalf("AI.Preset=%q, want medium", cfg.AI.Preset)
	}
	if !cfg.AI.EffectiveCacheEnabled() {
		t.Fatalf("cache disabled by default")
	}
	if cfg.AI.CacheTTL() != 5*time.Minute {
		t.Fatalf("CacheTTL=%v, want 5m", cfg.AI.CacheTTL())
	}
	if cfg.AI.JobTTL() != 30*time.Minute {
		t.Fatalf("JobTTL=%v, want 30m", cfg.AI.JobTTL())
	}
}

func TestLoad_FileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
addr: ":9090"
data_dir: /tmp/projectory
log_format: json
ai:
  provider: openai
  openai_model: gpt-4.1
  cache_ttl_ms: 60000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr=%q, want :9090", cfg.Addr)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("LogFormat=%q, want json", cfg.LogFormat)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.OpenAIModel != "gpt-4.1" {
		t.Fatalf("AI=%+v, want openai/gpt-4.1", cfg.AI)
	}
	if cfg.AI.CacheTTL() != time.Minute {
		t.Fatalf("CacheTTL=%v, want 1m", cfg.AI.CacheTTL())
	}
	// Unset fields still default.
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel=%q, want info", cfg.LogLevel)
	}
	if cfg.ArtifactsDBPath() != filepath.Join("/tmp/projectory", "artifacts.db") {
		t.Fatalf("ArtifactsDBPath=%q", cfg.ArtifactsDBPath())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROJECTORY_ADDR", ":7070")
	t.Setenv("PROJECTORY_AI_PROVIDER", "anthropic")
	t.Setenv("PROJECTORY_AI_CACHE_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("Addr=%q, want :7070", cfg.Addr)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Fatalf("AI.Provider=%q, want anthropic", cfg.AI.Provider)
	}
	if cfg.AI.EffectiveCacheEnabled() {
		t.Fatalf("cache not disabled by env override")
	}
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad provider", func(c *Config) { c.AI.Provider = "gemini" }},
		{"bad preset", func(c *Config) { c.AI.Preset = "extreme" }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Addr = ":9999"
	cfg.AI.Provider = "openai"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Addr != ":9999" || got.AI.Provider != "openai" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

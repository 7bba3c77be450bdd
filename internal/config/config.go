// Package config holds the on-disk server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for projectory-server.
//
// NOTE: API keys never live here. They are read from the environment
// (OPENAI_API_KEY / ANTHROPIC_API_KEY) at startup.
type Config struct {
	// Addr is the listen address, for example ":8080".
	Addr string `yaml:"addr,omitempty"`

	// DataDir is the root for SQLite databases and the audit trail.
	DataDir string `yaml:"data_dir,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `yaml:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `yaml:"log_level,omitempty"`

	AI AIConfig `yaml:"ai"`
}

// AIConfig configures the generation pipeline.
type AIConfig struct {
	// Provider selects the generation backend: "mock" | "openai" | "anthropic".
	Provider string `yaml:"provider,omitempty"`

	// OpenAIModel / AnthropicModel override the per-provider default models.
	OpenAIModel    string `yaml:"openai_model,omitempty"`
	AnthropicModel string `yaml:"anthropic_model,omitempty"`

	// Preset is the default fixture difficulty: "easy" | "medium" | "hard".
	Preset string `yaml:"preset,omitempty"`

	// CacheEnabled toggles the generation result cache.
	CacheEnabled *bool `yaml:"cache_enabled,omitempty"`
	// CacheTTLMs is the result cache lifetime. Defaults to 300000 (5m).
	CacheTTLMs int64 `yaml:"cache_ttl_ms,omitempty"`
	// JobTTLMs is the async job retention window. Defaults to 1800000 (30m).
	JobTTLMs int64 `yaml:"job_ttl_ms,omitempty"`
}

const (
	defaultAddr      = ":8080"
	defaultDataDir   = "data"
	defaultLogFormat = "text"
	defaultLogLevel  = "info"

	defaultAIProvider = "mock"
	defaultAIPreset   = "medium"

	defaultCacheTTLMs = 300000
	defaultJobTTLMs   = 1800000
)

func Default() *Config {
	return &Config{
		Addr:      defaultAddr,
		DataDir:   defaultDataDir,
		LogFormat: defaultLogFormat,
		LogLevel:  defaultLogLevel,
		AI: AIConfig{
			Provider: defaultAIProvider,
			Preset:   defaultAIPreset,
		},
	}
}

// DefaultConfigPath returns the default config path:
//
//	~/.projectory-server/config.yaml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "projectory-server.config.yaml"
	}
	return filepath.Join(home, ".projectory-server", "config.yaml")
}

// Load reads a config file, fills defaults, applies PROJECTORY_* environment
// overrides, and validates the result. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.fillDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	// Write atomically.
	tmp := path + ".tmp"
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Config) fillDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = defaultAddr
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.LogFormat) == "" {
		c.LogFormat = defaultLogFormat
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(c.AI.Provider) == "" {
		c.AI.Provider = defaultAIProvider
	}
	if strings.TrimSpace(c.AI.Preset) == "" {
		c.AI.Preset = defaultAIPreset
	}
	if c.AI.CacheTTLMs <= 0 {
		c.AI.CacheTTLMs = defaultCacheTTLMs
	}
	if c.AI.JobTTLMs <= 0 {
		c.AI.JobTTLMs = defaultJobTTLMs
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PROJECTORY_ADDR")); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PROJECTORY_DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("PROJECTORY_LOG_FORMAT")); v != "" {
		c.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("PROJECTORY_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("PROJECTORY_AI_PROVIDER")); v != "" {
		c.AI.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("PROJECTORY_AI_PRESET")); v != "" {
		c.AI.Preset = v
	}
	if v := strings.TrimSpace(os.Getenv("PROJECTORY_AI_CACHE_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AI.CacheEnabled = &b
		}
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("missing addr")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("missing data_dir")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
	case "mock", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid ai provider %q", c.AI.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(c.AI.Preset)) {
	case "easy", "medium", "hard":
	default:
		return fmt.Errorf("invalid ai preset %q", c.AI.Preset)
	}
	if c.AI.CacheTTLMs < 0 {
		return fmt.Errorf("invalid cache_ttl_ms %d", c.AI.CacheTTLMs)
	}
	if c.AI.JobTTLMs < 0 {
		return fmt.Errorf("invalid job_ttl_ms %d", c.AI.JobTTLMs)
	}
	return nil
}

func (c *Config) ArtifactsDBPath() string {
	return filepath.Join(c.DataDir, "artifacts.db")
}

func (c *Config) ProjectsDBPath() string {
	return filepath.Join(c.DataDir, "projects.db")
}

func (c *Config) AuditDir() string {
	return filepath.Join(c.DataDir, "audit")
}

// EffectiveCacheEnabled defaults to on.
func (c *AIConfig) EffectiveCacheEnabled() bool {
	if c == nil || c.CacheEnabled == nil {
		return true
	}
	return *c.CacheEnabled
}

func (c *AIConfig) CacheTTL() time.Duration {
	if c == nil || c.CacheTTLMs <= 0 {
		return defaultCacheTTLMs * time.Millisecond
	}
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

func (c *AIConfig) JobTTL() time.Duration {
	if c == nil || c.JobTTLMs <= 0 {
		return defaultJobTTLMs * time.Millisecond
	}
	return time.Duration(c.JobTTLMs) * time.Millisecond
}

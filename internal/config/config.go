// Package config loads data-lens settings from a YAML file, the process
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/golovatskygroup/data-lens/internal/apperr"
)

// APIKeyEnv is the only secret the application needs.
const APIKeyEnv = "GROQ_API_KEY"

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Router    RouterConfig    `yaml:"router"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Chart     ChartConfig     `yaml:"chart"`
	Query     QueryConfig     `yaml:"query"`
	Server    ServerConfig    `yaml:"server"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Audit     AuditConfig     `yaml:"audit"`
	Log       LogConfig       `yaml:"log"`

	// APIKey is never read from YAML.
	APIKey string `yaml:"-"`
}

type LLMConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
	Cache     CacheConfig   `yaml:"cache"`
}

type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type RouterConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

type SandboxConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxStackDepth int           `yaml:"max_stack_depth"`
	MaxConcurrent int64         `yaml:"max_concurrent"`
}

type ChartConfig struct {
	CheckColumns bool `yaml:"check_columns"`
	SampleRows   int  `yaml:"sample_rows"`
}

type QueryConfig struct {
	Language string `yaml:"language"` // javascript|go
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type ArtifactsConfig struct {
	Dir          string `yaml:"dir"`
	PreviewBytes int    `yaml:"preview_bytes"`
}

type AuditConfig struct {
	// DSN is a go-sqlite3 data source; empty disables the audit trail.
	DSN string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama3-70b-8192",
			Timeout: 60 * time.Second,
			Cache: CacheConfig{
				Enabled:    true,
				TTL:        10 * time.Minute,
				MaxEntries: 256,
			},
		},
		Router:  RouterConfig{MaxIterations: 5},
		Sandbox: SandboxConfig{Timeout: 10 * time.Second, MaxStackDepth: 1000, MaxConcurrent: 4},
		Chart:   ChartConfig{CheckColumns: true, SampleRows: 3},
		Query:   QueryConfig{Language: "javascript"},
		Server:  ServerConfig{Addr: "127.0.0.1:8501", MaxUploadBytes: 32 << 20},
		Artifacts: ArtifactsConfig{
			PreviewBytes: 8 * 1024,
		},
		Audit: AuditConfig{DSN: "datalens-audit.db"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path (optional), applies environment overrides and validates.
// A missing API key is a KindConfig error.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, apperr.New(apperr.KindConfig, "read config", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, apperr.New(apperr.KindConfig, "parse config", err)
		}
	}
	_ = LoadDotEnv()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays DATALENS_* variables and reads the API key.
func (c *Config) ApplyEnv() {
	c.APIKey = strings.TrimSpace(os.Getenv(APIKeyEnv))

	if v := strings.TrimSpace(os.Getenv("DATALENS_LLM_BASE_URL")); v != "" {
		c.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATALENS_LLM_MODEL")); v != "" {
		c.LLM.Model = v
	}
	if ms := strings.TrimSpace(os.Getenv("DATALENS_LLM_TIMEOUT_MS")); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			c.LLM.Timeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATALENS_LLM_CACHE_ENABLED")); v != "" {
		c.LLM.Cache.Enabled = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	if v := strings.TrimSpace(os.Getenv("DATALENS_ROUTER_MAX_ITERATIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Router.MaxIterations = n
		}
	}
	if ms := strings.TrimSpace(os.Getenv("DATALENS_SANDBOX_TIMEOUT_MS")); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			c.Sandbox.Timeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATALENS_QUERY_LANGUAGE")); v != "" {
		c.Query.Language = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("DATALENS_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("DATALENS_ARTIFACT_DIR")); v != "" {
		c.Artifacts.Dir = v
	}
	if v, ok := os.LookupEnv("DATALENS_AUDIT_DSN"); ok {
		c.Audit.DSN = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("DATALENS_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}

// Validate fills zero values with defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return apperr.New(apperr.KindConfig, "validate", fmt.Errorf("missing %s: set it in the environment or a .env file", APIKeyEnv))
	}
	d := Default()
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = d.LLM.BaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Router.MaxIterations <= 0 {
		c.Router.MaxIterations = d.Router.MaxIterations
	}
	if c.Sandbox.Timeout <= 0 {
		c.Sandbox.Timeout = d.Sandbox.Timeout
	}
	if c.Sandbox.MaxStackDepth <= 0 {
		c.Sandbox.MaxStackDepth = d.Sandbox.MaxStackDepth
	}
	if c.Sandbox.MaxConcurrent <= 0 {
		c.Sandbox.MaxConcurrent = d.Sandbox.MaxConcurrent
	}
	if c.Chart.SampleRows <= 0 {
		c.Chart.SampleRows = d.Chart.SampleRows
	}
	switch c.Query.Language {
	case "":
		c.Query.Language = d.Query.Language
	case "javascript", "go":
	default:
		return apperr.New(apperr.KindConfig, "validate", errors.New("query.language must be javascript or go"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
	return nil
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/data-lens/internal/apperr"
)

func TestLoadFailsFastWithoutAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Config))
	assert.Contains(t, err.Error(), APIKeyEnv)
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	t.Setenv(APIKeyEnv, "gsk-test")
	t.Setenv("DATALENS_ROUTER_MAX_ITERATIONS", "7")

	path := filepath.Join(t.TempDir(), "datalens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: llama-3.3-70b-versatile
  timeout: 15s
sandbox:
  timeout: 2s
query:
  language: go
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gsk-test", cfg.APIKey)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 7, cfg.Router.MaxIterations)
	assert.Equal(t, "go", cfg.Query.Language)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.True(t, cfg.Chart.CheckColumns)
}

func TestValidateRejectsUnknownQueryLanguage(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "x"
	cfg.Query.Language = "python"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line string
		key  string
		val  string
		ok   bool
	}{
		{`GROQ_API_KEY=abc`, "GROQ_API_KEY", "abc", true},
		{`export A="quoted value"`, "A", "quoted value", true},
		{`# comment`, "", "", false},
		{`=novalue`, "", "", false},
		{`B='x'`, "B", "x", true},
	}
	for _, c := range cases {
		k, v, ok := parseEnvLine(c.line)
		assert.Equal(t, c.ok, ok, c.line)
		assert.Equal(t, c.key, k, c.line)
		assert.Equal(t, c.val, v, c.line)
	}
}

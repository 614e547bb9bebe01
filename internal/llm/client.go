// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/config"
	"github.com/golovatskygroup/data-lens/internal/httpcache"
)

// Generator turns a prompt into text. Generation stops before any of the
// stop sequences.
type Generator interface {
	Generate(ctx context.Context, prompt string, stop ...string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, stop ...string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, stop ...string) (string, error) {
	return f(ctx, prompt, stop...)
}

type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	c         *http.Client
	log       *zap.Logger
}

// NewClient builds a client from validated configuration. Completions are
// cached in memory when cfg.LLM.Cache is enabled.
func NewClient(cfg config.Config, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.New(apperr.KindConfig, "llm client", fmt.Errorf("missing %s", config.APIKeyEnv))
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := httpcache.NewTransport(nil, httpcache.Config{
		Enabled:    cfg.LLM.Cache.Enabled,
		TTL:        cfg.LLM.Cache.TTL,
		MaxEntries: cfg.LLM.Cache.MaxEntries,
	}, log)

	return &Client{
		baseURL:   cfg.LLM.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
		c:         &http.Client{Timeout: timeout, Transport: transport},
		log:       log,
	}, nil
}

func (cl *Client) Model() string { return cl.model }

// Generate sends prompt as a single user message at temperature 0. Every
// failure is a KindGeneration error wrapping the cause.
func (cl *Client) Generate(ctx context.Context, prompt string, stop ...string) (string, error) {
	content, err := cl.chatCompletion(ctx, prompt, stop)
	if err != nil {
		return "", apperr.New(apperr.KindGeneration, "chat completion", err)
	}
	return content, nil
}

func (cl *Client) chatCompletion(ctx context.Context, prompt string, stop []string) (string, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	body := map[string]any{
		"model": cl.model,
		"messages": []msg{
			{Role: "user", Content: prompt},
		},
		"temperature": 0,
	}
	if len(stop) > 0 {
		body["stop"] = stop
	}
	if cl.maxTokens > 0 {
		body["max_tokens"] = cl.maxTokens
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cl.baseURL, "/")+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cl.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := cl.c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	cl.log.Debug("chat completion",
		zap.String("model", cl.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm: empty choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("llm: empty message content")
	}
	return content, nil
}

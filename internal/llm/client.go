// Package llm provides the text-generation backend for LLM-driven
// negotiation policies. The client targets an Ollama-compatible
// /api/generate endpoint and retries transient failures with backoff.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Options configures a backend client.
type Options struct {
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	MaxPerMin   int // rate limit; 0 disables
}

// DefaultOptions returns a local-Ollama configuration.
func DefaultOptions() Options {
	return Options{
		Model:       "qwen2.5:3b",
		BaseURL:     "http://localhost:11434",
		Temperature: 0.2,
		MaxTokens:   256,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
	}
}

// Client wraps the generate endpoint. A nil *Client is a valid disabled
// backend: Generate reports an error and callers fall back.
type Client struct {
	opts       Options
	httpClient *http.Client

	mu        sync.Mutex
	callCount int
	resetAt   time.Time
}

// NewClient creates a backend client. Returns nil if baseURL is empty
// (LLM policies disabled).
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		return nil
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Enabled returns true if the client is configured.
func (c *Client) Enabled() bool {
	return c != nil
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a prompt and returns the generated text, retrying with
// exponential backoff on transient failures.
func (c *Client) Generate(prompt string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("llm backend not configured")
	}
	if err := c.checkRate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.opts.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": c.opts.Temperature,
			"num_predict": c.opts.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.opts.BaseURL + "/api/generate"
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		text, err := c.post(url, body)
		if err != nil {
			lastErr = err
			slog.Debug("llm generate failed", "attempt", attempt+1, "error", err)
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("llm generate after %d attempts: %w", c.opts.MaxRetries, lastErr)
}

func (c *Client) post(url string, body []byte) (string, error) {
	resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm backend HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var gen generateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if gen.Response == "" {
		return "", fmt.Errorf("empty response")
	}
	return gen.Response, nil
}

func (c *Client) checkRate() error {
	if c.opts.MaxPerMin <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.opts.MaxPerMin {
		return fmt.Errorf("rate limit exceeded (%d calls/min)", c.opts.MaxPerMin)
	}
	c.callCount++
	return nil
}

// Package assistant relays free-form questions about the market to an
// OpenAI-compatible chat completions API, with the latest trend summary as
// context.
package assistant

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

	"soltrend/internal/secrets"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("assistant: api key not configured")

const systemPrompt = "You are a crypto market assistant. Answer using the technical " +
	"analysis summary below. Be concise and do not give financial advice.\n\n"

// Config configures a Relay.
type Config struct {
	BaseURL      string // e.g. https://api.openai.com/v1
	Model        string
	Timeout      time.Duration
	APIKeySecret string // secret name resolved through the provider
	MaxTokens    int
	Temperature  float64
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Relay asks questions on behalf of dashboard users.
type Relay struct {
	cfg     Config
	secrets secrets.Provider
	client  *http.Client
}

// New creates a Relay. The API key is looked up on every request so rotated
// secrets are picked up.
func New(cfg Config, p secrets.Provider) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Relay{cfg: cfg, secrets: p, client: &http.Client{Timeout: cfg.Timeout}}
}

// Ask sends question with summaryText as system context and returns the
// first choice.
func (r *Relay) Ask(ctx context.Context, summaryText, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("assistant: empty question")
	}

	key, err := secrets.Lookup(ctx, r.secrets, r.cfg.APIKeySecret)
	if err != nil {
		return "", fmt.Errorf("assistant: api key: %w", err)
	}
	if key == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: r.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt + summaryText},
			{Role: "user", Content: question},
		},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("assistant: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("assistant: read response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("assistant: status %d: unmarshal: %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("assistant: api error: %s - %s", out.Error.Type, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant: unexpected status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("assistant: empty response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Package openai is a chat-completions client for OpenAI-compatible
// endpoints such as OpenRouter, vLLM or Ollama.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"groundchat/internal/domain"
)

// Config configures the chat-completions client.
type Config struct {
	BaseURL         string
	APIKeyEnv       string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	// Timeout bounds a single attempt.
	Timeout    time.Duration
	MaxRetries int
}

// Client implements domain.LLM. The prompt is sent as one user message.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	maxRetries  int
	client      *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model must be set")
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      key,
		model:       cfg.Model,
		maxTokens:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		// slack over the per-attempt context deadline
		client: &http.Client{Timeout: cfg.Timeout + time.Second},
	}, nil
}

func (c *Client) Model() string { return c.model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a system and a user message and returns the
// generated text. Timeouts map to
// domain.ErrLLMTimeout, unreachable or overloaded servers to
// domain.ErrLLMUnavailable and rejected requests to domain.ErrLLMRequest.
// Only the first two are retried.
func (c *Client) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	var msgs []message
	if prompt.System != "" {
		msgs = append(msgs, message{Role: "system", Content: prompt.System})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt.User})
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		text, wait, err := c.completeOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !domain.IsTransient(err) || ctx.Err() != nil || attempt == c.maxRetries {
			break
		}
		if wait == 0 {
			wait = retryDelay(attempt)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("chat completion: %w", lastErr)
		case <-time.After(wait):
		}
	}
	return "", fmt.Errorf("chat completion: %w", lastErr)
}

func (c *Client) completeOnce(ctx context.Context, body []byte) (string, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrLLMRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		var wait time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			wait = time.Duration(secs) * time.Second
		}
		return "", wait, fmt.Errorf("%w: %s", domain.ErrLLMUnavailable, resp.Status)
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, fmt.Errorf("%w: %s: %s", domain.ErrLLMRequest, resp.Status, bytes.TrimSpace(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, classifyTransportError(fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", 0, fmt.Errorf("%w: response has no choices", domain.ErrLLMUnavailable)
	}
	return out.Choices[0].Message.Content, 0, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrLLMTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
}

func retryDelay(attempt int) time.Duration {
	d := 500 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"groundchat/internal/domain"
	"groundchat/internal/textutil"
)

// knownDimensions maps embedding model names to their output size.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"all-minilm":             384,
	"BAAI/bge-base-en-v1.5":  768,
	"bge-base-en-v1.5":       768,
}

// DimensionFor returns the output size of a known model, or 0.
func DimensionFor(model string) int { return knownDimensions[model] }

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	baseURL       string
	apiKey        string
	model         string
	dimension     int
	maxInputChars int
	client        *http.Client
	maxRetries    int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimension overrides the size looked up from Model.
	Dimension     int
	MaxInputChars int
	Timeout       time.Duration
	MaxRetries    int
}

// NewClient creates a new embeddings client using the provided configuration.
// The API key is optional so local OpenAI-compatible servers work unchanged.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = DimensionFor(cfg.Model)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("unknown dimension for embedding model %q; set embedder.openai.dimension", cfg.Model)
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        key,
		model:         cfg.Model,
		dimension:     dim,
		maxInputChars: cfg.MaxInputChars,
		client:        &http.Client{Timeout: t},
		maxRetries:    cfg.MaxRetries,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

type reqBody struct {
	Input  string `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

// errRetryable marks a failed attempt worth repeating.
var errRetryable = errors.New("retryable")

// Embed returns an L2-normalised embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if textutil.IsBlank(text) {
		return nil, fmt.Errorf("%w: empty input", domain.ErrEmbedding)
	}
	if c.maxInputChars > 0 {
		if n := utf8.RuneCountInString(text); n > c.maxInputChars {
			return nil, fmt.Errorf("%w: input of %d chars exceeds limit of %d", domain.ErrEmbedding, n, c.maxInputChars)
		}
	}
	data, err := json.Marshal(reqBody{Input: text, Prompt: text, Model: c.model})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		vec, wait, err := c.embedOnce(ctx, data)
		if err == nil {
			return c.finish(vec)
		}
		lastErr = err
		if !errors.Is(err, errRetryable) || attempt == c.maxRetries {
			break
		}
		if wait == 0 {
			wait = retryDelay(attempt)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("openai embeddings: %w", lastErr)
}

// embedOnce performs a single request. A non-zero wait carries the server's Retry-After.
func (c *Client) embedOnce(ctx context.Context, data []byte) ([]float64, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var wait time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			wait = time.Duration(secs) * time.Second
		}
		return nil, wait, fmt.Errorf("%w: %s", errRetryable, resp.Status)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errRetryable, err)
	}
	// Try OpenAI-compatible response first
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil && len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
		return openaiOut.Data[0].Embedding, 0, nil
	}
	// Fallback to Ollama-native shape: { "embedding": [...] }
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, 0, nil
	}
	return nil, 0, fmt.Errorf("%w: no embedding returned", domain.ErrEmbedding)
}

func (c *Client) finish(vec []float64) ([]float64, error) {
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d", domain.ErrEmbedding, c.model, len(vec), c.dimension)
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

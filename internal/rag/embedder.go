// Package rag provides the embedding client and the vector collection
// service backing the retrieval-augmented context strategy.
package rag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"mnemo/internal/errs"
	"mnemo/internal/jsonx"
	"mnemo/internal/llm"
	"mnemo/internal/utils"
)

// EmbedderConfig holds embedding configuration.
type EmbedderConfig struct {
	Model     string // default "text-embedding-004"
	BaseURL   string // default public generativelanguage endpoint
	Keys      *llm.KeyRing
	CacheSize int // LRU cache size, default 10000
	Timeout   time.Duration
}

// Embedder generates text embeddings, deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int
}

// geminiEmbedder implements Embedder against the Gemini embedContent API.
// The LRU cache doubles as the determinism guarantee for repeated inputs
// within one process.
type geminiEmbedder struct {
	config     EmbedderConfig
	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
	logger     *utils.Logger
}

// NewEmbedder creates a new embedder.
func NewEmbedder(config EmbedderConfig) (Embedder, error) {
	if config.Keys == nil {
		return nil, fmt.Errorf("embedder requires a key ring: %w", errs.ErrConfigurationMissing)
	}
	if config.Model == "" {
		config.Model = "text-embedding-004"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.CacheSize == 0 {
		config.CacheSize = 10000
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	cache, err := lru.New[string, []float32](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &geminiEmbedder{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache,
		logger:     utils.NewComponentLogger("Embedder"),
	}, nil
}

func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	var embedding []float32
	var err error
	var retryable bool
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, errs.Upstream("embed", ctx.Err())
			}
		}
		embedding, retryable, err = e.callAPI(ctx, text)
		if err == nil {
			break
		}
		e.logger.Warn("Embed attempt %d failed: %v", attempt+1, err)
		if !retryable {
			break
		}
	}
	if err != nil {
		return nil, errs.Upstream("embed", err)
	}

	e.cache.Add(text, embedding)
	return embedding, nil
}

// Dimensions returns the embedding dimension (768 for text-embedding-004).
func (e *geminiEmbedder) Dimensions() int {
	return 768
}

// callAPI performs one embedContent request. The second return value
// reports whether a failure is worth retrying (transport errors, 429, 5xx).
func (e *geminiEmbedder) callAPI(ctx context.Context, text string) ([]float32, bool, error) {
	reqBody := map[string]any{
		"model": "models/" + e.config.Model,
		"content": map[string]any{
			"parts": []map[string]string{{"text": text}},
		},
	}

	body, err := jsonx.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", e.config.BaseURL, e.config.Model, e.config.Keys.Next())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := jsonx.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embedding.Values) == 0 {
		return nil, false, fmt.Errorf("empty embedding returned")
	}

	return apiResp.Embedding.Values, false, nil
}

package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mnemo/internal/errs"
	"mnemo/internal/jsonx"
	"mnemo/internal/utils"
)

// Config holds the transport settings for a Gemini client.
type Config struct {
	APIKey     string
	BaseURL    string // defaults to the public generativelanguage endpoint
	Timeout    time.Duration
	MaxRetries int // retries on 429/5xx, default 2
}

type geminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *utils.Logger
}

// NewGeminiClient constructs a client for the Gemini generateContent API.
// One client wraps one credential; the conversation manager builds a fresh
// client per turn with a rotated key.
func NewGeminiClient(cfg Config) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	return &geminiClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		logger:     utils.NewComponentLogger("GeminiClient"),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (c *geminiClient) GenerateContent(ctx context.Context, model string, turns []Turn) (*Response, error) {
	contents := make([]geminiContent, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, geminiContent{
			Role:  t.Role,
			Parts: []geminiPart{{Text: t.Text}},
		})
	}

	body, err := jsonx.Marshal(generateRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	c.logger.Debug("POST models/%s:generateContent (%d turns)", model, len(turns))

	data, err := c.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	var parsed generateResponse
	if err := jsonx.Unmarshal(data, &parsed); err != nil {
		return nil, errs.Upstream("generate", fmt.Errorf("decode response: %w", err))
	}

	if len(parsed.Candidates) == 0 {
		c.logger.Warn("No candidates returned (block reason %q)", parsed.PromptFeedback.BlockReason)
		return &Response{Blocked: true}, nil
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return &Response{Text: sb.String()}, nil
}

// post issues the request with retries on 429 and 5xx. All transport and
// status failures come back as UpstreamError.
func (c *geminiClient) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, errs.Upstream("generate", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return data, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("API error %d: %s", resp.StatusCode, firstLine(data))
			continue
		default:
			return nil, errs.Upstream("generate", fmt.Errorf("API error %d: %s", resp.StatusCode, firstLine(data)))
		}
	}
	return nil, errs.Upstream("generate", lastErr)
}

func firstLine(data []byte) string {
	s := strings.TrimSpace(string(data))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}

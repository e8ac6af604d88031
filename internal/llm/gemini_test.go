package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mnemo/internal/errs"
	"mnemo/internal/jsonx"
)

func TestGeminiClientGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if got := r.URL.Path; got != "/models/gemini-1.5-flash:generateContent" {
			t.Fatalf("unexpected path: %s", got)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Fatalf("expected key query param, got %q", got)
		}

		var payload struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := jsonx.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(payload.Contents) != 2 {
			t.Fatalf("expected 2 contents, got %d", len(payload.Contents))
		}
		if payload.Contents[0].Role != RoleUser || payload.Contents[0].Parts[0].Text != "hi" {
			t.Fatalf("first turn mangled: %+v", payload.Contents[0])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello "},{"text":"there"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(Config{APIKey: "test-key", BaseURL: server.URL})
	resp, err := client.GenerateContent(context.Background(), "gemini-1.5-flash", []Turn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleModel, Text: "yes?"},
	})
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if resp.Blocked {
		t.Fatal("response should not be blocked")
	}
	if resp.Text != "hello there" {
		t.Errorf("Text = %q, parts should be concatenated", resp.Text)
	}
}

func TestGeminiClientBlockedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	client := NewGeminiClient(Config{APIKey: "k", BaseURL: server.URL})
	resp, err := client.GenerateContent(context.Background(), "m", []Turn{{Role: RoleUser, Text: "x"}})
	if err != nil {
		t.Fatalf("blocked responses are not errors, got %v", err)
	}
	if !resp.Blocked {
		t.Fatal("expected Blocked=true")
	}
}

func TestGeminiClientClientErrorIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewGeminiClient(Config{APIKey: "bad", BaseURL: server.URL})
	_, err := client.GenerateContent(context.Background(), "m", []Turn{{Role: RoleUser, Text: "x"}})
	if !errs.IsUpstream(err) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestGeminiClientRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(Config{APIKey: "k", BaseURL: server.URL, MaxRetries: 2, Timeout: 10 * time.Second})
	resp, err := client.GenerateContent(context.Background(), "m", []Turn{{Role: RoleUser, Text: "x"}})
	if err != nil {
		t.Fatalf("GenerateContent should succeed after retry: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q", resp.Text)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

package rag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mnemo/internal/errs"
	"mnemo/internal/llm"
)

func testKeyRing(t *testing.T, keys ...string) *llm.KeyRing {
	t.Helper()
	ring, err := llm.NewKeyRing(keys)
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	return ring
}

func TestEmbedderCallsAPIAndCaches(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Path; got != "/models/text-embedding-004:embedContent" {
			t.Fatalf("unexpected path: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder(EmbedderConfig{
		BaseURL: server.URL,
		Keys:    testKeyRing(t, "k1"),
	})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	first, err := embedder.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 values, got %d", len(first))
	}

	// Second embed of the same text must come from the cache.
	second, err := embedder.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 API call, got %d", calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached embedding differs at %d", i)
		}
	}
}

func TestEmbedderRotatesKeys(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.5]}}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder(EmbedderConfig{
		BaseURL: server.URL,
		Keys:    testKeyRing(t, "k1", "k2"),
	})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	// Distinct texts so the cache doesn't short-circuit the rotation.
	if _, err := embedder.Embed(context.Background(), "one"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := embedder.Embed(context.Background(), "two"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "k1" || seen[1] != "k2" {
		t.Errorf("key rotation broken: %v", seen)
	}
}

func TestEmbedderFailureIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid request", http.StatusBadRequest)
	}))
	defer server.Close()

	embedder, err := NewEmbedder(EmbedderConfig{
		BaseURL: server.URL,
		Keys:    testKeyRing(t, "k"),
	})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	_, err = embedder.Embed(context.Background(), "boom")
	if !errs.IsUpstream(err) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

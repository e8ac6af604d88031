package rag

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	PersistPath string // directory to persist data; empty = in-memory
}

// Result is one similarity search hit.
type Result struct {
	ID         string
	Text       string
	Similarity float32 // 0.0 to 1.0, cosine
}

// VectorStore manages per-context vector collections. Collections never
// alias across contexts; each retrieval-augmented context owns exactly one.
type VectorStore interface {
	// EnsureCollection creates the named collection if it does not exist.
	EnsureCollection(name string) error

	// Upsert inserts one (id, embedding, text) record into a collection.
	Upsert(ctx context.Context, collection, id, text string, embedding []float32) error

	// Search returns up to topK records ranked descending by cosine
	// similarity to the query, dropping hits below minSimilarity.
	Search(ctx context.Context, collection, query string, topK int, minSimilarity float32) ([]Result, error)

	// Count returns a collection's record count (0 for unknown collections).
	Count(collection string) int

	// DropCollection removes a collection and all its records.
	DropCollection(name string) error
}

// chromemStore implements VectorStore using chromem-go.
type chromemStore struct {
	db        *chromem.DB
	embedder  Embedder
	embedFunc chromem.EmbeddingFunc
	mu        sync.Mutex
}

// NewVectorStore creates a vector store backed by chromem-go, persisted
// under config.PersistPath when set.
func NewVectorStore(config StoreConfig, embedder Embedder) (VectorStore, error) {
	var db *chromem.DB
	var err error

	if config.PersistPath != "" {
		db, err = chromem.NewPersistentDB(config.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	return &chromemStore{
		db:        db,
		embedder:  embedder,
		embedFunc: embedFunc,
	}, nil
}

func (s *chromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	collection, err := s.db.GetOrCreateCollection(name, nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	return collection, nil
}

func (s *chromemStore) EnsureCollection(name string) error {
	_, err := s.collection(name)
	return err
}

func (s *chromemStore) Upsert(ctx context.Context, collection, id, text string, embedding []float32) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	err = col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
	})
	if err != nil {
		return fmt.Errorf("add document %s: %w", id, err)
	}
	return nil
}

func (s *chromemStore) Search(ctx context.Context, collection, query string, topK int, minSimilarity float32) ([]Result, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	if topK <= 0 {
		topK = 5
	}
	// chromem rejects nResults larger than the collection.
	if count := col.Count(); count < topK {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	var out []Result
	for _, r := range results {
		if r.Similarity < minSimilarity {
			continue
		}
		out = append(out, Result{
			ID:         r.ID,
			Text:       r.Content,
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

func (s *chromemStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.db.GetCollection(collection, s.embedFunc)
	if col == nil {
		return 0
	}
	return col.Count()
}

func (s *chromemStore) DropCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

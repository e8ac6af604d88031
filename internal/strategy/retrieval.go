package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mnemo/internal/errs"
	"mnemo/internal/jsonx"
	"mnemo/internal/llm"
	"mnemo/internal/rag"
	"mnemo/internal/utils"
)

// retrievalState is the persisted shape: a pointer to the context's vector
// collection, never the conversational content itself.
type retrievalState struct {
	CollectionID string `json:"collection_id"`
}

// Retrieval recalls prior turns by vector similarity instead of replaying
// them. Each turn is embedded and stored on commit; on prepare, the top-k
// nearest records above the relevance threshold are injected into a
// synthetic instruction ahead of the question.
type Retrieval struct {
	topK          int
	minSimilarity float32
	vectors       rag.VectorStore
	embedder      rag.Embedder
	logger        *utils.Logger
}

// NewRetrieval returns the retrieval-augmented strategy.
func NewRetrieval(topK int, minSimilarity float32, vectors rag.VectorStore, embedder rag.Embedder) *Retrieval {
	if topK <= 0 {
		topK = 5
	}
	return &Retrieval{
		topK:          topK,
		minSimilarity: minSimilarity,
		vectors:       vectors,
		embedder:      embedder,
		logger:        utils.NewComponentLogger("RetrievalStrategy"),
	}
}

func (s *Retrieval) Name() string { return "retrieval" }

// InitialState allocates a fresh collection for the new context.
func (s *Retrieval) InitialState() (jsonx.RawMessage, error) {
	id := "ctx-" + uuid.NewString()
	if err := s.vectors.EnsureCollection(id); err != nil {
		return nil, fmt.Errorf("allocate collection: %w", err)
	}
	return jsonx.Marshal(retrievalState{CollectionID: id})
}

func (s *Retrieval) Prepare(ctx context.Context, state jsonx.RawMessage, in PrepareInput) (*PrepareResult, error) {
	var st retrievalState
	if err := jsonx.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode retrieval state: %w", err)
	}

	results, err := s.vectors.Search(ctx, st.CollectionID, in.UserText, s.topK, s.minSimilarity)
	if err != nil {
		if errs.IsUpstream(err) {
			return nil, err
		}
		return nil, errs.Upstream("search", err)
	}

	userText := in.UserText
	if len(results) > 0 {
		texts := make([]string, 0, len(results))
		for _, r := range results {
			texts = append(texts, r.Text)
		}
		s.logger.Debug("Retrieved %d relevant records from %s", len(results), st.CollectionID)
		userText = fmt.Sprintf(
			"Here are relevant excerpts from our earlier conversation:\n%s\n\nWith that context, answer: %s",
			strings.Join(texts, "\n---\n"), in.UserText,
		)
	}

	// Prior turns are never replayed; recall rides inside the rewritten
	// question. No state mutation happens on prepare.
	return &PrepareResult{
		UserText:  userText,
		State:     state,
		Retrieved: len(results),
	}, nil
}

func (s *Retrieval) Commit(ctx context.Context, state jsonx.RawMessage, userText, modelText string) (jsonx.RawMessage, error) {
	var st retrievalState
	if err := jsonx.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode retrieval state: %w", err)
	}

	record := llm.RoleUser + ": " + userText + "\n" + llm.RoleModel + ": " + modelText
	embedding, err := s.embedder.Embed(ctx, record)
	if err != nil {
		if errs.IsUpstream(err) {
			return nil, err
		}
		return nil, errs.Upstream("embed", err)
	}

	if err := s.vectors.Upsert(ctx, st.CollectionID, uuid.NewString(), record, embedding); err != nil {
		return nil, errs.Upstream("upsert", err)
	}

	// The collection grows monotonically; persisted state is unchanged.
	return state, nil
}

// Teardown drops the context's collection so deleting a context also
// deletes its recall corpus.
func (s *Retrieval) Teardown(_ context.Context, state jsonx.RawMessage) error {
	var st retrievalState
	if err := jsonx.Unmarshal(state, &st); err != nil {
		return fmt.Errorf("decode retrieval state: %w", err)
	}
	if st.CollectionID == "" {
		return nil
	}
	if err := s.vectors.DropCollection(st.CollectionID); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	s.logger.Info("Dropped collection %s", st.CollectionID)
	return nil
}

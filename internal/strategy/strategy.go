// Package strategy implements the pluggable context policies that decide
// what prior material is fed back to the model each turn and how finished
// turns are folded into persisted state.
//
// State blobs are opaque to the context store; every strategy owns its own
// shape and invariants. The conversation manager depends only on this
// interface and never branches on the concrete variant: strategies that
// need a secondary model call pull a client from the factory on demand.
package strategy

import (
	"context"

	"mnemo/internal/jsonx"
	"mnemo/internal/llm"
)

// PrepareInput carries the per-turn inputs into Prepare.
type PrepareInput struct {
	// UserText is the incoming question for the turn being prepared. The
	// retrieval strategy reads it; the others pass it through untouched.
	UserText string

	// Clients builds an upstream client on demand. Calling it consumes a
	// rotated credential, so strategies only invoke it when a secondary
	// model call is actually needed.
	Clients llm.ClientFactory
}

// PrepareResult is the outcome of Prepare.
type PrepareResult struct {
	// History is the prior material to send ahead of the user's turn.
	History []llm.Turn

	// UserText is the text to send as the final user turn. The retrieval
	// strategy rewrites it to carry recalled facts; other strategies
	// return it unchanged.
	UserText string

	// State is the (possibly mutated) state blob.
	State jsonx.RawMessage

	// Retrieved counts recalled records folded into UserText, zero for
	// strategies that do not retrieve.
	Retrieved int

	// Mutated reports whether State differs from the input and must be
	// persisted before the turn proceeds.
	Mutated bool
}

// Strategy is the capability set shared by all context policies.
type Strategy interface {
	// Name returns the strategy's registry name.
	Name() string

	// InitialState returns the state blob for a freshly created context.
	InitialState() (jsonx.RawMessage, error)

	// Prepare derives the outbound payload from state. It may mutate state
	// (e.g. summarization) and may issue a secondary model call; upstream
	// failures leave state untouched and surface as UpstreamError.
	Prepare(ctx context.Context, state jsonx.RawMessage, in PrepareInput) (*PrepareResult, error)

	// Commit folds a finished user/model turn into state and returns the
	// updated blob. Commit never summarizes or prunes; size control is
	// strictly Prepare's job so a threshold crossing is handled exactly
	// once, by the next read.
	Commit(ctx context.Context, state jsonx.RawMessage, userText, modelText string) (jsonx.RawMessage, error)

	// Teardown releases external resources owned by a context's state,
	// called when the context is deleted.
	Teardown(ctx context.Context, state jsonx.RawMessage) error
}

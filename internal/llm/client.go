// Package llm talks to the Gemini generative language API over REST and
// manages the credential pool used to reach it.
package llm

import "context"

// Turn roles. The wire format uses the same two roles, so no translation
// happens between persisted state and the API payload.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one role-tagged utterance within a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Response is the outcome of a generate call. Blocked means the model
// declined to answer (no candidates, typically a safety filter); it is a
// distinct condition, not an error, so the turn can still commit with a
// sentinel reply.
type Response struct {
	Text    string
	Blocked bool
}

// Client generates text from a conversation payload.
type Client interface {
	GenerateContent(ctx context.Context, model string, turns []Turn) (*Response, error)
}

// ClientFactory builds a client on demand. Strategies receive a factory
// rather than a client so a rotated credential is only consumed when a
// secondary call is actually made.
type ClientFactory func() Client

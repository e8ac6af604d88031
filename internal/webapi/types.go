package webapi

import "time"

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CreateContextRequest is the body of POST /api/contexts.
type CreateContextRequest struct {
	ID string `json:"id"`
}

// ContextListResponse is the payload of GET /api/contexts.
type ContextListResponse struct {
	Contexts []string `json:"contexts"`
	Strategy string   `json:"strategy"`
}

// MessageRequest is the body of POST /api/contexts/:id/messages.
type MessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse is the payload of a completed turn.
type MessageResponse struct {
	ContextID    string `json:"context_id"`
	Reply        string `json:"reply"`
	Blocked      bool   `json:"blocked"`
	PromptTokens int    `json:"prompt_tokens"`
}

// HealthResponse is the payload of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

package strategy

import (
	"context"
	"fmt"

	"mnemo/internal/jsonx"
	"mnemo/internal/llm"
)

// Plain keeps the full turn sequence and replays it verbatim. Growth is
// unbounded, which is acceptable only for short conversations; full recall
// holds up to the model's own context window.
type Plain struct{}

// NewPlain returns the plain (verbatim replay) strategy.
func NewPlain() *Plain {
	return &Plain{}
}

func (s *Plain) Name() string { return "plain" }

func (s *Plain) InitialState() (jsonx.RawMessage, error) {
	return jsonx.RawMessage(`[]`), nil
}

func (s *Plain) Prepare(_ context.Context, state jsonx.RawMessage, in PrepareInput) (*PrepareResult, error) {
	var turns []llm.Turn
	if err := jsonx.Unmarshal(state, &turns); err != nil {
		return nil, fmt.Errorf("decode plain state: %w", err)
	}
	return &PrepareResult{
		History:  turns,
		UserText: in.UserText,
		State:    state,
	}, nil
}

func (s *Plain) Commit(_ context.Context, state jsonx.RawMessage, userText, modelText string) (jsonx.RawMessage, error) {
	var turns []llm.Turn
	if err := jsonx.Unmarshal(state, &turns); err != nil {
		return nil, fmt.Errorf("decode plain state: %w", err)
	}
	turns = append(turns,
		llm.Turn{Role: llm.RoleUser, Text: userText},
		llm.Turn{Role: llm.RoleModel, Text: modelText},
	)
	return jsonx.Marshal(turns)
}

func (s *Plain) Teardown(context.Context, jsonx.RawMessage) error {
	return nil
}

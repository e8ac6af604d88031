package llm

import "context"

// MockClient implements Client for tests. GenerateFunc receives every call;
// when nil, a canned reply comes back.
type MockClient struct {
	GenerateFunc func(ctx context.Context, model string, turns []Turn) (*Response, error)
	Calls        []MockCall
}

// MockCall records one GenerateContent invocation.
type MockCall struct {
	Model string
	Turns []Turn
}

func (m *MockClient) GenerateContent(ctx context.Context, model string, turns []Turn) (*Response, error) {
	m.Calls = append(m.Calls, MockCall{Model: model, Turns: turns})
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, model, turns)
	}
	return &Response{Text: "mock response"}, nil
}

package strategy

import (
	"context"
	"fmt"
	"strings"

	"mnemo/internal/errs"
	"mnemo/internal/jsonx"
	"mnemo/internal/llm"
	"mnemo/internal/utils"
)

const summaryAck = "Understood. Let's continue."

// summaryState is the persisted shape: a rolling summary plus the turns
// accumulated since the last summarization.
type summaryState struct {
	Summary string     `json:"summary"`
	History []llm.Turn `json:"history"`
}

// Summarizing folds old turns into a rolling summary once the history
// reaches Threshold turn records. Summarization happens in Prepare, never
// in Commit: the threshold check must see the state exactly as the
// previous commit left it, so each crossing summarizes at most once.
type Summarizing struct {
	threshold int
	model     string
	logger    *utils.Logger
}

// NewSummarizing returns the rolling-summary strategy. model names the
// model used only for the internal summarization call.
func NewSummarizing(threshold int, model string) *Summarizing {
	return &Summarizing{
		threshold: threshold,
		model:     model,
		logger:    utils.NewComponentLogger("SummaryStrategy"),
	}
}

func (s *Summarizing) Name() string { return "summary" }

func (s *Summarizing) InitialState() (jsonx.RawMessage, error) {
	return jsonx.Marshal(summaryState{Summary: "", History: []llm.Turn{}})
}

func (s *Summarizing) Prepare(ctx context.Context, state jsonx.RawMessage, in PrepareInput) (*PrepareResult, error) {
	var st summaryState
	if err := jsonx.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode summary state: %w", err)
	}

	mutated := false
	if len(st.History) >= s.threshold {
		// All-or-nothing: st is only updated after the call fully
		// succeeds, so a failed summarization leaves the persisted
		// history intact for a retry.
		newSummary, err := s.summarize(ctx, st, in.Clients)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Summarized %d turns into rolling summary", len(st.History))
		st.Summary = newSummary
		st.History = nil
		mutated = true
	}

	var history []llm.Turn
	if st.Summary != "" {
		history = append(history,
			llm.Turn{Role: llm.RoleUser, Text: "This is a summary of our conversation so far: " + st.Summary},
			llm.Turn{Role: llm.RoleModel, Text: summaryAck},
		)
	}
	history = append(history, st.History...)

	out := state
	if mutated {
		encoded, err := jsonx.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("encode summary state: %w", err)
		}
		out = encoded
	}

	return &PrepareResult{
		History:  history,
		UserText: in.UserText,
		State:    out,
		Mutated:  mutated,
	}, nil
}

// summarize renders the pending history after the existing summary and asks
// the model for a concise replacement summary.
func (s *Summarizing) summarize(ctx context.Context, st summaryState, clients llm.ClientFactory) (string, error) {
	if clients == nil {
		return "", errs.Upstream("summarize", fmt.Errorf("no client factory provided"))
	}

	var lines []string
	for _, turn := range st.History {
		lines = append(lines, turn.Role+": "+turn.Text)
	}
	full := strings.Join(lines, "\n")
	if st.Summary != "" {
		full = st.Summary + "\n" + full
	}

	client := clients()
	resp, err := client.GenerateContent(ctx, s.model, []llm.Turn{
		{Role: llm.RoleUser, Text: "Concisely summarize this conversation:\n\n" + full},
	})
	if err != nil {
		if errs.IsUpstream(err) {
			return "", err
		}
		return "", errs.Upstream("summarize", err)
	}
	// A blocked summarization cannot drain the history; treat it like any
	// other upstream failure so the invariant holds.
	if resp.Blocked || resp.Text == "" {
		return "", errs.Upstream("summarize", fmt.Errorf("model returned no summary"))
	}
	return resp.Text, nil
}

func (s *Summarizing) Commit(_ context.Context, state jsonx.RawMessage, userText, modelText string) (jsonx.RawMessage, error) {
	var st summaryState
	if err := jsonx.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode summary state: %w", err)
	}
	st.History = append(st.History,
		llm.Turn{Role: llm.RoleUser, Text: userText},
		llm.Turn{Role: llm.RoleModel, Text: modelText},
	)
	return jsonx.Marshal(st)
}

func (s *Summarizing) Teardown(context.Context, jsonx.RawMessage) error {
	return nil
}

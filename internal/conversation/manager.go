// Package conversation orchestrates turns: it owns the read-prepare-save
// flow before a model call and the commit flow after it, gluing the context
// store, the active strategy and the credential ring together.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mnemo/internal/errs"
	"mnemo/internal/llm"
	"mnemo/internal/store"
	"mnemo/internal/strategy"
	"mnemo/internal/token"
	"mnemo/internal/utils"
)

// BlockedReply is committed and shown in place of a model answer when the
// upstream declines to respond.
const BlockedReply = "I'm sorry, I can't provide a response to that."

// ManagerConfig wires a Manager's collaborators.
type ManagerConfig struct {
	Store    *store.Store
	Strategy strategy.Strategy
	Keys     *llm.KeyRing

	// Clients builds an upstream client bound to one credential.
	Clients func(apiKey string) llm.Client

	// ChatModel names the model used for primary generation.
	ChatModel string

	// Metrics defaults to the process-wide collectors when nil.
	Metrics *Metrics
}

// Manager runs conversations over a single strategy. All state lives in the
// context store; the manager itself holds no per-context data, so one
// instance serves any number of contexts.
type Manager struct {
	store     *store.Store
	strategy  strategy.Strategy
	keys      *llm.KeyRing
	clients   func(apiKey string) llm.Client
	chatModel string
	metrics   *Metrics
	logger    *utils.Logger
}

// NewManager builds a Manager from cfg.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil || cfg.Strategy == nil || cfg.Keys == nil || cfg.Clients == nil {
		return nil, fmt.Errorf("incomplete manager wiring: %w", errs.ErrConfigurationMissing)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &Manager{
		store:     cfg.Store,
		strategy:  cfg.Strategy,
		keys:      cfg.Keys,
		clients:   cfg.Clients,
		chatModel: cfg.ChatModel,
		metrics:   metrics,
		logger:    utils.NewComponentLogger("ConversationManager"),
	}, nil
}

// Strategy returns the active strategy.
func (m *Manager) Strategy() strategy.Strategy { return m.strategy }

// nextClient consumes one rotated credential and binds a client to it.
func (m *Manager) nextClient() llm.Client {
	key := m.keys.Next()
	suffix := key
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	m.logger.Debug("Providing client with API key ending in ...%s", suffix)
	return m.clients(key)
}

// Create registers a new context with the strategy's initial state.
func (m *Manager) Create(id string) error {
	state, err := m.strategy.InitialState()
	if err != nil {
		return fmt.Errorf("initial state: %w", err)
	}
	if err := m.store.Create(id, state); err != nil {
		return err
	}
	m.logger.Info("Created context %s (%s strategy)", id, m.strategy.Name())
	return nil
}

// Delete removes a context and tears down any external resources its state
// refers to. Unknown ids surface as ErrNotFound.
func (m *Manager) Delete(ctx context.Context, id string) error {
	state, err := m.store.Load(id)
	if err != nil {
		return err
	}
	if err := m.strategy.Teardown(ctx, state); err != nil {
		return fmt.Errorf("teardown %s: %w", id, err)
	}
	return m.store.Delete(id)
}

// List returns all stored context ids.
func (m *Manager) List() ([]string, error) {
	return m.store.List()
}

// Exists reports whether a context id is registered.
func (m *Manager) Exists(id string) bool {
	return m.store.Exists(id)
}

// TurnPayload is the outbound material produced by PrepareTurn.
type TurnPayload struct {
	// Turns is the complete contents for the model call: recalled history
	// followed by the (possibly rewritten) user turn.
	Turns []llm.Turn

	// PromptTokens is the estimated token size of Turns.
	PromptTokens int
}

// PrepareTurn loads a context, lets the strategy shape the payload, and
// persists any state mutation before the payload is handed out. Unknown
// ids surface as ErrNotFound; a failed strategy preparation leaves the
// stored state exactly as the last commit wrote it.
func (m *Manager) PrepareTurn(ctx context.Context, id, userText string) (*TurnPayload, error) {
	start := time.Now()

	state, err := m.store.Load(id)
	if err != nil {
		m.metrics.IncTurnFailure("prepare")
		return nil, err
	}

	result, err := m.strategy.Prepare(ctx, state, strategy.PrepareInput{
		UserText: userText,
		Clients:  m.nextClient,
	})
	if err != nil {
		m.metrics.IncTurnFailure("prepare")
		m.metrics.ObserveTurnDuration("prepare", "error", time.Since(start))
		return nil, err
	}

	// A mutation (summary compaction) must land on disk before the turn
	// proceeds, so a crash between here and commit cannot lose it.
	if result.Mutated {
		if err := m.store.Save(id, result.State); err != nil {
			m.metrics.IncTurnFailure("prepare")
			return nil, fmt.Errorf("persist prepared state: %w", err)
		}
		m.metrics.IncSummarization()
	}
	m.metrics.AddRetrievedRecords(result.Retrieved)

	turns := append(result.History, llm.Turn{Role: llm.RoleUser, Text: result.UserText})
	payload := &TurnPayload{
		Turns:        turns,
		PromptTokens: estimatePayload(turns),
	}
	m.metrics.ObservePromptTokens(payload.PromptTokens)
	m.metrics.ObserveTurnDuration("prepare", "ok", time.Since(start))
	m.logger.Debug("Prepared turn for %s: %d turns, ~%d tokens", id, len(turns), payload.PromptTokens)
	return payload, nil
}

// CommitTurn folds a finished exchange into the context's state. A context
// deleted between prepare and commit is logged and dropped, not an error.
func (m *Manager) CommitTurn(ctx context.Context, id, userText, modelText string) error {
	state, err := m.store.Load(id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			m.logger.Warn("Context %s vanished before commit; dropping turn", id)
			return nil
		}
		m.metrics.IncTurnFailure("commit")
		return err
	}

	next, err := m.strategy.Commit(ctx, state, userText, modelText)
	if err != nil {
		m.metrics.IncTurnFailure("commit")
		return fmt.Errorf("commit turn: %w", err)
	}
	if err := m.store.Save(id, next); err != nil {
		m.metrics.IncTurnFailure("commit")
		return err
	}
	m.logger.Debug("Committed turn for %s", id)
	return nil
}

// TurnResult is the outcome of a full RunTurn.
type TurnResult struct {
	Reply        string
	Blocked      bool
	PromptTokens int
}

// RunTurn executes one complete turn: prepare, generate with a rotated
// credential, and commit. A blocked response commits BlockedReply as the
// model's side of the exchange so the refusal stays part of the record.
func (m *Manager) RunTurn(ctx context.Context, id, userText string) (*TurnResult, error) {
	payload, err := m.PrepareTurn(ctx, id, userText)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := m.nextClient().GenerateContent(ctx, m.chatModel, payload.Turns)
	if err != nil {
		m.metrics.IncTurnFailure("generate")
		m.metrics.ObserveTurnDuration("generate", "error", time.Since(start))
		return nil, err
	}
	m.metrics.ObserveTurnDuration("generate", "ok", time.Since(start))

	reply := resp.Text
	if resp.Blocked {
		reply = BlockedReply
	}
	if err := m.CommitTurn(ctx, id, userText, reply); err != nil {
		return nil, err
	}
	return &TurnResult{
		Reply:        reply,
		Blocked:      resp.Blocked,
		PromptTokens: payload.PromptTokens,
	}, nil
}

// estimatePayload sums the token estimate over every turn's text.
func estimatePayload(turns []llm.Turn) int {
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(turn.Text)
		b.WriteByte('\n')
	}
	return token.Count(b.String())
}

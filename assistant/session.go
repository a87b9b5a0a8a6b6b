// Package assistant manages question/response exchanges with the AI
// backend. Each scope (a task id, or the empty scope for free context)
// holds at most one in-flight exchange; a new ask is refused at dispatch
// rather than cancelling the old one.
package assistant

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
)

// State is the per-scope machine: Idle → Asking → {Answered | Failed} → Idle.
type State string

const (
	StateIdle     State = "idle"
	StateAsking   State = "asking"
	StateAnswered State = "answered"
	StateFailed   State = "failed"
)

// Client is the assistant backend contract the session depends on.
type Client interface {
	Ask(ctx context.Context, taskID, prompt string) (domain.AssistantAnswer, error)
}

type scopeState struct {
	state    State
	exchange domain.AssistantExchange
}

// Session tracks exchanges across scopes.
type Session struct {
	client Client
	logger *log.Logger

	mu     sync.Mutex
	scopes map[string]*scopeState
}

// NewSession creates a Session over the given backend client.
func NewSession(client Client, logger *log.Logger) *Session {
	if client == nil {
		panic("assistant.NewSession: client is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Session{client: client, logger: logger, scopes: map[string]*scopeState{}}
}

// Ask submits a prompt for the scope. An empty prompt is rejected before any
// network call; an ask while one is outstanding for the same scope fails
// with ErrExchangeInFlight.
func (s *Session) Ask(ctx context.Context, scope, prompt string) (domain.AssistantExchange, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.AssistantExchange{}, &domain.ValidationError{Field: "prompt", Reason: "must not be empty"}
	}

	s.mu.Lock()
	sc := s.scopes[scope]
	if sc == nil {
		sc = &scopeState{state: StateIdle}
		s.scopes[scope] = sc
	}
	if sc.state == StateAsking {
		s.mu.Unlock()
		return domain.AssistantExchange{}, domain.ErrExchangeInFlight
	}
	sc.state = StateAsking
	sc.exchange = domain.AssistantExchange{Scope: scope, Prompt: prompt}
	s.mu.Unlock()

	answer, err := s.client.Ask(ctx, scope, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.WithError(err).WithField("scope", scope).Warn("assistant ask failed")
		sc.state = StateFailed
		sc.exchange.Err = err.Error()
		return sc.exchange, err
	}
	sc.state = StateAnswered
	sc.exchange.Response = answer.Response
	sc.exchange.Model = answer.Model
	sc.exchange.SimilarCases = answer.SimilarCases
	return sc.exchange, nil
}

// State returns the scope's current state; an unknown scope is Idle.
func (s *Session) State(scope string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc := s.scopes[scope]; sc != nil {
		return sc.state
	}
	return StateIdle
}

// Exchange returns the scope's current exchange, if any. The result is only
// meaningful in the Answered or Failed states.
func (s *Session) Exchange(scope string) (domain.AssistantExchange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scopes[scope]
	if sc == nil || sc.state == StateIdle {
		return domain.AssistantExchange{}, false
	}
	return sc.exchange, true
}

// Clear dismisses the scope's result and returns it to Idle. The payload is
// discarded, not cached; clearing mid-ask is refused.
func (s *Session) Clear(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scopes[scope]
	if sc == nil {
		return nil
	}
	if sc.state == StateAsking {
		return domain.ErrExchangeInFlight
	}
	delete(s.scopes, scope)
	return nil
}

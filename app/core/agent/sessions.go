package agent

import (
	"context"
	"fmt"
	"sync"
)

// DefaultSession is used when a caller does not name a session.
const DefaultSession = "default"

// OrchestratorFactory builds one orchestrator with all its specialists and
// memories. Each session gets its own instance.
type OrchestratorFactory func() (*Orchestrator, error)

type session struct {
	mu   sync.Mutex
	orch *Orchestrator
}

// Sessions maps session ids to orchestrator instances, creating them on
// first use. Runs within one session are serialized so the shared memories
// see a consistent turn order.
type Sessions struct {
	mu       sync.Mutex
	factory  OrchestratorFactory
	sessions map[string]*session
}

func NewSessions(factory OrchestratorFactory) (*Sessions, error) {
	if factory == nil {
		return nil, fmt.Errorf("sessions: factory is required")
	}
	return &Sessions{
		factory:  factory,
		sessions: make(map[string]*session),
	}, nil
}

// Run dispatches one message to the named session's orchestrator. An empty
// id falls back to DefaultSession.
func (s *Sessions) Run(ctx context.Context, sessionID, message string, injections map[string]string) (ServiceOutput, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return ServiceOutput{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.orch.Run(ctx, message, injections)
}

func (s *Sessions) get(sessionID string) (*session, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess, nil
	}
	orch, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("sessions: creating %q: %w", sessionID, err)
	}
	sess := &session{orch: orch}
	s.sessions[sessionID] = sess
	return sess, nil
}

// Len reports how many sessions exist.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

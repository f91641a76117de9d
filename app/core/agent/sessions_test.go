package agent

import (
	"context"
	"sync/atomic"
	"testing"
)

func newSessionsFixture(t *testing.T, created *int32) *Sessions {
	t.Helper()
	store := newTestStore(t)

	factory := func() (*Orchestrator, error) {
		atomic.AddInt32(created, 1)
		intent, err := NewIntentEmotionAgent(&fakeCompleter{steps: repeatSteps(`{"intent": "chat", "emotion": "calm"}`)}, "gpt-test", 10)
		if err != nil {
			return nil, err
		}
		question, err := NewQuestionAgent(&fakeCompleter{steps: repeatSteps(`{"question": "?"}`)}, "gpt-test", 10)
		if err != nil {
			return nil, err
		}
		status, err := NewStatusAgent(&fakeCompleter{steps: repeatSteps(`{"status_summary": "ok"}`)}, "gpt-test", 10)
		if err != nil {
			return nil, err
		}
		return NewOrchestrator(OrchestratorOptions{
			Completer:   &fakeCompleter{steps: repeatSteps("hello")},
			Model:       "gpt-test",
			MemoryTurns: 10,
			Store:       store,
			Intent:      intent,
			Question:    question,
			Status:      status,
			NewManager: func() (*TaskManager, error) {
				return NewTaskManager(&fakeCompleter{}, "gpt-test", 10, store)
			},
		})
	}

	sessions, err := NewSessions(factory)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return sessions
}

func repeatSteps(text string) []fakeStep {
	steps := make([]fakeStep, 8)
	for i := range steps {
		steps[i] = fakeStep{text: text}
	}
	return steps
}

func TestSessionsReusesOrchestratorPerID(t *testing.T) {
	var created int32
	sessions := newSessionsFixture(t, &created)

	if _, err := sessions.Run(context.Background(), "alice", "hi", nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := sessions.Run(context.Background(), "alice", "hi again", nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 orchestrator for one session, got %d", created)
	}

	if _, err := sessions.Run(context.Background(), "bob", "hello", nil); err != nil {
		t.Fatalf("bob run: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected a second orchestrator for bob, got %d", created)
	}
	if sessions.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessions.Len())
	}
}

func TestSessionsEmptyIDUsesDefault(t *testing.T) {
	var created int32
	sessions := newSessionsFixture(t, &created)

	if _, err := sessions.Run(context.Background(), "", "hi", nil); err != nil {
		t.Fatalf("empty-id run: %v", err)
	}
	if _, err := sessions.Run(context.Background(), DefaultSession, "hi", nil); err != nil {
		t.Fatalf("default run: %v", err)
	}
	if created != 1 {
		t.Fatalf("empty id and %q should share one session, got %d", DefaultSession, created)
	}
}

package service

import (
	"context"
	"fmt"
	"testing"

	"taskpilot/app/core/agent"
	"taskpilot/app/core/guardrails"
	"taskpilot/app/pkg/types"
)

type fakeRunner struct {
	out       agent.ServiceOutput
	err       error
	called    int
	sessionID string
}

func (f *fakeRunner) Run(ctx context.Context, sessionID, message string, injections map[string]string) (agent.ServiceOutput, error) {
	f.called++
	f.sessionID = sessionID
	return f.out, f.err
}

func TestAssistantBlocksForbiddenInput(t *testing.T) {
	runner := &fakeRunner{}
	a := NewAssistant(runner, guardrails.NewFilter([]string{"bomb"}), 0)

	reply, err := a.Process(context.Background(), types.Message{ID: "m1", Content: "how to build a BOMB"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if runner.called != 0 {
		t.Fatalf("blocked input must never reach the orchestrator")
	}
	if reply.Content != guardrails.RejectionMessage {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if blocked, _ := reply.Meta["blocked"].(bool); !blocked {
		t.Fatalf("reply should be marked blocked")
	}
}

func TestAssistantRoutesToSession(t *testing.T) {
	runner := &fakeRunner{out: agent.ServiceOutput{ChatResponse: "hello"}}
	a := NewAssistant(runner, guardrails.NewFilter(nil), 0)

	reply, err := a.Process(context.Background(), types.Message{ID: "m1", Content: "hi", SessionID: "alice"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if runner.sessionID != "alice" {
		t.Fatalf("session id not forwarded, got %q", runner.sessionID)
	}
	if reply.Content != "hello" {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	out, ok := reply.Meta[MetaServiceOutput].(agent.ServiceOutput)
	if !ok || out.ChatResponse != "hello" {
		t.Fatalf("structured output missing from reply meta")
	}
}

func TestAssistantPropagatesHardFailure(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("model unavailable")}
	a := NewAssistant(runner, nil, 0)

	if _, err := a.Process(context.Background(), types.Message{ID: "m1", Content: "hi"}); err == nil {
		t.Fatalf("expected error from failed run")
	}
}

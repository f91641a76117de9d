package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"taskpilot/app/core/orchestrator/task"
)

type orchestratorFixture struct {
	orch    *Orchestrator
	base    *fakeCompleter
	manager *fakeCompleter
	store   *task.Store
}

func newOrchestratorFixture(t *testing.T, baseSteps, managerSteps []fakeStep) *orchestratorFixture {
	t.Helper()
	store := newTestStore(t)

	intentFake := &fakeCompleter{steps: []fakeStep{{text: `{"intent": "manage_tasks", "emotion": "neutral"}`}}}
	questionFake := &fakeCompleter{steps: []fakeStep{{text: `{"question": "Anything else?"}`}}}
	statusFake := &fakeCompleter{steps: []fakeStep{{text: `{"status_summary": "All clear."}`}}}

	intent, err := NewIntentEmotionAgent(intentFake, "gpt-test", 10)
	if err != nil {
		t.Fatalf("NewIntentEmotionAgent: %v", err)
	}
	question, err := NewQuestionAgent(questionFake, "gpt-test", 10)
	if err != nil {
		t.Fatalf("NewQuestionAgent: %v", err)
	}
	status, err := NewStatusAgent(statusFake, "gpt-test", 10)
	if err != nil {
		t.Fatalf("NewStatusAgent: %v", err)
	}

	baseFake := &fakeCompleter{steps: baseSteps}
	managerFake := &fakeCompleter{steps: managerSteps}

	orch, err := NewOrchestrator(OrchestratorOptions{
		Completer:   baseFake,
		Model:       "gpt-test",
		MemoryTurns: 10,
		Store:       store,
		Intent:      intent,
		Question:    question,
		Status:      status,
		NewManager: func() (*TaskManager, error) {
			tm, err := NewTaskManager(managerFake, "gpt-test", 10, store)
			if err != nil {
				return nil, err
			}
			tm.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
			return tm, nil
		},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return &orchestratorFixture{orch: orch, base: baseFake, manager: managerFake, store: store}
}

func TestOrchestratorComposesSpecialistOutputs(t *testing.T) {
	fx := newOrchestratorFixture(t,
		[]fakeStep{{text: "Hello! How can I help?"}},
		nil,
	)

	out, err := fx.orch.Run(context.Background(), "hi there", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ChatResponse != "Hello! How can I help?" {
		t.Fatalf("unexpected chat response %q", out.ChatResponse)
	}
	if out.Intent == nil || out.Intent.Intent != "manage_tasks" {
		t.Fatalf("missing intent analysis: %+v", out.Intent)
	}
	if out.Question == nil || out.Question.Question != "Anything else?" {
		t.Fatalf("missing question: %+v", out.Question)
	}
	if out.Status == nil || out.Status.StatusSummary != "All clear." {
		t.Fatalf("missing status: %+v", out.Status)
	}
	if out.Task != nil || out.Delete != nil {
		t.Fatalf("no task mutation expected this turn")
	}
}

func TestOrchestratorInjectsAnalysesAndTaskList(t *testing.T) {
	fx := newOrchestratorFixture(t,
		[]fakeStep{{text: "ok"}},
		nil,
	)
	if _, err := fx.store.Insert(context.Background(), task.CreateParams{Title: "Pay rent"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := fx.orch.Run(context.Background(), "hello", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	prompt := fx.base.lastRequest(t).Prompt
	for _, want := range []string{
		"User intent/emotion: manage_tasks|neutral",
		"Suggested question: Anything else?",
		"Task status summary: All clear.",
		"Existing tasks: 1: Pay rent (due None, done=false)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestOrchestratorCallerInjectionsWin(t *testing.T) {
	fx := newOrchestratorFixture(t,
		[]fakeStep{{text: "ok"}},
		nil,
	)

	_, err := fx.orch.Run(context.Background(), "hello", map[string]string{
		"Task status summary": "caller override",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	prompt := fx.base.lastRequest(t).Prompt
	if !strings.Contains(prompt, "Task status summary: caller override") {
		t.Fatalf("caller injection should win:\n%s", prompt)
	}
	if strings.Contains(prompt, "Task status summary: All clear.") {
		t.Fatalf("default injection should be replaced:\n%s", prompt)
	}
}

func TestOrchestratorManageTaskCreatesAndConfirms(t *testing.T) {
	fx := newOrchestratorFixture(t,
		[]fakeStep{{tool: "manage_task", args: `{"command": "create a task called Call mom due tomorrow at 9am"}`}},
		[]fakeStep{{tool: "create_task", args: `{"title": "Call mom", "due_date": "tomorrow at 9am"}`}},
	)

	out, err := fx.orch.Run(context.Background(), "remind me to call mom tomorrow at 9am", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Task == nil {
		t.Fatalf("expected a task result")
	}
	if out.Task.Title != "Call mom" {
		t.Fatalf("unexpected title %q", out.Task.Title)
	}
	want := "Created task #1: 'Call mom' due 2024-01-02T09:00:00Z"
	if out.ChatResponse != want {
		t.Fatalf("unexpected confirmation %q, want %q", out.ChatResponse, want)
	}

	items, err := fx.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 stored task, got %d", len(items))
	}
}

func TestOrchestratorDeleteConfirmation(t *testing.T) {
	fx := newOrchestratorFixture(t,
		[]fakeStep{{tool: "manage_task", args: `{"command": "delete task 1"}`}},
		[]fakeStep{{tool: "delete_task", args: `{"id": 1}`}},
	)
	if _, err := fx.store.Insert(context.Background(), task.CreateParams{Title: "Old"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	out, err := fx.orch.Run(context.Background(), "delete task 1", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Delete == nil || !out.Delete.Deleted {
		t.Fatalf("expected a successful delete, got %+v", out.Delete)
	}
	if out.ChatResponse != "Deleted task #1" {
		t.Fatalf("unexpected confirmation %q", out.ChatResponse)
	}
}

func TestOrchestratorFailedDeleteConfirmation(t *testing.T) {
	fx := newOrchestratorFixture(t,
		[]fakeStep{{tool: "manage_task", args: `{"command": "delete task 9"}`}},
		[]fakeStep{{tool: "delete_task", args: `{"id": 9}`}},
	)

	out, err := fx.orch.Run(context.Background(), "delete task 9", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ChatResponse != "Could not delete task #9" {
		t.Fatalf("unexpected confirmation %q", out.ChatResponse)
	}
}

func TestOrchestratorHardFailure(t *testing.T) {
	fx := newOrchestratorFixture(t,
		[]fakeStep{{err: fmt.Errorf("model unavailable")}},
		nil,
	)

	if _, err := fx.orch.Run(context.Background(), "hello", nil); err == nil {
		t.Fatalf("expected hard error when the main model call fails")
	}
}

func TestOrchestratorSurvivesSpecialistFailure(t *testing.T) {
	store := newTestStore(t)
	// Intent specialist returns prose with no JSON; the run must still finish.
	intent, err := NewIntentEmotionAgent(&fakeCompleter{steps: []fakeStep{{text: "not json"}}}, "gpt-test", 10)
	if err != nil {
		t.Fatalf("NewIntentEmotionAgent: %v", err)
	}
	question, err := NewQuestionAgent(&fakeCompleter{steps: []fakeStep{{text: `{"question": "?"}`}}}, "gpt-test", 10)
	if err != nil {
		t.Fatalf("NewQuestionAgent: %v", err)
	}
	status, err := NewStatusAgent(&fakeCompleter{steps: []fakeStep{{text: `{"status_summary": "fine"}`}}}, "gpt-test", 10)
	if err != nil {
		t.Fatalf("NewStatusAgent: %v", err)
	}

	orch, err := NewOrchestrator(OrchestratorOptions{
		Completer:   &fakeCompleter{steps: []fakeStep{{text: "still here"}}},
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
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	out, err := orch.Run(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Intent == nil || out.Intent.Error == "" {
		t.Fatalf("intent failure should surface as an error field: %+v", out.Intent)
	}
	if out.ChatResponse != "still here" {
		t.Fatalf("unexpected chat response %q", out.ChatResponse)
	}
}

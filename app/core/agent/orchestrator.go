package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"taskpilot/app/core/llm"
	"taskpilot/app/core/orchestrator/task"
	"taskpilot/app/pkg/logger"
)

// ServiceOutput is the composed reply for one user message: the main agent's
// conversational text plus the specialists' advisory analyses, and the task
// mutation payload when one happened this turn.
type ServiceOutput struct {
	Task         *TaskResult    `json:"task,omitempty"`
	Delete       *DeleteResult  `json:"delete,omitempty"`
	Intent       *IntentEmotion `json:"intent,omitempty"`
	Question     *Question      `json:"question,omitempty"`
	Status       *Status        `json:"status,omitempty"`
	ChatResponse string         `json:"chat_response"`
}

// TaskManagerFactory builds the short-lived task-management agent used to
// serve one manage_task call.
type TaskManagerFactory func() (*TaskManager, error)

// Orchestrator is the user-facing agent. It fans out to the specialists,
// injects their analyses plus the live task list, and exposes task mutation
// through a single manage_task tool.
type Orchestrator struct {
	base       *Agent
	store      *task.Store
	intent     *IntentEmotionAgent
	question   *QuestionAgent
	status     *StatusAgent
	newManager TaskManagerFactory

	mu       sync.Mutex
	lastTask *TaskOutcome
}

type OrchestratorOptions struct {
	Completer   llm.Completer
	Model       string
	MemoryTurns int
	Store       *task.Store
	Intent      *IntentEmotionAgent
	Question    *QuestionAgent
	Status      *StatusAgent
	NewManager  TaskManagerFactory
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("orchestrator: store is required")
	}
	if opts.Intent == nil || opts.Question == nil || opts.Status == nil {
		return nil, fmt.Errorf("orchestrator: all three specialists are required")
	}
	if opts.NewManager == nil {
		return nil, fmt.Errorf("orchestrator: task manager factory is required")
	}

	o := &Orchestrator{
		store:      opts.Store,
		intent:     opts.Intent,
		question:   opts.Question,
		status:     opts.Status,
		newManager: opts.NewManager,
	}

	registry := llm.NewToolRegistry()
	err := registry.Register(llm.Tool{
		Name:        "manage_task",
		Description: "Create, update, delete or complete a task. Pass the user's request as a plain-language command.",
		Parameters: llm.ObjectSchema(map[string]interface{}{
			"command": map[string]interface{}{"type": "string", "description": "What to do, in plain language"},
		}, []string{"command"}),
		Handler: o.manageTask,
	})
	if err != nil {
		return nil, err
	}

	base, err := New(Options{
		Name:         "orchestrator",
		Model:        opts.Model,
		SystemPrompt: orchestratorPrompt,
		Tools:        registry,
		MemoryTurns:  opts.MemoryTurns,
		Completer:    opts.Completer,
	})
	if err != nil {
		return nil, err
	}
	o.base = base
	return o, nil
}

// Run handles one user message end to end. Specialist failures degrade to
// error fields in the output; a failure of the orchestrator's own model call
// has no safe fallback and is returned as a hard error.
func (o *Orchestrator) Run(ctx context.Context, message string, injections map[string]string) (ServiceOutput, error) {
	taskList := o.renderTaskList(ctx)

	var (
		wg       sync.WaitGroup
		intent   IntentEmotion
		question Question
		status   Status
	)
	wg.Add(3)
	go func() { defer wg.Done(); intent = o.intent.Run(ctx, message, nil) }()
	go func() { defer wg.Done(); question = o.question.Run(ctx, message, nil) }()
	go func() {
		defer wg.Done()
		status = o.status.Run(ctx, message, map[string]string{"Existing tasks": taskList})
	}()
	wg.Wait()

	merged := map[string]string{
		"User intent/emotion": fmt.Sprintf("%s|%s", intent.Intent, intent.Emotion),
		"Suggested question":  question.Question,
		"Task status summary": status.StatusSummary,
		"Existing tasks":      taskList,
	}
	for label, value := range injections {
		merged[label] = value
	}

	o.mu.Lock()
	o.lastTask = nil
	o.mu.Unlock()

	out := o.base.Run(ctx, message, merged, nil)
	if out.Err != nil {
		return ServiceOutput{}, fmt.Errorf("orchestrator run: %w", out.Err)
	}

	result := ServiceOutput{
		Intent:       &intent,
		Question:     &question,
		Status:       &status,
		ChatResponse: out.Text,
	}

	o.mu.Lock()
	outcome := o.lastTask
	o.mu.Unlock()
	if outcome != nil {
		result.Task = outcome.Task
		result.Delete = outcome.Delete
		if result.ChatResponse == "" {
			result.ChatResponse = confirmation(*outcome)
		}
	}
	return result, nil
}

type manageTaskArgs struct {
	Command string `json:"command"`
}

// manageTask serves one tool call with a fresh task-management agent so a
// half-finished exchange never leaks between invocations.
func (o *Orchestrator) manageTask(ctx context.Context, args json.RawMessage, _ interface{}) (interface{}, error) {
	var payload manageTaskArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return nil, fmt.Errorf("manage_task: %w", err)
	}
	command := strings.TrimSpace(payload.Command)
	if command == "" {
		return nil, fmt.Errorf("manage_task: empty command")
	}

	manager, err := o.newManager()
	if err != nil {
		return nil, fmt.Errorf("manage_task: %w", err)
	}

	outcome := manager.Run(ctx, command, nil)
	o.mu.Lock()
	o.lastTask = &outcome
	o.mu.Unlock()

	reply := confirmation(outcome)
	if reply == "" {
		reply = outcome.Text
	}
	return map[string]string{"result": reply}, nil
}

func confirmation(outcome TaskOutcome) string {
	switch outcome.Action {
	case "create":
		if outcome.Task.Error != "" {
			return outcome.Task.Error
		}
		text := fmt.Sprintf("Created task #%d: '%s'", outcome.Task.ID, outcome.Task.Title)
		if outcome.Task.DueDate != "" {
			text += fmt.Sprintf(" due %s", outcome.Task.DueDate)
		}
		return text
	case "update":
		if outcome.Task.Error != "" {
			return outcome.Task.Error
		}
		return fmt.Sprintf("Updated task #%d: '%s'", outcome.Task.ID, outcome.Task.Title)
	case "delete":
		if outcome.Delete.Error != "" || !outcome.Delete.Deleted {
			return fmt.Sprintf("Could not delete task #%d", outcome.Delete.ID)
		}
		return fmt.Sprintf("Deleted task #%d", outcome.Delete.ID)
	case "error":
		return outcome.Error
	default:
		return outcome.Text
	}
}

func (o *Orchestrator) renderTaskList(ctx context.Context) string {
	items, err := o.store.List(ctx)
	if err != nil {
		logger.Error("Orchestrator: listing tasks failed: %v", err)
		return "Task list unavailable."
	}
	if len(items) == 0 {
		return "No tasks yet."
	}
	var b strings.Builder
	for i, t := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%d: %s (due %s, done=%t)", t.ID, t.Title, formatDueDate(t.DueDate), t.Completed))
	}
	return b.String()
}

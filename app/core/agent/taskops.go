package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskpilot/app/core/llm"
	"taskpilot/app/core/orchestrator/task"
	"taskpilot/app/pkg/logger"
)

// TaskResult is the structured outcome of a create or update tool call.
// A non-empty Error is authoritative over the payload fields.
type TaskResult struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Completed   bool   `json:"completed"`
	Error       string `json:"error,omitempty"`
}

// DeleteResult is the structured outcome of a delete tool call.
type DeleteResult struct {
	ID      int64  `json:"id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// TaskOutcome is the tagged result of one task-management run: exactly one
// of Task, Delete or Text is populated per Action, so callers can handle
// every case explicitly.
type TaskOutcome struct {
	Action string        `json:"action"` // "create", "update", "delete", "chat" or "error"
	Task   *TaskResult   `json:"task,omitempty"`
	Delete *DeleteResult `json:"delete,omitempty"`
	Text   string        `json:"text,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// TaskManager is the conversational agent that mutates the task store. Its
// three tools validate independently and return errors as data; a failing
// tool call never crashes the agent.
type TaskManager struct {
	base  *Agent
	store *task.Store
	dates *DateResolver
	now   func() time.Time
}

func NewTaskManager(completer llm.Completer, model string, memoryTurns int, store *task.Store) (*TaskManager, error) {
	if store == nil {
		return nil, fmt.Errorf("task manager: store is required")
	}

	tm := &TaskManager{
		store: store,
		dates: NewDateResolver(),
		now:   func() time.Time { return time.Now().UTC() },
	}

	registry := llm.NewToolRegistry()
	tools := []llm.Tool{
		{
			Name:        "create_task",
			Description: "Create a task. due_date is free-form text like 'tomorrow at 9am'.",
			Parameters: llm.ObjectSchema(map[string]interface{}{
				"title":       map[string]interface{}{"type": "string", "description": "Task title"},
				"description": map[string]interface{}{"type": "string", "description": "Task description"},
				"due_date":    map[string]interface{}{"type": "string", "description": "Due date, free-form"},
			}, []string{"title"}),
			Handler: tm.createTask,
		},
		{
			Name:        "update_task",
			Description: "Update an existing task. Supply only the fields to change; completed=true marks it done.",
			Parameters: llm.ObjectSchema(map[string]interface{}{
				"id":          map[string]interface{}{"type": "integer", "description": "ID of the task to update"},
				"title":       map[string]interface{}{"type": "string", "description": "New title"},
				"description": map[string]interface{}{"type": "string", "description": "New description"},
				"due_date":    map[string]interface{}{"type": "string", "description": "New due date, free-form"},
				"completed":   map[string]interface{}{"type": "boolean", "description": "Mark done?"},
			}, []string{"id"}),
			Handler: tm.updateTask,
		},
		{
			Name:        "delete_task",
			Description: "Delete a task by id.",
			Parameters: llm.ObjectSchema(map[string]interface{}{
				"id": map[string]interface{}{"type": "integer", "description": "ID of the task to delete"},
			}, []string{"id"}),
			Handler: tm.deleteTask,
		},
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	base, err := New(Options{
		Name:         "task_manager",
		Model:        model,
		SystemPrompt: taskManagerPrompt,
		Tools:        registry,
		MemoryTurns:  memoryTurns,
		Completer:    completer,
	})
	if err != nil {
		return nil, err
	}
	tm.base = base
	return tm, nil
}

// Run injects the current timestamp and the full rendered task list before
// delegating, so the model has ground truth to resolve references like
// "the second task" or "my dentist appointment".
func (tm *TaskManager) Run(ctx context.Context, command string, injections map[string]string) TaskOutcome {
	merged := map[string]string{
		"Current timestamp": tm.now().Format(time.RFC3339),
		"Existing tasks":    tm.renderExistingTasks(ctx),
	}
	for label, value := range injections {
		merged[label] = value
	}

	out := tm.base.Run(ctx, command, merged, nil)
	if out.Err != nil {
		return TaskOutcome{Action: "error", Error: out.Err.Error()}
	}

	switch out.ToolName {
	case "create_task":
		return decodeTaskOutcome("create", out)
	case "update_task":
		return decodeTaskOutcome("update", out)
	case "delete_task":
		var result DeleteResult
		if err := json.Unmarshal(out.ToolResult, &result); err != nil {
			return TaskOutcome{Action: "error", Error: fmt.Sprintf("undecodable delete result: %v", err)}
		}
		return TaskOutcome{Action: "delete", Delete: &result, Text: out.Text}
	default:
		return TaskOutcome{Action: "chat", Text: out.Text}
	}
}

func decodeTaskOutcome(action string, out Output) TaskOutcome {
	var result TaskResult
	if err := json.Unmarshal(out.ToolResult, &result); err != nil {
		return TaskOutcome{Action: "error", Error: fmt.Sprintf("undecodable %s result: %v", action, err)}
	}
	return TaskOutcome{Action: action, Task: &result, Text: out.Text}
}

func (tm *TaskManager) renderExistingTasks(ctx context.Context) string {
	items, err := tm.store.List(ctx)
	if err != nil {
		logger.Error("Task manager: listing tasks failed: %v", err)
		return "Task list unavailable."
	}
	if len(items) == 0 {
		return "No existing tasks."
	}
	var b strings.Builder
	for i, t := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%d: %s (due %s, completed=%t)", t.ID, t.Title, formatDueDate(t.DueDate), t.Completed))
	}
	return b.String()
}

type createArgs struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
}

func (tm *TaskManager) createTask(ctx context.Context, args json.RawMessage, _ interface{}) (interface{}, error) {
	var payload createArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return TaskResult{Error: fmt.Sprintf("Invalid data: %v", err)}, nil
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		return TaskResult{Error: "Invalid data: title must not be empty"}, nil
	}

	params := task.CreateParams{Title: title}
	if payload.Description != nil {
		params.Description = *payload.Description
	}
	params.DueDate = tm.resolveDueDate(payload.DueDate)

	created, err := tm.store.Insert(ctx, params)
	if err != nil {
		logger.Error("Task manager: create failed: %v", err)
		return TaskResult{Error: "Database error when creating task"}, nil
	}
	return taskToResult(created), nil
}

type updateArgs struct {
	ID          json.RawMessage `json:"id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	DueDate     *string         `json:"due_date"`
	Completed   *bool           `json:"completed"`
}

func (tm *TaskManager) updateTask(ctx context.Context, args json.RawMessage, _ interface{}) (interface{}, error) {
	var payload updateArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return TaskResult{Error: fmt.Sprintf("Invalid data: %v", err)}, nil
	}

	id, raw, ok := parseTaskID(payload.ID)
	if !ok {
		return TaskResult{Error: fmt.Sprintf("Invalid task ID: %s", raw)}, nil
	}

	if _, err := tm.store.Get(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TaskResult{Error: fmt.Sprintf("Task %d not found", id)}, nil
		}
		logger.Error("Task manager: lookup for update failed: %v", err)
		return TaskResult{Error: "Database error when updating task"}, nil
	}

	params := task.UpdateParams{
		Title:       payload.Title,
		Description: payload.Description,
		Completed:   payload.Completed,
	}
	if payload.DueDate != nil {
		params.DueDate = tm.resolveDueDate(payload.DueDate)
	}
	if params.Empty() {
		return TaskResult{Error: "No fields provided to update; please specify title, description, due_date, or completed."}, nil
	}
	if payload.Title != nil && strings.TrimSpace(*payload.Title) == "" {
		return TaskResult{Error: "Invalid data: title must not be empty"}, nil
	}

	updated, err := tm.store.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TaskResult{Error: fmt.Sprintf("Task %d not found", id)}, nil
		}
		logger.Error("Task manager: update failed: %v", err)
		return TaskResult{Error: "Database error when updating task"}, nil
	}
	return taskToResult(updated), nil
}

type deleteArgs struct {
	ID json.RawMessage `json:"id"`
}

func (tm *TaskManager) deleteTask(ctx context.Context, args json.RawMessage, _ interface{}) (interface{}, error) {
	var payload deleteArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return DeleteResult{Error: fmt.Sprintf("Invalid data: %v", err)}, nil
	}

	id, raw, ok := parseTaskID(payload.ID)
	if !ok {
		return DeleteResult{Error: fmt.Sprintf("Invalid task ID: %s", raw)}, nil
	}

	if err := tm.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeleteResult{ID: id, Deleted: false, Error: "Task not found"}, nil
		}
		logger.Error("Task manager: delete failed: %v", err)
		return DeleteResult{ID: id, Deleted: false, Error: "Error deleting task"}, nil
	}
	return DeleteResult{ID: id, Deleted: true}, nil
}

// resolveDueDate treats unresolvable text as "no due date": logged, never a
// hard error. Raw text is never persisted.
func (tm *TaskManager) resolveDueDate(text *string) *time.Time {
	if text == nil || strings.TrimSpace(*text) == "" {
		return nil
	}
	resolved, ok := tm.dates.Resolve(*text, tm.now())
	if !ok {
		logger.Warn("Task manager: could not resolve due date %q", *text)
		return nil
	}
	utc := resolved.UTC()
	return &utc
}

// parseTaskID accepts the id however the model encoded it (number or quoted
// string) and rejects anything that is not an integer before any store
// access happens.
func parseTaskID(raw json.RawMessage) (int64, string, bool) {
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, `"`)
	if text == "" || text == "null" {
		return 0, text, false
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, text, false
	}
	return id, text, true
}

func taskToResult(t task.Task) TaskResult {
	result := TaskResult{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
	}
	if t.DueDate != nil {
		result.DueDate = t.DueDate.UTC().Format(time.RFC3339)
	}
	return result
}

func formatDueDate(due *time.Time) string {
	if due == nil {
		return "None"
	}
	return due.UTC().Format(time.RFC3339)
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"taskpilot/app/core/llm"
	"taskpilot/app/pkg/logger"
	"taskpilot/app/pkg/types"
)

const defaultMemoryTurns = 50

// Output is the base agent's call result. Exactly one of Text or
// ToolName/ToolResult is meaningful on success; Err is set on gateway
// failure and callers with a declared shape map it into their error field.
type Output struct {
	Text       string
	ToolName   string
	ToolResult json.RawMessage
	Err        error
}

// Agent wraps the language-model gateway with a fixed system prompt, a
// bounded conversation memory and an optional tool set. Calls on one
// instance are serialized; memory is owned exclusively by that instance.
type Agent struct {
	name         string
	model        string
	systemPrompt string
	tools        *llm.ToolRegistry
	jsonOutput   bool
	memory       *Memory
	completer    llm.Completer

	mu sync.Mutex
}

type Options struct {
	Name         string
	Model        string
	SystemPrompt string
	Tools        *llm.ToolRegistry
	JSONOutput   bool
	MemoryTurns  int
	Completer    llm.Completer
}

func New(opts Options) (*Agent, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("agent %s: model is required", opts.Name)
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		return nil, fmt.Errorf("agent %s: system prompt is required", opts.Name)
	}
	if opts.Completer == nil {
		return nil, fmt.Errorf("agent %s: completer is required", opts.Name)
	}
	if opts.MemoryTurns <= 0 {
		opts.MemoryTurns = defaultMemoryTurns
	}
	return &Agent{
		name:         opts.Name,
		model:        opts.Model,
		systemPrompt: opts.SystemPrompt,
		tools:        opts.Tools,
		jsonOutput:   opts.JSONOutput,
		memory:       NewMemory(opts.MemoryTurns),
		completer:    opts.Completer,
	}, nil
}

func (a *Agent) Name() string {
	return a.name
}

// MemoryTurns returns a copy of the retained history.
func (a *Agent) MemoryTurns() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.memory.Turns()
}

// Run records the user turn, renders the prompt from the full memory plus
// injections, and invokes the gateway. The user turn is recorded even when
// the call fails; the assistant turn only on success.
func (a *Agent) Run(ctx context.Context, userMessage string, injections map[string]string, deps interface{}) Output {
	trimmed := strings.TrimSpace(userMessage)
	if trimmed == "" {
		return Output{Err: fmt.Errorf("agent %s: user message is empty", a.name)}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.memory.Append(types.MessageRoleUser, trimmed)
	prompt := a.renderPrompt(injections)

	result, err := a.completer.Complete(ctx, llm.Request{
		Model:      a.model,
		Prompt:     prompt,
		Tools:      a.tools,
		JSONOutput: a.jsonOutput,
		Deps:       deps,
	})
	if err != nil {
		logger.Error("Agent %s failed: %v", a.name, err)
		return Output{Err: err}
	}

	a.memory.Append(types.MessageRoleAssistant, stringifyResult(result))

	return Output{
		Text:       result.Text,
		ToolName:   result.ToolName,
		ToolResult: result.ToolResult,
	}
}

// renderPrompt reflects exactly the current memory contents plus injections:
// system prompt, then every remembered turn (the just-appended user message
// included), then the labeled context lines in sorted label order.
func (a *Agent) renderPrompt(injections map[string]string) string {
	var b strings.Builder
	b.WriteString("System Prompt:\n")
	b.WriteString(a.systemPrompt)
	b.WriteString("\n\n")

	b.WriteString("Conversation So Far:\n")
	for _, turn := range a.memory.Turns() {
		label := "User"
		if turn.Role == types.MessageRoleAssistant {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}

	if len(injections) > 0 {
		b.WriteString("\nAdditional Context:\n")
		labels := make([]string, 0, len(injections))
		for label := range injections {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(injections[label])
			b.WriteString("\n")
		}
	}
	return b.String()
}

func stringifyResult(result llm.Result) string {
	if result.Text != "" {
		return result.Text
	}
	if len(result.ToolResult) > 0 {
		return string(result.ToolResult)
	}
	return ""
}

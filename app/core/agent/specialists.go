package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"taskpilot/app/core/llm"
)

// IntentEmotion is the analysis produced by the intent specialist. Error is
// populated instead of the fields when the model call or parse failed.
type IntentEmotion struct {
	Intent  string `json:"intent"`
	Emotion string `json:"emotion"`
	Error   string `json:"error,omitempty"`
}

// Question is one clarifying follow-up proposed by the question specialist.
type Question struct {
	Question string `json:"question"`
	Error    string `json:"error,omitempty"`
}

// Status is the task-status summary produced by the status specialist.
type Status struct {
	StatusSummary string `json:"status_summary"`
	Error         string `json:"error,omitempty"`
}

// IntentEmotionAgent classifies what the user wants and how they feel.
type IntentEmotionAgent struct {
	base *Agent
}

func NewIntentEmotionAgent(completer llm.Completer, model string, memoryTurns int) (*IntentEmotionAgent, error) {
	base, err := New(Options{
		Name:         "intent_emotion",
		Model:        model,
		SystemPrompt: intentEmotionPrompt,
		JSONOutput:   true,
		MemoryTurns:  memoryTurns,
		Completer:    completer,
	})
	if err != nil {
		return nil, err
	}
	return &IntentEmotionAgent{base: base}, nil
}

func (a *IntentEmotionAgent) Run(ctx context.Context, message string, injections map[string]string) IntentEmotion {
	var result IntentEmotion
	if errText := runSpecialist(ctx, a.base, message, injections, &result); errText != "" {
		return IntentEmotion{Error: errText}
	}
	return result
}

// QuestionAgent proposes a single clarifying question for the conversation.
type QuestionAgent struct {
	base *Agent
}

func NewQuestionAgent(completer llm.Completer, model string, memoryTurns int) (*QuestionAgent, error) {
	base, err := New(Options{
		Name:         "question",
		Model:        model,
		SystemPrompt: questionPrompt,
		JSONOutput:   true,
		MemoryTurns:  memoryTurns,
		Completer:    completer,
	})
	if err != nil {
		return nil, err
	}
	return &QuestionAgent{base: base}, nil
}

func (a *QuestionAgent) Run(ctx context.Context, message string, injections map[string]string) Question {
	var result Question
	if errText := runSpecialist(ctx, a.base, message, injections, &result); errText != "" {
		return Question{Error: errText}
	}
	return result
}

// StatusAgent summarizes the current task list in one or two sentences.
type StatusAgent struct {
	base *Agent
}

func NewStatusAgent(completer llm.Completer, model string, memoryTurns int) (*StatusAgent, error) {
	base, err := New(Options{
		Name:         "status",
		Model:        model,
		SystemPrompt: statusPrompt,
		JSONOutput:   true,
		MemoryTurns:  memoryTurns,
		Completer:    completer,
	})
	if err != nil {
		return nil, err
	}
	return &StatusAgent{base: base}, nil
}

func (a *StatusAgent) Run(ctx context.Context, message string, injections map[string]string) Status {
	var result Status
	if errText := runSpecialist(ctx, a.base, message, injections, &result); errText != "" {
		return Status{Error: errText}
	}
	return result
}

// runSpecialist turns any failure (model call, missing JSON, bad shape) into
// an error string so specialists never abort the wider conversation.
func runSpecialist(ctx context.Context, base *Agent, message string, injections map[string]string, target interface{}) string {
	out := base.Run(ctx, message, injections, nil)
	if out.Err != nil {
		return out.Err.Error()
	}
	body, ok := llm.FirstJSONObject(out.Text)
	if !ok {
		return fmt.Sprintf("%s returned no JSON object", base.name)
	}
	if err := json.Unmarshal([]byte(body), target); err != nil {
		return fmt.Sprintf("%s returned malformed JSON: %v", base.name, err)
	}
	return ""
}

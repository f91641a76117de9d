package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Request is a single rendered prompt plus the capabilities the model may use.
type Request struct {
	Model      string
	Prompt     string
	Tools      *ToolRegistry
	JSONOutput bool
	// Deps is an opaque payload forwarded to tool handlers.
	Deps interface{}
}

// Result carries the model's final text and, when a tool fired during the
// call, the last tool's name and raw structured result.
type Result struct {
	Text       string
	ToolName   string
	ToolResult json.RawMessage
}

// Completer is the language-model gateway contract. Tool invocations happen
// inside Complete; callers only see the final text and the last tool result.
type Completer interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// FirstJSONObject extracts the first valid JSON object embedded in model
// output. Models wrap JSON in prose or code fences often enough that a plain
// unmarshal of the whole text is not reliable.
func FirstJSONObject(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		return trimmed, true
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return "", false
	}
	candidate := trimmed[start : end+1]
	if gjson.Valid(candidate) {
		return candidate, true
	}
	return "", false
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"taskpilot/app/pkg/logger"
)

const defaultMaxToolRounds = 4

// Client implements Completer over the OpenAI chat completions API.
type Client struct {
	api           openai.Client
	maxToolRounds int
}

// NewClient fails fast when the credential is absent; this is a configuration
// error, checked once here rather than on every call.
func NewClient(apiKey string, maxToolRounds int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	if maxToolRounds <= 0 {
		maxToolRounds = defaultMaxToolRounds
	}
	return &Client{
		api:           openai.NewClient(option.WithAPIKey(apiKey)),
		maxToolRounds: maxToolRounds,
	}, nil
}

func (c *Client) Complete(ctx context.Context, req Request) (Result, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.JSONOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	if req.Tools != nil {
		for _, t := range req.Tools.Manifests() {
			params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			}))
		}
	}

	var result Result
	for round := 0; ; round++ {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return Result{}, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Result{}, fmt.Errorf("chat completion returned no choices")
		}

		msg := resp.Choices[0].Message
		if req.Tools == nil || len(msg.ToolCalls) == 0 {
			result.Text = msg.Content
			return result, nil
		}
		if round >= c.maxToolRounds {
			return Result{}, fmt.Errorf("tool dispatch exceeded %d rounds", c.maxToolRounds)
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			payload := dispatchTool(ctx, req, call.Function.Name, call.Function.Arguments)
			result.ToolName = call.Function.Name
			result.ToolResult = json.RawMessage(payload)
			params.Messages = append(params.Messages, openai.ToolMessage(payload, call.ID))
		}
	}
}

// dispatchTool isolates each tool call: a failing handler yields an error
// payload for that call only, never a failed gateway call.
func dispatchTool(ctx context.Context, req Request, name string, args string) string {
	tool, ok := req.Tools.Get(name)
	if !ok {
		logger.Error("Tool dispatch: unknown tool %q", name)
		return errorPayload(fmt.Sprintf("unknown tool: %s", name))
	}

	out, err := tool.Handler(ctx, json.RawMessage(args), req.Deps)
	if err != nil {
		logger.Error("Tool %s failed: %v", name, err)
		return errorPayload(err.Error())
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		logger.Error("Tool %s result not serializable: %v", name, err)
		return errorPayload(fmt.Sprintf("tool result not serializable: %v", err))
	}
	return string(encoded)
}

func errorPayload(message string) string {
	encoded, _ := json.Marshal(map[string]string{"error": message})
	return string(encoded)
}

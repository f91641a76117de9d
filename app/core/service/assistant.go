// Package service exposes the conversational pipeline as a single agent the
// gateway can dispatch to.
package service

import (
	"context"
	"strings"
	"time"

	"taskpilot/app/core/agent"
	"taskpilot/app/core/guardrails"
	"taskpilot/app/pkg/types"
)

// MetaServiceOutput is the reply metadata key carrying the full structured
// output for channels that return JSON.
const MetaServiceOutput = "service_output"

// ChatRunner dispatches one message into a named session.
type ChatRunner interface {
	Run(ctx context.Context, sessionID, message string, injections map[string]string) (agent.ServiceOutput, error)
}

// Assistant screens input, routes it to the session's orchestrator and wraps
// the result as a channel reply. Blocked input is a normal reply; only a
// failed orchestrator call surfaces as an error.
type Assistant struct {
	sessions ChatRunner
	filter   *guardrails.Filter
	timeout  time.Duration
}

func NewAssistant(sessions ChatRunner, filter *guardrails.Filter, timeout time.Duration) *Assistant {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Assistant{sessions: sessions, filter: filter, timeout: timeout}
}

func (a *Assistant) Name() string {
	return "assistant"
}

func (a *Assistant) Process(ctx context.Context, msg types.Message) (types.Message, error) {
	content := strings.TrimSpace(msg.Content)

	if a.filter != nil {
		if ok, reason := a.filter.Check(content); !ok {
			return a.reply(msg, agent.ServiceOutput{ChatResponse: reason}, true), nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.sessions.Run(runCtx, msg.SessionID, content, nil)
	if err != nil {
		return types.Message{}, err
	}
	return a.reply(msg, out, false), nil
}

func (a *Assistant) reply(msg types.Message, out agent.ServiceOutput, blocked bool) types.Message {
	return types.Message{
		ID:        "resp-" + msg.ID,
		Content:   out.ChatResponse,
		Role:      types.MessageRoleAssistant,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		SessionID: msg.SessionID,
		RequestID: msg.RequestID,
		Meta: map[string]interface{}{
			MetaServiceOutput: out,
			"blocked":         blocked,
		},
	}
}

package types

import "context"

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message represents a user input or an assistant reply crossing a channel.
type Message struct {
	ID        string
	Content   string
	Role      string // "user" or "assistant"
	ChannelID string // source channel identifier (e.g. "http", "cli")
	UserID    string
	SessionID string
	RequestID string
	Meta      map[string]interface{}
}

// Agent represents the core reasoning entity behind the gateway.
type Agent interface {
	Process(ctx context.Context, msg Message) (Message, error)
	Name() string
}

// Channel represents an input/output interface (HTTP, CLI).
type Channel interface {
	Start(ctx context.Context, handler func(Message)) error
	Send(ctx context.Context, msg Message) error
	ID() string
}

// Gateway dispatches channel messages to the agent.
type Gateway interface {
	RegisterChannel(c Channel)
	Start(ctx context.Context) error
}

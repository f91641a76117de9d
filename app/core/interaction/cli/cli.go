package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"taskpilot/app/pkg/types"
)

// CLIChannel is a stdin chat loop bound to a single user and session.
type CLIChannel struct {
	id        string
	userID    string
	sessionID string
}

func NewCLIChannel(userID, sessionID string) *CLIChannel {
	if strings.TrimSpace(userID) == "" {
		userID = "local_user"
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = "cli"
	}
	return &CLIChannel{id: "cli", userID: userID, sessionID: sessionID}
}

func (c *CLIChannel) ID() string {
	return c.id
}

func (c *CLIChannel) Start(ctx context.Context, handler func(types.Message)) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(">> TaskPilot CLI started. Type 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				fmt.Println("Exiting CLI loop...")
				return nil
			}

			msg := types.Message{
				ID:        fmt.Sprintf("cli-%d", time.Now().UnixNano()),
				Content:   text,
				Role:      types.MessageRoleUser,
				ChannelID: c.id,
				UserID:    c.userID,
				SessionID: c.sessionID,
				Meta: map[string]interface{}{
					"user_id": c.userID,
				},
			}
			handler(msg)
		}
	}
}

func (c *CLIChannel) Send(ctx context.Context, msg types.Message) error {
	fmt.Printf("[TaskPilot]: %s\n", msg.Content)
	return nil
}

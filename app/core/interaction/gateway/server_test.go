package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"taskpilot/app/pkg/types"
)

type testAgent struct {
	err error
}

func (a *testAgent) Process(_ context.Context, msg types.Message) (types.Message, error) {
	if a.err != nil {
		return types.Message{}, a.err
	}
	return types.Message{Content: "ok", SessionID: msg.SessionID}, nil
}

func (a *testAgent) Name() string {
	return "test"
}

type testChannel struct {
	id       string
	startFn  func(context.Context, func(types.Message)) error
	sendMu   sync.Mutex
	sentMsgs []types.Message
}

func (c *testChannel) Start(ctx context.Context, handler func(types.Message)) error {
	if c.startFn != nil {
		return c.startFn(ctx, handler)
	}
	<-ctx.Done()
	return nil
}

func (c *testChannel) Send(_ context.Context, msg types.Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.sentMsgs = append(c.sentMsgs, msg)
	return nil
}

func (c *testChannel) ID() string {
	return c.id
}

func (c *testChannel) sent() []types.Message {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	out := make([]types.Message, len(c.sentMsgs))
	copy(out, c.sentMsgs)
	return out
}

func TestHealthStatusIncludesRegisteredChannels(t *testing.T) {
	gw := NewGateway(&testAgent{})
	gw.RegisterChannel(&testChannel{id: "http"})
	gw.RegisterChannel(&testChannel{id: "cli"})

	status := gw.HealthStatus()
	if len(status.RegisteredChannels) != 2 {
		t.Fatalf("unexpected channels: %v", status.RegisteredChannels)
	}
	if status.RegisteredChannels[0] != "cli" || status.RegisteredChannels[1] != "http" {
		t.Fatalf("channels should be sorted: %v", status.RegisteredChannels)
	}
	if status.AgentName != "test" {
		t.Fatalf("unexpected agent name %q", status.AgentName)
	}
}

func TestProcessAndReplyDeliversOnSourceChannel(t *testing.T) {
	gw := NewGateway(&testAgent{})
	ch := &testChannel{id: "http"}
	gw.RegisterChannel(ch)

	msg := types.Message{ID: "m1", Content: "hi", ChannelID: "http", UserID: "u1", SessionID: "alice", RequestID: "req-1"}
	if err := gw.processAndReply(context.Background(), msg); err != nil {
		t.Fatalf("processAndReply: %v", err)
	}

	sent := ch.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sent))
	}
	reply := sent[0]
	if reply.Content != "ok" {
		t.Fatalf("unexpected content %q", reply.Content)
	}
	if reply.RequestID != "req-1" || reply.SessionID != "alice" || reply.UserID != "u1" {
		t.Fatalf("reply not normalized from request: %+v", reply)
	}
	if reply.Role != types.MessageRoleAssistant {
		t.Fatalf("unexpected role %q", reply.Role)
	}
}

func TestSendErrorReplyMarksError(t *testing.T) {
	gw := NewGateway(&testAgent{err: errors.New("boom")})
	ch := &testChannel{id: "http"}
	gw.RegisterChannel(ch)

	msg := types.Message{ID: "m1", Content: "hi", ChannelID: "http", RequestID: "req-1"}
	if err := gw.processAndReply(context.Background(), msg); err == nil {
		t.Fatalf("expected agent error")
	}
	if err := gw.sendErrorReply(context.Background(), msg, "Error: boom"); err != nil {
		t.Fatalf("sendErrorReply: %v", err)
	}

	sent := ch.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sent))
	}
	if reason, _ := sent[0].Meta["error"].(string); reason != "Error: boom" {
		t.Fatalf("error meta missing: %+v", sent[0].Meta)
	}
}

func TestStartDispatchesInboundMessages(t *testing.T) {
	gw := NewGateway(&testAgent{})
	ch := &testChannel{
		id: "cli",
		startFn: func(ctx context.Context, handler func(types.Message)) error {
			handler(types.Message{ID: "m1", Content: "hi", ChannelID: "cli"})
			return nil
		},
	}
	gw.RegisterChannel(ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gw.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(ch.sent()) != 1 {
		t.Fatalf("expected reply dispatched during Start")
	}
	if gw.HealthStatus().ProcessedMessages != 1 {
		t.Fatalf("processed counter not incremented")
	}
}

func TestTraceRecorderWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	recorder, err := NewTraceRecorder(dir)
	if err != nil {
		t.Fatalf("NewTraceRecorder: %v", err)
	}

	event := TraceEvent{RequestID: "req-1", Event: "deliver_reply", Status: "ok", SessionID: "alice"}
	if err := recorder.Record(event); err != nil {
		t.Fatalf("Record: %v", err)
	}

	dayDir := filepath.Join(dir, time.Now().UTC().Format("2006-01-02"))
	f, err := os.Open(filepath.Join(dayDir, "gateway_events.jsonl"))
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("trace file is empty")
	}
	var decoded TraceEvent
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("decode trace line: %v", err)
	}
	if decoded.RequestID != "req-1" || decoded.SessionID != "alice" {
		t.Fatalf("unexpected trace line: %+v", decoded)
	}
	if decoded.Timestamp == "" {
		t.Fatalf("timestamp should be filled in")
	}
}

func TestDetailJSON(t *testing.T) {
	detail := DetailJSON(map[string]string{"session_id": "alice", "content_bytes": "42", "empty": ""})
	if !strings.Contains(detail, `"session_id":"alice"`) {
		t.Fatalf("missing session id: %s", detail)
	}
	if !strings.Contains(detail, `"content_bytes":"42"`) {
		t.Fatalf("missing content bytes: %s", detail)
	}
	if strings.Contains(detail, "empty") {
		t.Fatalf("empty values should be dropped: %s", detail)
	}
	if DetailJSON(nil) != "" {
		t.Fatalf("nil input should produce empty detail")
	}
}

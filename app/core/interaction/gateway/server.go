package gateway

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"taskpilot/app/pkg/logger"
	"taskpilot/app/pkg/types"
)

// DefaultGateway connects channels to the assistant agent: every inbound
// message is processed and the reply is delivered back on the channel it
// arrived on. Each hop leaves a trace event.
type DefaultGateway struct {
	agent    types.Agent
	channels map[string]types.Channel
	mu       sync.RWMutex
	tracer   TraceRecorder

	processedMessages uint64
	lastMessageUnix   atomic.Int64
	startedUnix       atomic.Int64
}

type HealthStatus struct {
	Started            bool
	StartedAt          time.Time
	RegisteredChannels []string
	AgentName          string
	ProcessedMessages  uint64
	LastMessageAt      time.Time
}

func NewGateway(agent types.Agent) *DefaultGateway {
	return &DefaultGateway{
		agent:    agent,
		channels: make(map[string]types.Channel),
	}
}

func (g *DefaultGateway) RegisterChannel(c types.Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
	logger.Info("[Gateway] Registered channel: %s", c.ID())
}

func (g *DefaultGateway) SetTraceRecorder(tracer TraceRecorder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracer = tracer
}

func (g *DefaultGateway) Start(ctx context.Context) error {
	if g.agent == nil {
		return fmt.Errorf("gateway has no agent")
	}
	var wg sync.WaitGroup
	g.startedUnix.Store(time.Now().Unix())

	handler := func(msg types.Message) {
		atomic.AddUint64(&g.processedMessages, 1)
		g.lastMessageUnix.Store(time.Now().Unix())
		logger.Info("[Gateway] Received message from channel=%s user=%s", msg.ChannelID, msg.UserID)
		g.trace(msg, "inbound_received", "ok", "")

		if err := g.processAndReply(ctx, msg); err != nil {
			logger.Error("[Gateway] Processing failed: %v", err)
			_ = g.sendErrorReply(ctx, msg, "Error: "+err.Error())
		}
	}

	g.mu.RLock()
	for _, c := range g.channels {
		wg.Add(1)
		go func(ch types.Channel) {
			defer wg.Done()
			if err := ch.Start(ctx, handler); err != nil {
				logger.Error("[Gateway] Channel %s error: %v", ch.ID(), err)
				if ctx.Err() == nil {
					g.trace(types.Message{ChannelID: ch.ID()}, "channel_disconnected", "error", err.Error())
				}
			}
		}(c)
	}
	g.mu.RUnlock()

	logger.Info("[Gateway] Started all channels")
	wg.Wait()
	return nil
}

func (g *DefaultGateway) processAndReply(ctx context.Context, msg types.Message) error {
	response, err := g.agent.Process(ctx, msg)
	if err != nil {
		g.trace(msg, "agent_process", "error", err.Error())
		return fmt.Errorf("agent process: %w", err)
	}
	g.trace(msg, "agent_process", "ok", "")

	channel, exists := g.channelByID(msg.ChannelID)
	if !exists {
		g.trace(msg, "deliver_reply", "error", "channel not found for reply")
		return fmt.Errorf("channel not found for reply: %s", msg.ChannelID)
	}

	normalizeReply(&response, msg)
	if err := channel.Send(ctx, response); err != nil {
		g.trace(response, "deliver_reply", "error", err.Error())
		return fmt.Errorf("send reply: %w", err)
	}
	g.trace(response, "deliver_reply", "ok", DetailJSON(map[string]string{
		"session_id":    response.SessionID,
		"content_bytes": strconv.Itoa(len(response.Content)),
	}))
	return nil
}

func (g *DefaultGateway) sendErrorReply(ctx context.Context, msg types.Message, reason string) error {
	channel, exists := g.channelByID(msg.ChannelID)
	if !exists {
		return fmt.Errorf("channel not found for reply: %s", msg.ChannelID)
	}
	response := types.Message{
		ID:        "resp-" + msg.ID,
		Content:   reason,
		Role:      types.MessageRoleAssistant,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		SessionID: msg.SessionID,
		RequestID: msg.RequestID,
		Meta:      map[string]interface{}{"error": reason},
	}
	normalizeReply(&response, msg)
	if err := channel.Send(ctx, response); err != nil {
		g.trace(response, "deliver_error_reply", "error", err.Error())
		return err
	}
	g.trace(response, "deliver_error_reply", "ok", "")
	return nil
}

func (g *DefaultGateway) trace(msg types.Message, event, status, detail string) {
	g.mu.RLock()
	tracer := g.tracer
	g.mu.RUnlock()
	if tracer == nil {
		return
	}

	traceEvent := TraceEvent{
		RequestID: strings.TrimSpace(msg.RequestID),
		MessageID: strings.TrimSpace(msg.ID),
		ChannelID: strings.TrimSpace(msg.ChannelID),
		UserID:    strings.TrimSpace(msg.UserID),
		SessionID: strings.TrimSpace(msg.SessionID),
		Event:     strings.TrimSpace(event),
		Status:    strings.TrimSpace(status),
		Detail:    strings.TrimSpace(detail),
	}
	if traceEvent.Event == "" {
		traceEvent.Event = "unknown"
	}
	if traceEvent.Status == "" {
		traceEvent.Status = "ok"
	}
	if err := tracer.Record(traceEvent); err != nil {
		logger.Warn("[Gateway] Trace write failed: %v", err)
	}
}

func normalizeReply(response *types.Message, request types.Message) {
	if response.ID == "" {
		response.ID = "resp-" + request.ID
	}
	if response.ChannelID == "" {
		response.ChannelID = request.ChannelID
	}
	if response.Role == "" {
		response.Role = types.MessageRoleAssistant
	}
	if response.UserID == "" {
		response.UserID = request.UserID
	}
	if response.SessionID == "" {
		response.SessionID = request.SessionID
	}
	if response.RequestID == "" {
		response.RequestID = request.RequestID
	}
	if response.Meta == nil {
		response.Meta = map[string]interface{}{}
	}
	for k, v := range request.Meta {
		if _, exists := response.Meta[k]; !exists {
			response.Meta[k] = v
		}
	}
}

func (g *DefaultGateway) channelByID(channelID string) (types.Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	channel, exists := g.channels[channelID]
	return channel, exists
}

func (g *DefaultGateway) HealthStatus() HealthStatus {
	g.mu.RLock()
	channels := make([]string, 0, len(g.channels))
	for id := range g.channels {
		channels = append(channels, id)
	}
	agentName := ""
	if g.agent != nil {
		agentName = g.agent.Name()
	}
	g.mu.RUnlock()
	sort.Strings(channels)

	status := HealthStatus{
		RegisteredChannels: channels,
		AgentName:          agentName,
		ProcessedMessages:  atomic.LoadUint64(&g.processedMessages),
	}

	if started := g.startedUnix.Load(); started > 0 {
		status.Started = true
		status.StartedAt = time.Unix(started, 0).UTC()
	}
	if last := g.lastMessageUnix.Load(); last > 0 {
		status.LastMessageAt = time.Unix(last, 0).UTC()
	}
	return status
}

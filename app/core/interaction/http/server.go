package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"taskpilot/app/core/agent"
	"taskpilot/app/core/orchestrator/task"
	"taskpilot/app/core/service"
	"taskpilot/app/pkg/logger"
	"taskpilot/app/pkg/types"
)

const defaultResponseTimeout = 60 * time.Second

// HTTPChannel serves the chat endpoint through the gateway and the task CRUD
// endpoints directly against the store. Chat requests are matched to their
// replies by request id.
type HTTPChannel struct {
	id              string
	port            int
	store           *task.Store
	server          *http.Server
	handler         func(types.Message)
	responseTimeout time.Duration
	shutdownTimeout time.Duration

	pendingMu   sync.Mutex
	pending     map[string]chan types.Message
	counter     uint64
	startedUnix atomic.Int64
}

func NewHTTPChannel(port int, store *task.Store) *HTTPChannel {
	return &HTTPChannel{
		id:              "http",
		port:            port,
		store:           store,
		pending:         map[string]chan types.Message{},
		responseTimeout: defaultResponseTimeout,
		shutdownTimeout: 5 * time.Second,
	}
}

func (c *HTTPChannel) ID() string {
	return c.id
}

func (c *HTTPChannel) SetResponseTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	c.responseTimeout = timeout
}

func (c *HTTPChannel) Start(ctx context.Context, handler func(types.Message)) error {
	c.handler = handler
	c.startedUnix.Store(time.Now().Unix())

	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", c.port),
		Handler: c.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("[HTTP] Shutdown error: %v", err)
		}
	}()

	logger.Info("[HTTP] Listening on port %d...", c.port)
	if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Routes builds the handler tree. Exposed separately so tests can drive it
// without binding a port.
func (c *HTTPChannel) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", c.handleChat)
	mux.HandleFunc("/tasks", c.handleTasks)
	mux.HandleFunc("/tasks/", c.handleTaskByID)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/", http.FileServer(http.Dir("web/static")))
	return mux
}

func (c *HTTPChannel) Send(ctx context.Context, msg types.Message) error {
	if strings.TrimSpace(msg.RequestID) == "" {
		logger.Warn("[HTTP] Outgoing message without request id: %s", msg.Content)
		return nil
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[msg.RequestID]
	c.pendingMu.Unlock()
	if !ok {
		logger.Warn("[HTTP] Pending request not found: %s", msg.RequestID)
		return nil
	}

	select {
	case ch <- msg:
	default:
	}
	return nil
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

type updateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

type taskListResponse struct {
	Tasks []task.Task `json:"tasks"`
}

func (c *HTTPChannel) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return
	}
	defer r.Body.Close()

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if c.handler == nil {
		writeError(w, http.StatusServiceUnavailable, "handler not ready")
		return
	}

	msg, respCh := c.prepareMessage(req)
	defer c.removePendingRequest(msg.RequestID)

	c.handler(msg)

	select {
	case response := <-respCh:
		if reason, _ := response.Meta["error"].(string); reason != "" {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: reason})
			return
		}
		out, ok := response.Meta[service.MetaServiceOutput].(agent.ServiceOutput)
		if !ok {
			out = agent.ServiceOutput{ChatResponse: response.Content}
		}
		writeJSON(w, http.StatusOK, out)
	case <-time.After(c.responseTimeout):
		writeError(w, http.StatusGatewayTimeout, "request timeout")
	}
}

func (c *HTTPChannel) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := c.store.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if items == nil {
			items = []task.Task{}
		}
		writeJSON(w, http.StatusOK, taskListResponse{Tasks: items})
	case http.MethodPost:
		var req createTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		params := task.CreateParams{
			Title:       req.Title,
			Description: req.Description,
		}
		due, ok := parseDueDate(w, req.DueDate)
		if !ok {
			return
		}
		params.DueDate = due

		created, err := c.store.Insert(r.Context(), params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (c *HTTPChannel) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	id, action, ok := parseTaskPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	switch action {
	case "":
		c.dispatchTaskMethod(w, r, id)
	case "complete":
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		completed, err := c.store.Complete(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, completed)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (c *HTTPChannel) dispatchTaskMethod(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		item, err := c.store.Get(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		var req updateTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		params := task.UpdateParams{
			Title:       req.Title,
			Description: req.Description,
			Completed:   req.Completed,
		}
		if req.DueDate != nil {
			due, ok := parseDueDate(w, req.DueDate)
			if !ok {
				return
			}
			params.DueDate = due
		}

		updated, err := c.store.Update(r.Context(), id, params)
		if err != nil {
			if errors.Is(err, task.ErrNoFields) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := c.store.Delete(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (c *HTTPChannel) prepareMessage(req chatRequest) (types.Message, chan types.Message) {
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "local_user"
	}

	requestID := c.newID("req")
	respCh := make(chan types.Message, 1)
	c.pendingMu.Lock()
	c.pending[requestID] = respCh
	c.pendingMu.Unlock()

	msg := types.Message{
		ID:        c.newID("http"),
		Content:   req.Message,
		Role:      types.MessageRoleUser,
		ChannelID: c.id,
		UserID:    req.UserID,
		SessionID: strings.TrimSpace(req.SessionID),
		RequestID: requestID,
		Meta: map[string]interface{}{
			"user_id": req.UserID,
		},
	}
	return msg, respCh
}

func (c *HTTPChannel) removePendingRequest(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

func parseTaskPath(path string) (id int64, action string, ok bool) {
	tail := strings.Trim(strings.TrimPrefix(path, "/tasks/"), "/")
	if tail == "" {
		return 0, "", false
	}
	parts := strings.Split(tail, "/")
	if len(parts) > 2 {
		return 0, "", false
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	if len(parts) == 2 {
		return id, parts[1], true
	}
	return id, "", true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return false
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, target); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func parseDueDate(w http.ResponseWriter, raw *string) (*time.Time, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, true
	}
	due, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "due_date must be RFC 3339")
		return nil, false
	}
	return &due, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (c *HTTPChannel) newID(prefix string) string {
	seq := atomic.AddUint64(&c.counter, 1)
	return prefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatUint(seq, 10)
}

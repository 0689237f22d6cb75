// Package orchestrator exposes the conversation API. It routes each query to
// the right tenant's agent, streams the reasoning trace, and maintains
// session memory.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ocakhasan/askdata/pkg/agent"
	"github.com/ocakhasan/askdata/pkg/config"
	"github.com/ocakhasan/askdata/pkg/memory"
)

const (
	defaultTenantID  = "tenant_a"
	defaultSessionID = "default_user_session"
)

// Server is the conversation endpoint.
type Server struct {
	cfg      *config.Config
	registry *agent.Registry
	store    memory.Store
}

type chatRequest struct {
	Query     string `json:"query"`
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string          `json:"response"`
	Thoughts  []agent.Thought `json:"thoughts"`
	AgentUsed string          `json:"agent_used"`
}

// New creates the orchestrator over a tenant routing table, an agent
// registry, and a session store.
func New(cfg *config.Config, registry *agent.Registry, store memory.Store) *Server {
	if store == nil {
		store = memory.NoopStore{}
	}
	return &Server{cfg: cfg, registry: registry, store: store}
}

// Router builds the HTTP routing for the orchestrator.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	r.Post("/chat", s.handleChat)
	r.Post("/chat/stream", s.handleChatStream)
	r.Get("/health", s.handleHealth)

	return r
}

// ListenAndServe runs the orchestrator until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	slog.Info("orchestrator listening", "addr", addr, "tenants", len(s.cfg.Tenants))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// resolve validates the request and returns the tenant's agent. A tenant
// outside the routing table is rejected before any discovery or LLM work.
func (s *Server) resolve(ctx context.Context, req *chatRequest) (*agent.Agent, error) {
	if req.TenantID == "" {
		req.TenantID = defaultTenantID
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	endpoint, ok := s.cfg.Endpoint(req.TenantID)
	if !ok {
		return nil, fmt.Errorf("Error: Unknown tenant '%s'.", req.TenantID)
	}

	return s.registry.GetOrCreate(ctx, req.TenantID, endpoint), nil
}

// prompt loads session history and composes the full reasoning prompt.
// A failing memory store is logged and treated as empty history.
func (s *Server) prompt(ctx context.Context, req *chatRequest) string {
	history, err := s.store.History(ctx, req.SessionID)
	if err != nil {
		slog.Error("failed to load session history", "session", req.SessionID, "error", err)
		history = nil
	}
	return agent.BuildPrompt(req.TenantID, req.Query, history)
}

func (s *Server) remember(ctx context.Context, sessionID, query, answer string) {
	err := s.store.Append(ctx, sessionID,
		memory.Entry{Role: "User", Text: query},
		memory.Entry{Role: "AI", Text: answer},
	)
	if err != nil {
		slog.Error("failed to save session history", "session", sessionID, "error", err)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"response": "Error: invalid request body."})
		return
	}

	// The loop keeps running once started, client disconnects included.
	ctx := context.WithoutCancel(r.Context())

	tenantAgent, err := s.resolve(ctx, &req)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"response": err.Error()})
		return
	}

	slog.Info("chat query", "tenant", req.TenantID, "session", req.SessionID)

	resp := chatResponse{
		Thoughts:  []agent.Thought{},
		AgentUsed: fmt.Sprintf("Gemini Agent (%s)", req.TenantID),
	}

	result, err := tenantAgent.Run(ctx, s.prompt(ctx, &req), nil)
	if err != nil {
		slog.Error("reasoning failed", "tenant", req.TenantID, "error", err)
		resp.Response = fmt.Sprintf("Error communicating with the assistant: %s", err)
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Response = result.Response
	if len(result.Thoughts) > 0 {
		resp.Thoughts = result.Thoughts
	}
	s.remember(ctx, req.SessionID, req.Query, result.Response)

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"response": "Error: invalid request body."})
		return
	}

	ctx := context.WithoutCancel(r.Context())

	tenantAgent, err := s.resolve(ctx, &req)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"response": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	slog.Info("chat stream query", "tenant", req.TenantID, "session", req.SessionID)

	// Single producer, single consumer. The producer always ends the
	// stream by closing the channel, after guaranteeing one terminal
	// final or error event, so the consumer can never hang.
	events := make(chan agent.Event, 16)

	go func() {
		defer close(events)

		result, err := tenantAgent.Run(ctx, s.prompt(ctx, &req), func(e agent.Event) {
			events <- e
		})
		if err != nil {
			slog.Error("reasoning failed", "tenant", req.TenantID, "error", err)
			events <- agent.Event{Type: agent.EventError, Output: err.Error()}
			return
		}
		s.remember(ctx, req.SessionID, req.Query, result.Response)
	}()

	for event := range events {
		sendSSEEvent(w, flusher, event)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "Central Orchestrator",
	})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event agent.Event) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		slog.Debug("request", "request_id", requestID, "method", r.Method, "path", r.URL.Path)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

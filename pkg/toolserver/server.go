// Package toolserver exposes one tenant's data tools over JSON-RPC 2.0.
//
// The server holds no language understanding. The model decides which tool
// to call and with what arguments; the server just executes the call against
// the tenant's database and document index.
package toolserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ocakhasan/askdata/pkg/docindex"
	"github.com/ocakhasan/askdata/pkg/jsonrpc"
)

// Server serves the tool protocol for a single tenant.
type Server struct {
	serviceName string
	db          *sql.DB
	index       *docindex.Index
	descriptors []Descriptor
	handlers    map[string]Handler
}

// New creates a tool server over the given database and document index.
// A nil index is allowed; search tools then report "not initialized".
func New(serviceName string, db *sql.DB, index *docindex.Index) *Server {
	s := &Server{
		serviceName: serviceName,
		db:          db,
		index:       index,
		descriptors: descriptors(),
	}
	s.handlers = map[string]Handler{
		"execute_sql":          s.executeSQL,
		"get_database_schema":  s.getDatabaseSchema,
		"search_support_docs":  s.searchSupportDocs,
		"search_release_notes": s.searchReleaseNotes,
	}
	return s
}

// Open creates a server backed by the sqlite database at dbPath.
func Open(serviceName, dbPath string, index *docindex.Index) (*Server, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(serviceName, db, index), nil
}

// Router builds the HTTP routing for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	r.Post("/rpc", s.handleRPC)
	r.Get("/health", s.handleHealth)

	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	slog.Info("tool server listening", "service", s.serviceName, "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest,
			jsonrpc.NewErrorResponse(nil, jsonrpc.ParseError, "Parse error"))
		return
	}

	if req.JSONRPC != jsonrpc.Version {
		respondJSON(w, http.StatusBadRequest,
			jsonrpc.NewErrorResponse(req.ID, jsonrpc.InvalidRequest, "Invalid Request: missing jsonrpc version"))
		return
	}

	switch req.Method {
	case "tools/list":
		respondJSON(w, http.StatusOK, jsonrpc.NewResponse(req.ID, map[string]interface{}{
			"tools": s.descriptors,
		}))

	case "tools/call":
		var params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				respondJSON(w, http.StatusBadRequest,
					jsonrpc.NewErrorResponse(req.ID, jsonrpc.InvalidParams, "Invalid params"))
				return
			}
		}

		handler, ok := s.handlers[params.Name]
		if !ok {
			respondJSON(w, http.StatusNotFound,
				jsonrpc.NewErrorResponse(req.ID, jsonrpc.MethodNotFound,
					fmt.Sprintf("Tool not found: %s", params.Name)))
			return
		}

		result := s.invoke(r.Context(), params.Name, handler, params.Arguments)
		respondJSON(w, http.StatusOK, jsonrpc.NewResponse(req.ID, result))

	default:
		respondJSON(w, http.StatusNotFound,
			jsonrpc.NewErrorResponse(req.ID, jsonrpc.MethodNotFound,
				fmt.Sprintf("Method not found: %s", req.Method)))
	}
}

// invoke runs a handler with panic containment so one bad tool call cannot
// take the server down.
func (s *Server) invoke(ctx context.Context, name string, handler Handler, args map[string]interface{}) (result map[string]interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool handler panicked", "tool", name, "panic", rec)
			result = map[string]interface{}{
				"success": false,
				"error":   fmt.Sprintf("internal error: %v", rec),
			}
		}
	}()

	return handler(ctx, args)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.serviceName,
	})
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
		slog.Debug("request", "method", r.Method, "path", r.URL.Path)
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

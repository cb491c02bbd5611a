// Package server exposes the docpilot HTTP API: documentation ingestion,
// session status, and session-scoped chat.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"docpilot/internal/history"
	"docpilot/internal/session"
	"docpilot/internal/store"
	"docpilot/internal/workflow"
)

// Server is the docpilot HTTP API.
type Server struct {
	manager      *session.Manager
	orchestrator *workflow.Orchestrator
	history      history.Store
	store        store.FragmentStore
	logger       *zap.Logger

	httpServer *http.Server
}

// New builds the server and its routes.
func New(addr string, manager *session.Manager, orchestrator *workflow.Orchestrator, hist history.Store, fragments store.FragmentStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager:      manager,
		orchestrator: orchestrator,
		history:      hist,
		store:        fragments,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/process-documentation", s.handleProcessDocumentation)
	mux.HandleFunc("GET /api/v1/processing-status/{id}", s.handleProcessingStatus)
	mux.HandleFunc("POST /api/v1/chat/{id}", s.handleChat)
	mux.HandleFunc("GET /api/v1/chat-history/{id}", s.handleChatHistory)
	mux.HandleFunc("GET /api/v1/chat-analytics/{id}", s.handleChatAnalytics)
	mux.HandleFunc("GET /api/v1/documentation-info/{id}", s.handleDocumentationInfo)
	mux.HandleFunc("DELETE /api/v1/chat/{id}", s.handleDeleteChat)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// logRequests is the access-log middleware.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// =============================================================================
// HANDLERS
// =============================================================================

type processRequest struct {
	URLs []string `json:"urls"`
}

type chatRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcessDocumentation(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	id, err := s.manager.StartIngestion(req.URLs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := s.manager.Status(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleProcessingStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := s.manager.Ready(sessionID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	result, err := s.orchestrator.Ask(r.Context(), sessionID, req.UserID, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
	}

	turns, err := s.history.List(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
	})
}

func (s *Server) handleChatAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.history.Analytics(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleDocumentationInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	snap, err := s.manager.Status(sessionID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	info, err := s.store.Info(r.Context(), sessionID)
	if err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":        snap,
		"fragment_count": info.FragmentCount,
	})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if err := s.history.Delete(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "cleared"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

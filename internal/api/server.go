// Package api is the HTTP surface around the sync engine: health, stats,
// the external revalidation hook, metrics, and the websocket endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"boardsync/internal/metrics"
	"boardsync/internal/registry"
	"boardsync/internal/websocket"
	"boardsync/pkg/interfaces"
)

type Server struct {
	router   chi.Router
	registry *registry.Registry
	store    interfaces.BoardStore
	log      *zap.Logger
}

func NewServer(reg *registry.Registry, store interfaces.BoardStore, ws *websocket.Handler, log *zap.Logger) *Server {
	s := &Server{
		registry: reg,
		store:    store,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Post("/api/revalidate", s.handleRevalidate)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", ws.HandleWebSocket)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Stats())
}

// handleRevalidate is the hook external systems call when a role changes, a
// board is made private, or team membership shifts. Every live session on
// the affected board (or of the affected user) is re-checked against the
// directory and force-closed with an access-revoked status when it no
// longer qualifies.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BoardID string `json:"boardId"`
		UserID  string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.BoardID == "" && req.UserID == "") {
		http.Error(w, "boardId or userId required", http.StatusBadRequest)
		return
	}
	if req.BoardID != "" {
		s.registry.RevalidateBoard(r.Context(), req.BoardID)
	}
	if req.UserID != "" {
		s.registry.RevalidateUser(r.Context(), req.UserID)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}

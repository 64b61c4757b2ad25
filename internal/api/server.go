// Package api exposes the research engine over HTTP: creating and
// starting research tasks, and the snapshot read path viewers poll.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"ferret/internal/research"
	"ferret/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	store   *store.Store
	gateway *research.Gateway
	pool    *research.Pool
	mux     *http.ServeMux
}

// New creates a new Server.
func New(s *store.Store, gateway *research.Gateway, pool *research.Pool) *Server {
	srv := &Server{
		store:   s,
		gateway: gateway,
		pool:    pool,
		mux:     http.NewServeMux(),
	}
	srv.routes()
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/chats", s.handleChatCreate)

	s.mux.HandleFunc("POST /api/research", s.handleResearchCreate)
	s.mux.HandleFunc("GET /api/research", s.handleResearchGet)
	s.mux.HandleFunc("GET /api/research/chat/{chatId}", s.handleResearchByChat)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

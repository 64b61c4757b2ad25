package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ferret/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChatCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chat, err := s.store.CreateChat(req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

// handleResearchCreate creates a research request and starts its
// pipeline in the background. The response returns immediately;
// progress is observed through the snapshot read path.
func (s *Server) handleResearchCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chatId"`
		UserID string `json:"userId"`
		Query  string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ChatID == "" || req.UserID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "chatId, userId and query are required")
		return
	}

	rec, err := s.store.CreateResearch(req.ChatID, req.UserID, req.Query)
	if err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Detached from the request context: the pipeline outlives the
	// HTTP request that created it.
	s.pool.Start(context.Background(), rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleResearchGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing research id")
		return
	}

	snap, err := s.gateway.Snapshot(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]any{"research": nil})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResearchByChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatId")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "missing chat id")
		return
	}

	snaps, err := s.gateway.SnapshotsByChat(chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"research": snaps})
}

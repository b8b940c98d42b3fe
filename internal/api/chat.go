package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dkoval/workshop-labs/internal/chat"
	"github.com/dkoval/workshop-labs/internal/identity"
	"github.com/go-chi/chi/v5"
)

// ChatHandler handles the AI assist endpoints.
type ChatHandler struct {
	*Handler
	seq *chat.Sequencer
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler, seq *chat.Sequencer) *ChatHandler {
	return &ChatHandler{Handler: base, seq: seq}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/credential", h.SetCredential)
		r.Get("/{section}", h.GetTranscript)
		r.Post("/{section}", h.PostMessage)
	})
}

// SetCredential stores the participant-supplied API key for this session.
// The key stays in memory only; it is never persisted or logged.
func (h *ChatHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	var req struct {
		APIKey string `json:"api_key"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.seq.SetCredential(sessionID, req.APIKey); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("Chat credential set", "session_id", sessionID)
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetTranscript returns the section's conversation so far, including the
// scripted opening prompt.
func (h *ChatHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionFromRequest(r)
	if !ok {
		Error(w, http.StatusNotFound, "unknown section")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	transcript, left, err := h.seq.Transcript(sessionID, section)
	if err != nil {
		Error(w, http.StatusNotFound, "no chat script for section")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"section":         section,
		"messages":        transcript,
		"follow_ups_left": left,
		"has_credential":  h.seq.HasCredential(sessionID),
	})
}

// PostMessage handles one user reply: the assistant answers it and, while
// any remain, asks the next scripted follow-up. Extracted field values are
// fed straight into the section's auto-save state.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionFromRequest(r)
	if !ok {
		Error(w, http.StatusNotFound, "unknown section")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	var req struct {
		Message string `json:"message"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	turn, err := h.seq.Reply(r.Context(), sessionID, section, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNoCredential):
			Error(w, http.StatusServiceUnavailable, "AI assist needs an API key. Add one in settings to continue.")
		case errors.Is(err, chat.ErrUnknownSection):
			Error(w, http.StatusNotFound, "no chat script for section")
		default:
			slog.Error("Chat reply failed", "error", err, "session_id", sessionID, "section", section)
			Error(w, http.StatusBadGateway, "The assistant is unavailable right now. Your answers are kept; try again shortly.")
		}
		return
	}

	// Report extracted values to the hosting form's auto-save state.
	if len(turn.Extracted) > 0 {
		h.saves.Saver(r.Context(), sessionID, section).SetFields(turn.Extracted)
	}

	JSON(w, http.StatusOK, turn)
}

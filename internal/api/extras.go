package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/identity"
	"github.com/go-chi/chi/v5"
)

// ExtrasHandler handles the auxiliary tables: notes, recordings, and cached
// reports.
type ExtrasHandler struct {
	*Handler
}

// NewExtrasHandler creates a new extras handler.
func NewExtrasHandler(base *Handler) *ExtrasHandler {
	return &ExtrasHandler{Handler: base}
}

// RegisterRoutes registers the auxiliary routes.
func (h *ExtrasHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.AddNote)
		r.Get("/recordings", h.ListRecordings)
		r.Post("/recordings", h.AddRecording)
		r.Get("/reports/{kind}", h.GetReport)
		r.Put("/reports/{kind}", h.PutReport)
	})
}

// AddNote appends a free-form note to a section.
func (h *ExtrasHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	var req struct {
		Section string `json:"section"`
		Body    string `json:"body"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidSection(req.Section) {
		Error(w, http.StatusBadRequest, "unknown section")
		return
	}
	if req.Body == "" {
		Error(w, http.StatusBadRequest, "note body cannot be empty")
		return
	}

	note := &domain.Note{
		SessionID:   sessionID,
		SectionName: domain.Section(req.Section),
		Body:        req.Body,
		CreatedAt:   time.Now(),
	}
	id, err := h.repo.AddNote(r.Context(), note)
	if err != nil {
		slog.Error("Failed to add note", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to save note")
		return
	}
	note.ID = id

	JSON(w, http.StatusCreated, note)
}

// ListNotes returns all notes for the session.
func (h *ExtrasHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	notes, err := h.repo.ListNotes(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to list notes", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load notes")
		return
	}
	if notes == nil {
		notes = []*domain.Note{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

// AddRecording registers an uploaded recording reference.
func (h *ExtrasHandler) AddRecording(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	var req struct {
		Section     string `json:"section"`
		URL         string `json:"url"`
		DurationSec int    `json:"duration_sec"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidSection(req.Section) {
		Error(w, http.StatusBadRequest, "unknown section")
		return
	}
	if req.URL == "" {
		Error(w, http.StatusBadRequest, "recording url cannot be empty")
		return
	}

	rec := &domain.Recording{
		SessionID:   sessionID,
		SectionName: domain.Section(req.Section),
		URL:         req.URL,
		DurationSec: req.DurationSec,
		CreatedAt:   time.Now(),
	}
	id, err := h.repo.AddRecording(r.Context(), rec)
	if err != nil {
		slog.Error("Failed to add recording", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to save recording")
		return
	}
	rec.ID = id

	JSON(w, http.StatusCreated, rec)
}

// ListRecordings returns all recordings for the session.
func (h *ExtrasHandler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	recordings, err := h.repo.ListRecordings(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to list recordings", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load recordings")
		return
	}
	if recordings == nil {
		recordings = []*domain.Recording{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"recordings": recordings})
}

// GetReport returns a cached report, or 404 when none was generated yet.
func (h *ExtrasHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	kind := chi.URLParam(r, "kind")

	report, err := h.repo.GetCachedReport(r.Context(), sessionID, kind)
	if err != nil {
		slog.Error("Failed to load report", "error", err, "session_id", sessionID, "kind", kind)
		Error(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		Error(w, http.StatusNotFound, "report not generated")
		return
	}
	JSON(w, http.StatusOK, report)
}

// PutReport stores or replaces a cached report body.
func (h *ExtrasHandler) PutReport(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	kind := chi.URLParam(r, "kind")

	var req struct {
		Body string `json:"body"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		Error(w, http.StatusBadRequest, "report body cannot be empty")
		return
	}

	report := &domain.CachedReport{
		SessionID:   sessionID,
		ReportKind:  kind,
		Body:        req.Body,
		GeneratedAt: time.Now(),
	}
	if err := h.repo.PutCachedReport(r.Context(), report); err != nil {
		slog.Error("Failed to cache report", "error", err, "session_id", sessionID, "kind", kind)
		Error(w, http.StatusInternalServerError, "failed to cache report")
		return
	}
	JSON(w, http.StatusOK, report)
}

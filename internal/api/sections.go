package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dkoval/workshop-labs/internal/autosave"
	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/identity"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize caps form payloads (1MB).
const maxRequestBodySize = 1 << 20

// SectionHandler handles section form endpoints.
type SectionHandler struct {
	*Handler
	aiEnabled bool
}

// NewSectionHandler creates a new section handler.
func NewSectionHandler(base *Handler, aiEnabled bool) *SectionHandler {
	return &SectionHandler{Handler: base, aiEnabled: aiEnabled}
}

// RegisterRoutes registers section routes.
func (h *SectionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/sections", h.ListSections)
		r.Get("/sections/{section}", h.GetSection)
		r.Put("/sections/{section}", h.PutSection)
		r.Get("/sections/{section}/status", h.GetSectionStatus)
	})
}

// sectionFromRequest resolves and validates the {section} path parameter.
func sectionFromRequest(r *http.Request) (domain.Section, bool) {
	name := chi.URLParam(r, "section")
	if !domain.ValidSection(name) {
		return "", false
	}
	return domain.Section(name), true
}

// GetConfig returns the runtime configuration object for the frontend.
func (h *SectionHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"backend_url":     h.cfg.FrontendURL,
		"publishable_key": h.cfg.PublishableKey,
		"ai_enabled":      h.aiEnabled,
	})
}

// ListSections returns all sections in order with completion state.
func (h *SectionHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	records, err := h.repo.ListSectionRecords(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to list section records", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load sections")
		return
	}
	byName := make(map[domain.Section]*domain.SectionRecord, len(records))
	for _, rec := range records {
		byName[rec.SectionName] = rec
	}

	type sectionInfo struct {
		Section  domain.Section `json:"section"`
		Fields   []string       `json:"fields"`
		Started  bool           `json:"started"`
		Complete bool           `json:"complete"`
	}
	out := make([]sectionInfo, 0, len(domain.Sections()))
	for _, section := range domain.Sections() {
		info := sectionInfo{Section: section, Fields: section.Fields()}
		if rec, ok := byName[section]; ok {
			info.Started = true
			info.Complete = rec.Complete()
		}
		out = append(out, info)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"sections": out})
}

// GetSection returns the stored form state for one section. A session with
// no record gets empty fields, not an error.
func (h *SectionHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionFromRequest(r)
	if !ok {
		Error(w, http.StatusNotFound, "unknown section")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	saver := h.saves.Saver(r.Context(), sessionID, section)
	status, statusMsg := saver.Status()

	JSON(w, http.StatusOK, map[string]interface{}{
		"section":        section,
		"fields":         saver.Fields(),
		"validation":     saver.ValidateNow(),
		"persisted":      saver.Persisted(),
		"status":         status,
		"status_message": statusMsg,
	})
}

// putSectionRequest is the PUT /api/sections/{section} payload.
type putSectionRequest struct {
	Fields map[string]string `json:"fields"`
}

// PutSection merges field edits into the auto-save engine. The save itself
// happens after the debounce interval unless ?flush=1 forces it now.
func (h *SectionHandler) PutSection(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionFromRequest(r)
	if !ok {
		Error(w, http.StatusNotFound, "unknown section")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	var req putSectionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fields) == 0 {
		Error(w, http.StatusBadRequest, "no fields provided")
		return
	}

	saver := h.saves.Saver(r.Context(), sessionID, section)
	saver.SetFields(req.Fields)

	if r.URL.Query().Get("flush") == "1" {
		if err := saver.Flush(r.Context()); err != nil {
			slog.Error("Flush failed", "error", err, "session_id", sessionID, "section", section)
			// Field values are preserved in the saver; report degraded state.
		}
	}

	status, statusMsg := saver.Status()
	JSON(w, http.StatusOK, map[string]interface{}{
		"section":        section,
		"fields":         saver.Fields(),
		"validation":     saver.ValidateNow(),
		"status":         status,
		"status_message": statusMsg,
	})
}

// GetSectionStatus returns the transient save-status indicator.
func (h *SectionHandler) GetSectionStatus(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionFromRequest(r)
	if !ok {
		Error(w, http.StatusNotFound, "unknown section")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	saver := h.saves.Saver(r.Context(), sessionID, section)
	status, statusMsg := saver.Status()
	if status == "" {
		status = autosave.StatusIdle
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"section":        section,
		"status":         status,
		"status_message": statusMsg,
	})
}

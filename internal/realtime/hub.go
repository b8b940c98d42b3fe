// Package realtime streams section-record changes to subscribed clients over
// WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/dkoval/workshop-labs/internal/autosave"
	"github.com/dkoval/workshop-labs/internal/domain"
)

// writeTimeout bounds a single broadcast write so one stuck client cannot
// stall the hub.
const writeTimeout = 5 * time.Second

// ChangeEvent is one message on the change feed.
type ChangeEvent struct {
	Type      string            `json:"type"` // "record_changed" | "status"
	Section   domain.Section    `json:"section"`
	Fields    map[string]string `json:"fields,omitempty"`
	Status    autosave.Status   `json:"status,omitempty"`
	Message   string            `json:"message,omitempty"`
	UpdatedAt int64             `json:"updated_at,omitempty"`
}

// Hub tracks active change-feed connections per session and broadcasts
// events to them. It implements autosave.Notifier.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Register adds a connection for a session. Multiple tabs may subscribe.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.active[sessionID]; !ok {
		h.active[sessionID] = make(map[*websocket.Conn]struct{})
	}
	h.active[sessionID][conn] = struct{}{}
	slog.Info("Change feed subscribed", "session_id", sessionID)
}

// Unregister removes a connection for a session.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.active[sessionID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.active, sessionID)
		}
		slog.Info("Change feed unsubscribed", "session_id", sessionID)
	}
}

// CloseSession forcefully closes all feed connections for a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.active[sessionID] {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
	}
	delete(h.active, sessionID)
}

// Broadcast sends an event to every connection subscribed to the session.
func (h *Hub) Broadcast(sessionID string, event ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode change event", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.active[sessionID]))
	for conn := range h.active[sessionID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("Change feed write failed", "session_id", sessionID, "error", err)
		}
		cancel()
	}
}

// RecordSaved implements autosave.Notifier.
func (h *Hub) RecordSaved(sessionID string, rec *domain.SectionRecord) {
	h.Broadcast(sessionID, ChangeEvent{
		Type:      "record_changed",
		Section:   rec.SectionName,
		Fields:    rec.InputData,
		UpdatedAt: rec.UpdatedAt.Unix(),
	})
}

// StatusChanged implements autosave.Notifier.
func (h *Hub) StatusChanged(sessionID string, section domain.Section, status autosave.Status, message string) {
	h.Broadcast(sessionID, ChangeEvent{
		Type:    "status",
		Section: section,
		Status:  status,
		Message: message,
	})
}

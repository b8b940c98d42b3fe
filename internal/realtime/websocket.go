package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/dkoval/workshop-labs/internal/identity"
	"github.com/dkoval/workshop-labs/internal/store"
)

// WebSocketHandler upgrades change-feed subscriptions.
type WebSocketHandler struct {
	repo          store.Repository
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new change-feed handler.
func NewWebSocketHandler(repo store.Repository, hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		repo:          repo,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade. After the
// subscribe it replays the session's current records, then streams changes
// until the client disconnects.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("Change feed connection request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	h.hub.Register(sessionID, ws)
	defer h.hub.Unregister(sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.replay(ctx, ws, sessionID); err != nil {
		slog.Warn("Change feed replay failed", "session_id", sessionID, "error", err)
		return
	}

	h.readLoop(ctx, ws, sessionID)
	slog.Info("Change feed session ended", "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("Change feed origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// replay pushes the current state of every stored section so a reconnecting
// client starts from a consistent snapshot.
func (h *WebSocketHandler) replay(ctx context.Context, ws *websocket.Conn, sessionID string) error {
	records, err := h.repo.ListSectionRecords(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		event := ChangeEvent{
			Type:      "record_changed",
			Section:   rec.SectionName,
			Fields:    rec.InputData,
			UpdatedAt: rec.UpdatedAt.Unix(),
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
			return err
		}
	}
	return nil
}

// readLoop consumes client messages (pings only) until the connection drops.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Change feed closed by client", "session_id", sessionID)
			} else {
				slog.Debug("Change feed read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			if err := ws.Write(ctx, websocket.MessageText, pong); err != nil {
				slog.Debug("Failed to send pong", "error", err, "session_id", sessionID)
				return
			}
		}
	}
}

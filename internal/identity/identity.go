// Package identity establishes the per-participant workshop session.
//
// The browser keeps its session ID in localStorage and replays it on every
// request via the X-Workshop-Session-ID header; a cookie serves as fallback
// so plain navigations stay in the same session. IDs are client-generated
// UUIDs with no server-side expiry.
package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/store"
	"github.com/google/uuid"
)

const (
	SessionCookieName = "workshop_session_id"
	SessionHeaderName = "X-Workshop-Session-ID"
	sessionCookieAge  = 180 * 24 * time.Hour
)

type contextKey int

const sessionIDKey contextKey = iota

// SessionIDFromContext extracts the session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSessionID returns a context carrying the given session ID. Intended
// for tests and internal fan-out work.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func isValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func sessionIDFromRequest(r *http.Request) string {
	if sid := r.Header.Get(SessionHeaderName); isValidSessionID(sid) {
		return sid
	}
	if sid := r.URL.Query().Get("session_id"); isValidSessionID(sid) {
		return sid
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && isValidSessionID(c.Value) {
		return c.Value
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, sessionID string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		Expires:  time.Now().Add(sessionCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func ensureSession(ctx context.Context, repo store.Repository, sessionID string) error {
	session, err := repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	if session != nil {
		return repo.TouchSession(ctx, sessionID)
	}
	return repo.UpsertSession(ctx, &domain.Session{
		SessionID:  sessionID,
		CreatedAt:  now,
		LastSeenAt: now,
	})
}

// Middleware resolves (or mints) the workshop session ID and makes sure a
// session row exists before the request proceeds.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			setSessionCookie(w, sessionID, isDev)

			if err := ensureSession(r.Context(), repo, sessionID); err != nil {
				http.Error(w, `{"error":"failed to establish session"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}

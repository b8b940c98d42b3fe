package domain

import (
	"time"
)

// Session scopes one participant's workshop progress. The identifier is
// client-generated and has no server-side expiry.
type Session struct {
	SessionID  string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn in a section's assist conversation. Messages are
// transient: only fields derived from them are persisted, via SectionRecord.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
	Section Section  `json:"section"`
}

package domain

import (
	"time"
)

// Note is a free-form participant note attached to a section.
type Note struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	SectionName Section   `json:"section_name"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// Recording references an uploaded audio recording for a section.
type Recording struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	SectionName Section   `json:"section_name"`
	URL         string    `json:"url"`
	DurationSec int       `json:"duration_sec"`
	CreatedAt   time.Time `json:"created_at"`
}

// CachedReport is a generated workshop summary cached per session so repeat
// views don't regenerate it.
type CachedReport struct {
	SessionID   string    `json:"session_id"`
	ReportKind  string    `json:"report_kind"`
	Body        string    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}

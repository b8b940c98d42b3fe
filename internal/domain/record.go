package domain

import (
	"strings"
	"time"
)

// SectionRecord is the persisted form payload for one (session, section)
// pair. At most one record exists per pair; InputData is stored as a JSON
// object keyed by field name.
type SectionRecord struct {
	SessionID   string            `json:"session_id"`
	SectionName Section           `json:"section_name"`
	InputData   map[string]string `json:"input_data"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Empty reports whether every field value is blank. Empty records are never
// persisted.
func (r *SectionRecord) Empty() bool {
	for _, v := range r.InputData {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Field returns the value stored for a field, or "" when unset.
func (r *SectionRecord) Field(name string) string {
	if r.InputData == nil {
		return ""
	}
	return r.InputData[name]
}

// Complete reports whether all required fields for the record's section are
// filled in.
func (r *SectionRecord) Complete() bool {
	for _, f := range r.SectionName.RequiredFields() {
		if strings.TrimSpace(r.Field(f)) == "" {
			return false
		}
	}
	return true
}

// Package autosave persists section form state after input quiesces.
//
// Each (session, section) pair gets a Saver that mirrors the form component
// lifecycle: load existing state, absorb field edits, debounce, validate,
// persist with retry, surface a transient status indicator. Only the most
// recent debounce timer is honored; earlier pending saves are cancelled.
package autosave

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/retry"
	"github.com/dkoval/workshop-labs/internal/store"
)

// Status is the save-state indicator surfaced to the participant.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// saveTimeout bounds a single persist cycle, including retries.
const saveTimeout = 30 * time.Second

// Notifier receives save lifecycle events, typically for the realtime feed.
type Notifier interface {
	// RecordSaved fires after a record is successfully persisted.
	RecordSaved(sessionID string, rec *domain.SectionRecord)

	// StatusChanged fires on every save-status transition.
	StatusChanged(sessionID string, section domain.Section, status Status, message string)
}

// Saver owns the auto-save state machine for one (session, section) pair.
type Saver struct {
	sessionID string
	section   domain.Section
	repo      store.Repository
	notifier  Notifier

	debounce  time.Duration
	statusTTL time.Duration
	policy    retry.Policy

	mu          sync.Mutex
	fields      map[string]string
	exists      bool // a persisted record is known to exist
	createdAt   time.Time
	timer       *time.Timer // pending debounce handle, nil when none
	statusTimer *time.Timer
	status      Status
	statusMsg   string
	annotations map[string]string // field -> validation message
	closed      bool
}

// SetField merges a single field edit and restarts the debounce timer.
// Unknown fields are ignored so a stale client can't widen the schema.
func (s *Saver) SetField(name, value string) {
	s.SetFields(map[string]string{name: value})
}

// SetFields merges a batch of field edits and restarts the debounce timer.
func (s *Saver) SetFields(edits map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	changed := false
	for name, value := range edits {
		if !s.section.HasField(name) {
			slog.Warn("Ignoring unknown field", "section", s.section, "field", name)
			continue
		}
		if s.fields[name] != value {
			s.fields[name] = value
			changed = true
		}
	}
	if !changed {
		return
	}

	// Restart the debounce: the previous pending save is cancelled.
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.onDebounce)
}

// Fields returns a copy of the current field values.
func (s *Saver) Fields() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFields(s.fields)
}

// Persisted reports whether a record for this pair is known to exist.
func (s *Saver) Persisted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists
}

// Status returns the current save-status indicator and its message.
func (s *Saver) Status() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusMsg
}

// Annotations returns the validation messages from the most recent save
// attempt. Validation never blocks a save.
func (s *Saver) Annotations() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFields(s.annotations)
}

// ValidateNow reports required-field annotations for the current values
// without touching the save cycle.
func (s *Saver) ValidateNow() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return validate(s.section, s.fields)
}

// Flush cancels any pending debounce timer and persists immediately.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	return s.save(ctx)
}

// Close tears the saver down. Pending timers are cancelled and no state
// mutation happens afterwards; an already in-flight persist is not aborted.
func (s *Saver) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
}

// onDebounce fires when input has quiesced for the debounce interval.
func (s *Saver) onDebounce() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.save(ctx); err != nil {
		slog.Warn("Auto-save failed", "session_id", s.sessionID, "section", s.section, "error", err)
	}
}

// save runs validation and persists a snapshot of the current fields using
// the check-then-update-or-insert path. A save with every field empty is
// skipped entirely.
func (s *Saver) save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	snapshot := copyFields(s.fields)
	s.annotations = validate(s.section, snapshot)
	createdAt := s.createdAt
	s.mu.Unlock()

	if allEmpty(snapshot) {
		return nil
	}

	s.setStatus(StatusSaving, "")

	now := time.Now()
	if createdAt.IsZero() {
		createdAt = now
	}
	rec := &domain.SectionRecord{
		SessionID:   s.sessionID,
		SectionName: s.section,
		InputData:   snapshot,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}

	_, err := retry.Do(ctx, s.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.persist(ctx, rec)
	})
	if err != nil {
		s.setStatus(StatusError, "Could not save your changes. They are kept locally; keep editing to retry.")
		return err
	}

	s.mu.Lock()
	if !s.closed {
		s.exists = true
		s.createdAt = rec.CreatedAt
	}
	s.mu.Unlock()

	s.setStatus(StatusSaved, "Saved")
	if s.notifier != nil {
		s.notifier.RecordSaved(s.sessionID, rec)
	}
	return nil
}

// persist is one check-then-write attempt: look the record up, then update
// or insert. The window between check and write is accepted at this traffic
// scale; the unique constraint downgrades a lost race to a retryable error.
func (s *Saver) persist(ctx context.Context, rec *domain.SectionRecord) error {
	existing, err := s.repo.GetSectionRecord(ctx, rec.SessionID, rec.SectionName)
	if err != nil {
		return err
	}
	if existing == nil {
		err := s.repo.InsertSectionRecord(ctx, rec)
		if err == store.ErrRecordExists {
			// Lost the race to a concurrent insert; fall through to update.
			return s.repo.UpdateSectionRecord(ctx, rec)
		}
		return err
	}
	rec.CreatedAt = existing.CreatedAt
	return s.repo.UpdateSectionRecord(ctx, rec)
}

// setStatus transitions the indicator and schedules its self-clear. Closed
// savers never mutate.
func (s *Saver) setStatus(status Status, msg string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.statusMsg = msg

	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
	if status == StatusSaved || status == StatusError {
		s.statusTimer = time.AfterFunc(s.statusTTL, s.clearStatus)
	}
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.StatusChanged(s.sessionID, s.section, status, msg)
	}
}

func (s *Saver) clearStatus() {
	s.mu.Lock()
	if s.closed || s.status == StatusSaving {
		s.mu.Unlock()
		return
	}
	s.status = StatusIdle
	s.statusMsg = ""
	s.statusTimer = nil
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.StatusChanged(s.sessionID, s.section, StatusIdle, "")
	}
}

// validate checks required fields. Failures annotate; they never block.
func validate(section domain.Section, fields map[string]string) map[string]string {
	annotations := make(map[string]string)
	for _, f := range section.RequiredFields() {
		if strings.TrimSpace(fields[f]) == "" {
			annotations[f] = "This field is required."
		}
	}
	return annotations
}

func allEmpty(fields map[string]string) bool {
	for _, v := range fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func copyFields(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/retry"
	"github.com/dkoval/workshop-labs/internal/store"
)

// Config carries the tunables for every saver the manager creates.
type Config struct {
	Debounce  time.Duration
	StatusTTL time.Duration
	Retry     retry.Policy
}

// Manager hands out savers per (session, section) and owns their lifecycle.
type Manager struct {
	repo     store.Repository
	cfg      Config
	notifier Notifier

	mu     sync.Mutex
	savers map[string]*Saver // sessionID + ":" + section
}

// NewManager creates a saver manager backed by repo. notifier may be nil.
func NewManager(repo store.Repository, cfg Config, notifier Notifier) *Manager {
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 3 * time.Second
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Manager{
		repo:     repo,
		cfg:      cfg,
		notifier: notifier,
		savers:   make(map[string]*Saver),
	}
}

// Saver returns the saver for a (session, section) pair, creating and loading
// it on first access. A missing record means empty fields; any other load
// error is logged and the saver starts empty, keeping the form usable.
func (m *Manager) Saver(ctx context.Context, sessionID string, section domain.Section) *Saver {
	key := sessionID + ":" + string(section)

	m.mu.Lock()
	if s, ok := m.savers[key]; ok {
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	// Load outside the manager lock; a duplicate load is harmless.
	fields := make(map[string]string)
	var createdAt time.Time
	exists := false

	rec, err := m.repo.GetSectionRecord(ctx, sessionID, section)
	switch {
	case err != nil:
		slog.Warn("Failed to load section record, starting empty",
			"session_id", sessionID, "section", section, "error", err)
	case rec != nil:
		for k, v := range rec.InputData {
			fields[k] = v
		}
		createdAt = rec.CreatedAt
		exists = true
	}

	s := &Saver{
		sessionID: sessionID,
		section:   section,
		repo:      m.repo,
		notifier:  m.notifier,
		debounce:  m.cfg.Debounce,
		statusTTL: m.cfg.StatusTTL,
		policy:    m.cfg.Retry,
		fields:    fields,
		exists:    exists,
		createdAt: createdAt,
		status:    StatusIdle,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.savers[key]; ok {
		s.Close()
		return existing
	}
	m.savers[key] = s
	return s
}

// CloseSession tears down all savers belonging to a session.
func (m *Manager) CloseSession(sessionID string) {
	prefix := sessionID + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.savers {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			s.Close()
			delete(m.savers, key)
		}
	}
}

// Close tears down every saver.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.savers {
		s.Close()
		delete(m.savers, key)
	}
}

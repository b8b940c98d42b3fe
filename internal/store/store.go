// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/dkoval/workshop-labs/internal/domain"
)

// Repository defines the interface for persisting workshop sessions and
// section records.
//
// Lookup methods return (nil, nil) when no row exists; not-found is empty
// state, not an error.
type Repository interface {
	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpsertSession creates or refreshes a session record.
	UpsertSession(ctx context.Context, session *domain.Session) error

	// TouchSession updates the last_seen_at timestamp for a session.
	TouchSession(ctx context.Context, sessionID string) error

	// GetSectionRecord retrieves the record for a (session, section) pair.
	GetSectionRecord(ctx context.Context, sessionID string, section domain.Section) (*domain.SectionRecord, error)

	// ListSectionRecords retrieves all section records for a session, in
	// section presentation order.
	ListSectionRecords(ctx context.Context, sessionID string) ([]*domain.SectionRecord, error)

	// InsertSectionRecord creates a new section record. Fails if a record
	// already exists for the (session, section) pair.
	InsertSectionRecord(ctx context.Context, rec *domain.SectionRecord) error

	// UpdateSectionRecord overwrites the payload of an existing record.
	// updated_at never moves backwards.
	UpdateSectionRecord(ctx context.Context, rec *domain.SectionRecord) error

	// UpsertSectionRecord atomically inserts or updates a record.
	UpsertSectionRecord(ctx context.Context, rec *domain.SectionRecord) error

	// DeleteSectionRecord removes the record for a (session, section) pair.
	DeleteSectionRecord(ctx context.Context, sessionID string, section domain.Section) error

	// AddNote appends a note for a section and returns its assigned ID.
	AddNote(ctx context.Context, note *domain.Note) (int64, error)

	// ListNotes retrieves all notes for a session, oldest first.
	ListNotes(ctx context.Context, sessionID string) ([]*domain.Note, error)

	// AddRecording registers an uploaded recording and returns its ID.
	AddRecording(ctx context.Context, rec *domain.Recording) (int64, error)

	// ListRecordings retrieves all recordings for a session, oldest first.
	ListRecordings(ctx context.Context, sessionID string) ([]*domain.Recording, error)

	// GetCachedReport retrieves a cached report by (session, kind).
	GetCachedReport(ctx context.Context, sessionID, kind string) (*domain.CachedReport, error)

	// PutCachedReport stores or replaces a cached report.
	PutCachedReport(ctx context.Context, report *domain.CachedReport) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

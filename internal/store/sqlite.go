package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dkoval/workshop-labs/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrRecordExists is returned by InsertSectionRecord when a record for the
// (session, section) pair is already present.
var ErrRecordExists = errors.New("section record already exists")

// ErrRecordNotFound is returned by UpdateSectionRecord when no record exists
// to update.
var ErrRecordNotFound = errors.New("section record not found")

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_inputs (
		session_id TEXT NOT NULL,
		section_name TEXT NOT NULL,
		input_data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(session_id, section_name)
	);
	CREATE INDEX IF NOT EXISTS idx_user_inputs_session ON user_inputs(session_id);

	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		section_name TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_session ON notes(session_id);

	CREATE TABLE IF NOT EXISTS recordings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		section_name TEXT NOT NULL,
		url TEXT NOT NULL,
		duration_sec INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_session ON recordings(session_id);

	CREATE TABLE IF NOT EXISTS cached_reports (
		session_id TEXT NOT NULL,
		report_kind TEXT NOT NULL,
		body TEXT NOT NULL,
		generated_at INTEGER NOT NULL,
		UNIQUE(session_id, report_kind)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, created_at, last_seen_at FROM sessions WHERE session_id = ?`, sessionID)

	var session domain.Session
	var createdAt, lastSeen int64
	err := row.Scan(&session.SessionID, &createdAt, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.LastSeenAt = time.Unix(lastSeen, 0)
	return &session, nil
}

// UpsertSession creates or refreshes a session record.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (session_id, created_at, last_seen_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		last_seen_at = excluded.last_seen_at`

	_, err := s.db.ExecContext(ctx, query,
		session.SessionID, session.CreatedAt.Unix(), session.LastSeenAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// TouchSession updates the last_seen_at timestamp for a session.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = ? WHERE session_id = ?`,
		time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("TouchSession affected 0 rows", "session_id", sessionID)
	}
	return nil
}

func scanSectionRecord(scan func(dest ...any) error) (*domain.SectionRecord, error) {
	var rec domain.SectionRecord
	var inputJSON string
	var createdAt, updatedAt int64

	if err := scan(&rec.SessionID, &rec.SectionName, &inputJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(inputJSON), &rec.InputData); err != nil {
		return nil, fmt.Errorf("decode input_data: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// GetSectionRecord retrieves the record for a (session, section) pair.
func (s *SQLiteStore) GetSectionRecord(ctx context.Context, sessionID string, section domain.Section) (*domain.SectionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, section_name, input_data, created_at, updated_at
		FROM user_inputs WHERE session_id = ? AND section_name = ?`,
		sessionID, string(section))

	rec, err := scanSectionRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan section record: %w", err)
	}
	return rec, nil
}

// ListSectionRecords retrieves all section records for a session.
func (s *SQLiteStore) ListSectionRecords(ctx context.Context, sessionID string) ([]*domain.SectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, section_name, input_data, created_at, updated_at
		FROM user_inputs WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query section records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close section record rows", "error", closeErr)
		}
	}()

	bySection := make(map[domain.Section]*domain.SectionRecord)
	for rows.Next() {
		rec, err := scanSectionRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan section record row: %w", err)
		}
		bySection[rec.SectionName] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate section records: %w", err)
	}

	// Return in presentation order, skipping sections with no record.
	var records []*domain.SectionRecord
	for _, section := range domain.Sections() {
		if rec, ok := bySection[section]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func encodeInputData(rec *domain.SectionRecord) (string, error) {
	data := rec.InputData
	if data == nil {
		data = map[string]string{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode input_data: %w", err)
	}
	return string(encoded), nil
}

// InsertSectionRecord creates a new section record.
func (s *SQLiteStore) InsertSectionRecord(ctx context.Context, rec *domain.SectionRecord) error {
	inputJSON, err := encodeInputData(rec)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO user_inputs (session_id, section_name, input_data, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id, section_name) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		rec.SessionID, string(rec.SectionName), inputJSON,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert section record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecordExists
	}
	return nil
}

// UpdateSectionRecord overwrites the payload of an existing record.
// MAX() guards keep updated_at monotonically non-decreasing.
func (s *SQLiteStore) UpdateSectionRecord(ctx context.Context, rec *domain.SectionRecord) error {
	inputJSON, err := encodeInputData(rec)
	if err != nil {
		return err
	}

	query := `
	UPDATE user_inputs SET input_data = ?, updated_at = MAX(updated_at, ?)
	WHERE session_id = ? AND section_name = ?`

	result, err := s.db.ExecContext(ctx, query,
		inputJSON, rec.UpdatedAt.Unix(), rec.SessionID, string(rec.SectionName))
	if err != nil {
		return fmt.Errorf("update section record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// UpsertSectionRecord atomically inserts or updates a record.
func (s *SQLiteStore) UpsertSectionRecord(ctx context.Context, rec *domain.SectionRecord) error {
	inputJSON, err := encodeInputData(rec)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO user_inputs (session_id, section_name, input_data, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id, section_name) DO UPDATE SET
		input_data = excluded.input_data,
		updated_at = MAX(user_inputs.updated_at, excluded.updated_at)`

	_, err = s.db.ExecContext(ctx, query,
		rec.SessionID, string(rec.SectionName), inputJSON,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert section record: %w", err)
	}
	return nil
}

// DeleteSectionRecord removes the record for a (session, section) pair.
func (s *SQLiteStore) DeleteSectionRecord(ctx context.Context, sessionID string, section domain.Section) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_inputs WHERE session_id = ? AND section_name = ?`,
		sessionID, string(section))
	if err != nil {
		return fmt.Errorf("delete section record: %w", err)
	}
	return nil
}

// AddNote appends a note for a section.
func (s *SQLiteStore) AddNote(ctx context.Context, note *domain.Note) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (session_id, section_name, body, created_at)
		VALUES (?, ?, ?, ?)`,
		note.SessionID, string(note.SectionName), note.Body, note.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("note insert id: %w", err)
	}
	return id, nil
}

// ListNotes retrieves all notes for a session, oldest first.
func (s *SQLiteStore) ListNotes(ctx context.Context, sessionID string) ([]*domain.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, section_name, body, created_at
		FROM notes WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close note rows", "error", closeErr)
		}
	}()

	var notes []*domain.Note
	for rows.Next() {
		var note domain.Note
		var createdAt int64
		if err := rows.Scan(&note.ID, &note.SessionID, &note.SectionName, &note.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		note.CreatedAt = time.Unix(createdAt, 0)
		notes = append(notes, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// AddRecording registers an uploaded recording.
func (s *SQLiteStore) AddRecording(ctx context.Context, rec *domain.Recording) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (session_id, section_name, url, duration_sec, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, string(rec.SectionName), rec.URL, rec.DurationSec, rec.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert recording: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording insert id: %w", err)
	}
	return id, nil
}

// ListRecordings retrieves all recordings for a session, oldest first.
func (s *SQLiteStore) ListRecordings(ctx context.Context, sessionID string) ([]*domain.Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, section_name, url, duration_sec, created_at
		FROM recordings WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recording rows", "error", closeErr)
		}
	}()

	var recordings []*domain.Recording
	for rows.Next() {
		var rec domain.Recording
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.SectionName, &rec.URL, &rec.DurationSec, &createdAt); err != nil {
			return nil, fmt.Errorf("scan recording row: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		recordings = append(recordings, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recordings, nil
}

// GetCachedReport retrieves a cached report by (session, kind).
func (s *SQLiteStore) GetCachedReport(ctx context.Context, sessionID, kind string) (*domain.CachedReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, report_kind, body, generated_at
		FROM cached_reports WHERE session_id = ? AND report_kind = ?`,
		sessionID, kind)

	var report domain.CachedReport
	var generatedAt int64
	err := row.Scan(&report.SessionID, &report.ReportKind, &report.Body, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cached report: %w", err)
	}

	report.GeneratedAt = time.Unix(generatedAt, 0)
	return &report, nil
}

// PutCachedReport stores or replaces a cached report.
func (s *SQLiteStore) PutCachedReport(ctx context.Context, report *domain.CachedReport) error {
	query := `
	INSERT INTO cached_reports (session_id, report_kind, body, generated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id, report_kind) DO UPDATE SET
		body = excluded.body,
		generated_at = excluded.generated_at`

	_, err := s.db.ExecContext(ctx, query,
		report.SessionID, report.ReportKind, report.Body, report.GeneratedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert cached report: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

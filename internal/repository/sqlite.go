// Package repository provides SQLite-backed persistence for session records.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mhalvors/docchat/internal/domain"
)

// SQLiteRepository stores one row per session. The full session record
// (messages and archived progress events included) is serialized to a
// single JSON column, so each save is one atomic row write and a reader
// can never observe a half-written record.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the session database at the given DSN.
func NewSQLite(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at)`,
	}
	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// SaveSession upserts the full session record.
func (r *SQLiteRepository) SaveSession(ctx context.Context, session *domain.ChatSession) error {
	record, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.SessionID, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, record, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET record = excluded.record`,
		session.SessionID, string(record), session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	return nil
}

// DeleteSession removes the durable record for a session. Deleting an
// unknown session is not an error.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// LoadSessions reads every persisted session record. Records that fail
// to parse are logged and skipped rather than failing startup.
func (r *SQLiteRepository) LoadSessions(ctx context.Context) ([]*domain.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT session_id, record FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.ChatSession
	for rows.Next() {
		var sessionID, record string
		if err := rows.Scan(&sessionID, &record); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var session domain.ChatSession
		if err := json.Unmarshal([]byte(record), &session); err != nil {
			log.Printf("WARN: skipping unparseable session record %s: %v", sessionID, err)
			continue
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session rows: %w", err)
	}
	return sessions, nil
}

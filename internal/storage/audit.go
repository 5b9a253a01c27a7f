package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// AuditLog records every moderation action so a dispute over what was
// approved when can be settled after the fact. Submissions themselves live
// as files in the data directory, not here.
type AuditLog struct {
	db *sql.DB
}

// AuditEntry is one recorded moderation action.
type AuditEntry struct {
	ID           int64     `json:"id"`
	Action       string    `json:"action"`
	SubmissionID int64     `json:"submission_id,omitempty"`
	At           time.Time `json:"at"`
}

// OpenAudit opens (or creates) the audit database.
func OpenAudit(path string) (*AuditLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// WAL mode keeps moderation writes from blocking the listing endpoint.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS moderation_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		submission_id INTEGER NOT NULL,
		at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_moderation_submission ON moderation_log(submission_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	return &AuditLog{db: db}, nil
}

// Record appends one moderation action.
func (a *AuditLog) Record(action string, submissionID int64) error {
	_, err := a.db.Exec(
		`INSERT INTO moderation_log (action, submission_id, at) VALUES (?, ?, ?)`,
		action, submissionID, time.Now(),
	)
	return err
}

// Entries returns all recorded actions, most recent first. A row that
// fails to scan is skipped rather than failing the listing.
func (a *AuditLog) Entries() ([]AuditEntry, error) {
	rows, err := a.db.Query(
		`SELECT id, action, submission_id, at FROM moderation_log ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.SubmissionID, &e.At); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

// Package history keeps a local record of terminal file transfers in
// SQLite, one row per file outcome.
package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS transfers (
  id                 INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id         TEXT NOT NULL,
  file_id            TEXT NOT NULL,
  file_name          TEXT NOT NULL,
  size               INTEGER NOT NULL,
  direction          TEXT NOT NULL CHECK(direction IN ('send','receive')),
  peer_alias         TEXT NOT NULL,
  peer_fingerprint   TEXT NOT NULL,
  status             TEXT NOT NULL CHECK(status IN ('completed','failed','cancelled','rejected')),
  finished_at        INTEGER NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_transfers_finished_at
ON transfers (finished_at DESC);
`,
}

// Record is one terminal per-file outcome.
type Record struct {
	SessionId       string
	FileId          string
	FileName        string
	Size            int64
	Direction       string // "send" or "receive"
	PeerAlias       string
	PeerFingerprint string
	Status          string // "completed", "failed", "cancelled", "rejected"
	FinishedAt      time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database and applies migrations.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.enableWALMode(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) enableWALMode() error {
	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	return nil
}

func (s *Store) applyMigrations() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}

	return nil
}

// Add appends one terminal outcome.
func (s *Store) Add(rec Record) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	_, err := s.db.Exec(`
INSERT INTO transfers (session_id, file_id, file_name, size, direction, peer_alias, peer_fingerprint, status, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.SessionId, rec.FileId, rec.FileName, rec.Size, rec.Direction,
		rec.PeerAlias, rec.PeerFingerprint, rec.Status, rec.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert transfer record: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	rows, err := s.db.Query(`
SELECT session_id, file_id, file_name, size, direction, peer_alias, peer_fingerprint, status, finished_at
FROM transfers ORDER BY finished_at DESC, id DESC LIMIT ?;`, n)
	if err != nil {
		return nil, fmt.Errorf("query transfer records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var finishedAt int64
		if err := rows.Scan(&rec.SessionId, &rec.FileId, &rec.FileName, &rec.Size,
			&rec.Direction, &rec.PeerAlias, &rec.PeerFingerprint, &rec.Status, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan transfer record: %w", err)
		}
		rec.FinishedAt = time.Unix(finishedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GlobalBranch is the ledger branch of migrations written under
// tables/<table>/, which do not belong to any branch. Sanitized branch names
// never contain parentheses, so it cannot collide with a real branch.
const GlobalBranch = "(global)"

// MigrationRecord is one written migration pair.
type MigrationRecord struct {
	ID         int64     `json:"id"`
	Branch     string    `json:"branch"`
	Table      string    `json:"table"`
	Reason     string    `json:"reason"`
	UpPath     string    `json:"up_path"`
	DownPath   string    `json:"down_path"`
	CommitHash string    `json:"commit_hash,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// VCSEvent is one branch switch or commit seen by the git watcher.
type VCSEvent struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Branch     string    `json:"branch"`
	PrevBranch string    `json:"prev_branch,omitempty"`
	CommitHash string    `json:"commit_hash,omitempty"`
	Author     string    `json:"author,omitempty"`
	Message    string    `json:"message,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertMigration records a written migration pair and returns its ID.
func (s *Store) InsertMigration(r MigrationRecord) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO migration_events (branch, table_name, reason, up_path, down_path, commit_hash, run_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Branch, r.Table, r.Reason, r.UpPath, r.DownPath, r.CommitHash, r.RunID,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// QueryMigrations returns recorded migrations, newest first. An empty branch
// matches all branches and GlobalBranch matches only global migrations;
// limit <= 0 means no limit.
func (s *Store) QueryMigrations(branch string, limit int) ([]MigrationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, branch, table_name, reason, up_path, down_path, commit_hash, run_id, created_at
		 FROM migration_events
		 WHERE ? = '' OR branch = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		branch, branch, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMigrations(rows)
}

func scanMigrations(rows *sql.Rows) ([]MigrationRecord, error) {
	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var ts string
		if err := rows.Scan(&r.ID, &r.Branch, &r.Table, &r.Reason, &r.UpPath, &r.DownPath, &r.CommitHash, &r.RunID, &ts); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse migration timestamp %q: %w", ts, err)
		}
		r.CreatedAt = t
		records = append(records, r)
	}
	return records, rows.Err()
}

// InsertVCSEvent records a git event.
func (s *Store) InsertVCSEvent(e VCSEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO vcs_events (kind, branch, prev_branch, commit_hash, author, message, run_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.Branch, e.PrevBranch, e.CommitHash, e.Author, e.Message, e.RunID,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// QueryVCSEvents returns the most recent git events, newest first.
func (s *Store) QueryVCSEvents(limit int) ([]VCSEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, kind, branch, prev_branch, commit_hash, author, message, run_id, created_at
		 FROM vcs_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []VCSEvent
	for rows.Next() {
		var e VCSEvent
		var ts string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Branch, &e.PrevBranch, &e.CommitHash, &e.Author, &e.Message, &e.RunID, &ts); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", ts, err)
		}
		e.CreatedAt = t
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetDaemonState returns the value stored under key, or "" if unset.
func (s *Store) GetDaemonState(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM daemon_state WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetDaemonState upserts key.
func (s *Store) SetDaemonState(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO daemon_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

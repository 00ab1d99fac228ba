package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// schemaVersionKey is the daemon_state row holding the applied ledger version.
const schemaVersionKey = "schema_version"

// runMigrations brings the ledger from its recorded version up to
// schemaVersion, one transaction per step. daemon_state is created first
// because it stores the version itself.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS daemon_state (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create daemon_state: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("read ledger version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("ledger version %d is newer than this binary supports (%d)", current, schemaVersion)
	}

	for v := current + 1; v <= schemaVersion; v++ {
		stmt, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no ledger migration for version %d", v)
		}
		if err := applyMigration(db, v, stmt); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, version int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("ledger v%d: begin: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("ledger v%d: %w", version, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO daemon_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		schemaVersionKey, strconv.Itoa(version), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("ledger v%d: record version: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger v%d: commit: %w", version, err)
	}
	return nil
}

// currentVersion returns the applied ledger version, or 0 for a new file.
func currentVersion(db *sql.DB) (int, error) {
	var val string
	err := db.QueryRow(`SELECT value FROM daemon_state WHERE key = ?`, schemaVersionKey).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

package store

// schemaVersion is the current schema version. Increment when adding migrations.
const schemaVersion = 4

// migrations maps version numbers to SQL statements that bring the schema
// from (version-1) to (version). Version 1 is the initial schema.
var migrations = map[int]string{
	1: `
-- Every migration pair written to disk, branch-aware or global.
CREATE TABLE IF NOT EXISTS migration_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	branch      TEXT    NOT NULL,
	table_name  TEXT    NOT NULL,
	reason      TEXT    NOT NULL,
	up_path     TEXT    NOT NULL DEFAULT '',
	down_path   TEXT    NOT NULL DEFAULT '',
	created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_migration_events_branch ON migration_events(branch);
CREATE INDEX IF NOT EXISTS idx_migration_events_table ON migration_events(table_name);

-- Branch switches and new commits seen by the git watcher.
CREATE TABLE IF NOT EXISTS vcs_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT    NOT NULL,
	branch      TEXT    NOT NULL DEFAULT '',
	prev_branch TEXT    NOT NULL DEFAULT '',
	commit_hash TEXT    NOT NULL DEFAULT '',
	author      TEXT    NOT NULL DEFAULT '',
	message     TEXT    NOT NULL DEFAULT '',
	created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vcs_events_created ON vcs_events(created_at);

-- Key-value store for daemon metadata (schema version, last branch, etc).
CREATE TABLE IF NOT EXISTS daemon_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
`,

	2: `
-- HEAD commit at the time the migration was written.
ALTER TABLE migration_events ADD COLUMN commit_hash TEXT NOT NULL DEFAULT '';
`,

	3: `
-- Daemon run that wrote the row, so a restart's output can be told apart.
ALTER TABLE migration_events ADD COLUMN run_id TEXT NOT NULL DEFAULT '';
ALTER TABLE vcs_events ADD COLUMN run_id TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_migration_events_run ON migration_events(run_id);
`,

	4: `
-- Global migrations get their own label; '' is the all-branches filter.
UPDATE migration_events SET branch = '(global)' WHERE branch = '';
`,
}

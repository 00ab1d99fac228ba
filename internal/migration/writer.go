// Package migration persists reversible migration pairs and the per-table
// change history.
//
// Writes are best-effort and non-transactional: the up file is written
// before the down file, and a failure on the second write leaves the first
// in place. The error is reported to the caller, which logs it.
package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Reason tags why a migration pair was produced.
type Reason string

const (
	ReasonNewTable      Reason = "new_table"
	ReasonSchemaChanged Reason = "schema_changed"
	ReasonBranchDelta   Reason = "branch_delta"
)

// NewTableDown is written as the down script when a table is observed for
// the first time. The table name is intentionally the literal "table_name".
const NewTableDown = "-- Table did not exist previously\nDROP TABLE IF EXISTS table_name;\n"

// TimestampLayout is the YYYYMMDDHHMMSS prefix of migration file names.
const TimestampLayout = "20060102150405"

// Pair describes a written up/down migration.
type Pair struct {
	Table     string
	Reason    Reason
	Timestamp time.Time
	UpSQL     string
	DownSQL   string
	UpPath    string
	DownPath  string
}

// Writer writes migration pairs into a directory.
type Writer struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Annotate prefixes both files with a "-- reason: <reason>" line.
	Annotate bool
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// FileNames returns the up and down file names for table at ts.
func FileNames(ts time.Time, table string) (up, down string) {
	stamp := ts.Format(TimestampLayout)
	return fmt.Sprintf("%s_%s_up.sql", stamp, table), fmt.Sprintf("%s_%s_down.sql", stamp, table)
}

// Write persists upSQL and downSQL as a timestamped pair in dir, creating
// dir if needed. If the down write fails after the up write succeeded, the
// returned Pair still carries UpPath and the error is non-nil.
func (w *Writer) Write(dir, table, upSQL, downSQL string, reason Reason) (Pair, error) {
	ts := w.now()
	upName, downName := FileNames(ts, table)
	p := Pair{
		Table:     table,
		Reason:    reason,
		Timestamp: ts,
		UpSQL:     upSQL,
		DownSQL:   downSQL,
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return p, fmt.Errorf("create migration dir %s: %w", dir, err)
	}

	upPath := filepath.Join(dir, upName)
	if err := os.WriteFile(upPath, []byte(w.render(upSQL, reason)), 0644); err != nil {
		return p, fmt.Errorf("write up migration: %w", err)
	}
	p.UpPath = upPath

	downPath := filepath.Join(dir, downName)
	if err := os.WriteFile(downPath, []byte(w.render(downSQL, reason)), 0644); err != nil {
		return p, fmt.Errorf("write down migration (up file %s left in place): %w", upPath, err)
	}
	p.DownPath = downPath

	return p, nil
}

// WriteNewTable persists the full raw schema as the up script and the
// sentinel drop statement as the down script, tagged new_table.
func (w *Writer) WriteNewTable(dir, table, rawSchema string) (Pair, error) {
	return w.Write(dir, table, rawSchema, NewTableDown, ReasonNewTable)
}

func (w *Writer) render(sql string, reason Reason) string {
	if !w.Annotate {
		return sql
	}
	return fmt.Sprintf("-- reason: %s\n%s", reason, sql)
}

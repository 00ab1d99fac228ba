// Package baseline owns the durable schema baselines and decides, per
// branch and table, whether an observed schema is drift that needs a
// migration.
//
// Two baselines are maintained side by side under the output root:
//
//	tables/<table>/schema.sql                 branch-independent baseline
//	tables/<table>/history.txt                append-only change log
//	tables/<table>/migrations/<ts>_<table>_*  pairs for that baseline
//	dbtables/<main>/schemas/<table>.sql       authoritative main-branch baseline
//	dbtables/<main>.sql                       snapshot of the last main cycle
//	dbtables/<main>/.initialized              bootstrap marker
//	dbtables/<branch>/<ts>_<table>_*          branch migration pairs
package baseline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Layout resolves paths of the on-disk baseline tree.
type Layout struct {
	Root string
}

// TableDir returns tables/<table>.
func (l Layout) TableDir(table string) string {
	return filepath.Join(l.Root, "tables", table)
}

// GlobalSchemaPath returns tables/<table>/schema.sql.
func (l Layout) GlobalSchemaPath(table string) string {
	return filepath.Join(l.TableDir(table), "schema.sql")
}

// HistoryPath returns tables/<table>/history.txt.
func (l Layout) HistoryPath(table string) string {
	return filepath.Join(l.TableDir(table), "history.txt")
}

// GlobalMigrationsDir returns tables/<table>/migrations.
func (l Layout) GlobalMigrationsDir(table string) string {
	return filepath.Join(l.TableDir(table), "migrations")
}

// BranchDir returns dbtables/<branch>. branch must already be sanitized.
func (l Layout) BranchDir(branch string) string {
	return filepath.Join(l.Root, "dbtables", branch)
}

// MainSchemaPath returns dbtables/<main>/schemas/<table>.sql.
func (l Layout) MainSchemaPath(main, table string) string {
	return filepath.Join(l.BranchDir(main), "schemas", table+".sql")
}

// SnapshotPath returns dbtables/<main>.sql.
func (l Layout) SnapshotPath(main string) string {
	return filepath.Join(l.Root, "dbtables", main+".sql")
}

// MarkerPath returns dbtables/<branch>/.initialized.
func (l Layout) MarkerPath(branch string) string {
	return filepath.Join(l.BranchDir(branch), ".initialized")
}

// readBaseline returns the stored schema at path. ok is false when no
// baseline file exists, which is distinct from an existing empty baseline.
func readBaseline(path string) (schema string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read baseline %s: %w", path, err)
	}
	return string(data), true, nil
}

// writeBaseline overwrites the baseline at path, creating parent dirs.
func writeBaseline(path, schema string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(schema), 0644); err != nil {
		return fmt.Errorf("write baseline %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

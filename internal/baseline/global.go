package baseline

import (
	"errors"

	"github.com/deepak-highbeam/schemadrift/internal/migration"
	"github.com/deepak-highbeam/schemadrift/internal/schema"
)

// TrackGlobal maintains the branch-independent baseline under
// tables/<table>/. On drift it writes a migration pair (the full schema for
// a first sighting, ALTER statements otherwise), replaces schema.sql and
// appends to history.txt. It returns nil when the schema is unchanged.
func (t *Tracker) TrackGlobal(ts schema.TableSchema) (*migration.Pair, error) {
	if err := ensureDir(t.layout.TableDir(ts.Name)); err != nil {
		return nil, err
	}

	norm := ts.Normalized()
	schemaPath := t.layout.GlobalSchemaPath(ts.Name)
	existing, ok, err := readBaseline(schemaPath)
	if err != nil {
		return nil, err
	}
	if ok && existing == norm {
		return nil, nil
	}

	dir := t.layout.GlobalMigrationsDir(ts.Name)
	var (
		p       migration.Pair
		emitErr error
	)
	if !ok {
		p, emitErr = t.global.WriteNewTable(dir, ts.Name, ts.RawDDL)
	} else if up, down := schema.Diff(ts.Name, existing, norm); up != "" || down != "" {
		p, emitErr = t.global.Write(dir, ts.Name, up, down, migration.ReasonSchemaChanged)
	}

	err = errors.Join(
		emitErr,
		writeBaseline(schemaPath, norm),
		migration.AppendHistory(t.layout.HistoryPath(ts.Name), t.now(), ok),
	)
	if p.UpPath == "" {
		return nil, err
	}
	return &p, err
}

package daemon

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deepak-highbeam/schemadrift/internal/baseline"
	"github.com/deepak-highbeam/schemadrift/internal/migration"
	"github.com/deepak-highbeam/schemadrift/internal/schema"
	"github.com/deepak-highbeam/schemadrift/internal/store"
)

// globalBranch is the ledger branch label for tables/<table>/ migrations,
// which are written regardless of the active branch.
const globalBranch = store.GlobalBranch

// dbLoop runs a poll cycle immediately and then every DBPollInterval, or
// sooner when TriggerSync is called, until ctx is cancelled.
func (d *Daemon) dbLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.DBPollInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		err := d.RunCycle(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("dbwatch: %v", err)
		}
		d.metrics.RecordCycle(err, time.Since(start))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.syncNow:
		}
	}
}

// RunCycle performs one poll of the database: connect, list tables, fetch
// each table's DDL and feed it to the global baseline and the branch
// tracker. A failed table query skips that table only.
func (d *Daemon) RunCycle(ctx context.Context) error {
	src, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	names, err := src.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	// One branch per cycle so every table in it is attributed consistently.
	branch := d.branch.Branch()
	observed := make([]schema.TableSchema, 0, len(names))
	complete := true

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		ddl, err := src.ShowCreateTable(ctx, name)
		if err != nil {
			log.Printf("dbwatch: show create table %s: %v", name, err)
			d.metrics.RecordTableError()
			complete = false
			continue
		}
		ts := schema.TableSchema{Name: name, RawDDL: ddl}
		observed = append(observed, ts)

		d.trackGlobal(ts)
		d.observe(branch, ts)
	}
	d.tables.Store(int64(len(observed)))
	d.metrics.SetTablesTracked(len(observed))

	if !d.tracker.IsMain(branch) {
		return nil
	}
	if !complete {
		log.Printf("dbwatch: incomplete cycle on %s, main snapshot not updated", branch)
		return nil
	}
	created, err := d.tracker.FinishMainCycle(observed)
	if err != nil {
		log.Printf("dbwatch: %v", err)
		return nil
	}
	if created {
		log.Printf("dbwatch: main baseline initialized with %d tables", len(observed))
	}
	return nil
}

func (d *Daemon) trackGlobal(ts schema.TableSchema) {
	p, err := d.tracker.TrackGlobal(ts)
	if err != nil {
		log.Printf("dbwatch: %s: %v", ts.Name, err)
	}
	if p == nil {
		return
	}
	log.Printf("Schema changed for table %s", ts.Name)
	d.metrics.RecordMigration("global", string(p.Reason))
	d.record(globalBranch, *p)
}

func (d *Daemon) observe(branch string, ts schema.TableSchema) {
	out, err := d.tracker.Observe(branch, ts)
	if err != nil {
		log.Printf("dbwatch: %s/%s: %v", out.Branch, ts.Name, err)
	}
	if out.From != out.To && out.From != baseline.Unseen {
		log.Printf("dbwatch: %s/%s %s -> %s", out.Branch, out.Table, out.From, out.To)
	}
	if out.Bootstrap {
		log.Printf("dbwatch: baseline recorded for %s on %s", ts.Name, out.Branch)
	}
	if out.Pair == nil {
		return
	}

	log.Printf("dbwatch: wrote %s migration for %s on %s: %s",
		out.Pair.Reason, out.Table, out.Branch, out.Pair.UpPath)
	if cols := columnNames(out.Changes.Added); cols != "" {
		log.Printf("dbwatch: %s added columns: %s", out.Table, cols)
	}
	if cols := columnNames(out.Changes.Removed); cols != "" {
		log.Printf("dbwatch: %s removed columns: %s", out.Table, cols)
	}
	d.metrics.RecordMigration("branch", string(out.Pair.Reason))
	d.record(out.Branch, *out.Pair)
}

func (d *Daemon) record(branch string, p migration.Pair) {
	if d.store == nil {
		return
	}
	_, err := d.store.InsertMigration(store.MigrationRecord{
		Branch:     branch,
		Table:      p.Table,
		Reason:     string(p.Reason),
		UpPath:     p.UpPath,
		DownPath:   p.DownPath,
		CommitHash: d.branch.Commit(),
		RunID:      d.runID,
		CreatedAt:  p.Timestamp,
	})
	if err != nil {
		log.Printf("store: record migration %s: %v", p.UpPath, err)
	}
}

func columnNames(cols []schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

package baseline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deepak-highbeam/schemadrift/internal/migration"
	"github.com/deepak-highbeam/schemadrift/internal/schema"
)

// State is the tracker's view of one (branch, table) pair.
type State int

const (
	Unseen State = iota
	InSyncWithMain
	Diverged
	Emitted
)

func (s State) String() string {
	switch s {
	case InSyncWithMain:
		return "IN_SYNC_WITH_MAIN"
	case Diverged:
		return "DIVERGED"
	case Emitted:
		return "EMITTED"
	default:
		return "UNSEEN"
	}
}

// Outcome reports what a single observation did.
type Outcome struct {
	Branch     string // sanitized
	Table      string
	From       State
	To         State
	Pair       *migration.Pair // nil when nothing was written
	Changes    schema.Changes
	Suppressed bool // drift already emitted for this exact schema
	Bootstrap  bool // main baseline written during the bootstrap cycle
}

// Tracker compares observed schemas against the main-branch baseline and
// writes branch migrations. It is driven by a single goroutine.
type Tracker struct {
	layout Layout
	main   string
	cache  *EmissionCache
	writer *migration.Writer
	global *migration.Writer
	now    func() time.Time

	states map[cacheKey]State
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for migration timestamps and history.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a Tracker rooted at layout, treating mainBranch as the
// schema of record. cache is owned by the caller and may be shared with
// nothing else.
func NewTracker(layout Layout, mainBranch string, cache *EmissionCache, opts ...Option) *Tracker {
	t := &Tracker{
		layout: layout,
		main:   Sanitize(mainBranch),
		cache:  cache,
		now:    time.Now,
		states: make(map[cacheKey]State),
	}
	for _, o := range opts {
		o(t)
	}
	t.writer = &migration.Writer{Now: t.now, Annotate: true}
	t.global = &migration.Writer{Now: t.now}
	return t
}

// MainBranch returns the sanitized main branch name.
func (t *Tracker) MainBranch() string {
	return t.main
}

// IsMain reports whether branch is the designated main branch.
func (t *Tracker) IsMain(branch string) bool {
	return Sanitize(branch) == t.main
}

// State returns the last known state of branch/table.
func (t *Tracker) State(branch, table string) State {
	return t.states[cacheKey{Sanitize(branch), table}]
}

// Bootstrapped reports whether the main baseline has been initialized.
func (t *Tracker) Bootstrapped() bool {
	return fileExists(t.layout.MarkerPath(t.main))
}

// Observe processes one table's live schema as seen on branch.
func (t *Tracker) Observe(branch string, ts schema.TableSchema) (Outcome, error) {
	b := Sanitize(branch)
	key := cacheKey{b, ts.Name}
	out := Outcome{Branch: b, Table: ts.Name, From: t.states[key]}

	var err error
	if b == t.main {
		err = t.observeMain(ts, &out)
	} else {
		err = t.observeBranch(ts, &out)
	}
	if out.To != Unseen {
		t.states[key] = out.To
	}
	return out, err
}

// observeMain writes the main baseline on drift. Outside the bootstrap
// cycle it also emits a migration pair into the main branch directory.
func (t *Tracker) observeMain(ts schema.TableSchema, out *Outcome) error {
	norm := ts.Normalized()
	path := t.layout.MainSchemaPath(t.main, ts.Name)

	base, ok, err := readBaseline(path)
	if err != nil {
		return err
	}
	out.To = InSyncWithMain
	if ok && base == norm {
		return nil
	}

	var emitErr error
	if !t.Bootstrapped() {
		out.Bootstrap = true
	} else {
		dir := t.layout.BranchDir(t.main)
		if !ok {
			emitErr = t.emit(out, func() (migration.Pair, error) {
				return t.writer.WriteNewTable(dir, ts.Name, ts.RawDDL)
			})
		} else {
			out.Changes = schema.Compare(base, norm)
			if !out.Changes.Empty() {
				up, down := out.Changes.SQL(ts.Name)
				emitErr = t.emit(out, func() (migration.Pair, error) {
					return t.writer.Write(dir, ts.Name, up, down, migration.ReasonSchemaChanged)
				})
			}
		}
	}

	// The baseline moves even if the migration write failed.
	return errors.Join(emitErr, writeBaseline(path, norm))
}

// observeBranch compares a non-main branch's schema against the main
// baseline and emits at most one migration per distinct schema value.
func (t *Tracker) observeBranch(ts schema.TableSchema, out *Outcome) error {
	b := out.Branch
	norm := ts.Normalized()

	base, ok, err := readBaseline(t.layout.MainSchemaPath(t.main, ts.Name))
	if err != nil {
		return err
	}

	if ok && base == norm {
		t.cache.Delete(b, ts.Name)
		out.To = InSyncWithMain
		return nil
	}

	if last, seen := t.cache.Get(b, ts.Name); seen && last == norm {
		out.To = Emitted
		out.Suppressed = true
		return nil
	}

	dir := t.layout.BranchDir(b)
	if !ok {
		out.To = Diverged
		err := t.emit(out, func() (migration.Pair, error) {
			return t.writer.WriteNewTable(dir, ts.Name, ts.RawDDL)
		})
		if err == nil {
			t.cache.Set(b, ts.Name, norm)
			out.To = Emitted
		}
		return err
	}

	from, reason := base, migration.ReasonBranchDelta
	if last, seen := t.cache.Get(b, ts.Name); seen {
		from, reason = last, migration.ReasonSchemaChanged
	}

	out.To = Diverged
	out.Changes = schema.Compare(from, norm)
	if out.Changes.Empty() {
		return nil
	}

	up, down := out.Changes.SQL(ts.Name)
	err = t.emit(out, func() (migration.Pair, error) {
		return t.writer.Write(dir, ts.Name, up, down, reason)
	})
	if err != nil {
		return err
	}
	t.cache.Set(b, ts.Name, norm)
	out.To = Emitted
	return nil
}

func (t *Tracker) emit(out *Outcome, write func() (migration.Pair, error)) error {
	p, err := write()
	if p.UpPath != "" {
		out.Pair = &p
	}
	if err != nil {
		return fmt.Errorf("emit %s migration for %s/%s: %w", p.Reason, out.Branch, out.Table, err)
	}
	return nil
}

// FinishMainCycle records the snapshot of every table observed during a
// main-branch poll cycle and, on the first complete cycle, creates the
// bootstrap marker. It returns true when the marker was created.
func (t *Tracker) FinishMainCycle(observed []schema.TableSchema) (bool, error) {
	var b strings.Builder
	for _, ts := range observed {
		fmt.Fprintf(&b, "-- Table: %s\n%s;\n\n", ts.Name, ts.Normalized())
	}
	if err := writeBaseline(t.layout.SnapshotPath(t.main), b.String()); err != nil {
		return false, fmt.Errorf("write main snapshot: %w", err)
	}

	if t.Bootstrapped() {
		return false, nil
	}
	marker := t.layout.MarkerPath(t.main)
	if err := writeBaseline(marker, t.now().Format(time.RFC3339)+"\n"); err != nil {
		return false, fmt.Errorf("write bootstrap marker: %w", err)
	}
	return true, nil
}

// MainBaseline returns the stored main baseline for table.
func (t *Tracker) MainBaseline(table string) (string, bool, error) {
	return readBaseline(t.layout.MainSchemaPath(t.main, table))
}

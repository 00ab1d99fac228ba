package baseline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deepak-highbeam/schemadrift/internal/migration"
	"github.com/deepak-highbeam/schemadrift/internal/schema"
)

const (
	ddlV1 = "CREATE TABLE `users` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `age` INT,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=3 DEFAULT CHARSET=utf8mb4"
	ddlV2 = "CREATE TABLE `users` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `age` INT,\n" +
		"  `email` VARCHAR(255),\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=9 DEFAULT CHARSET=utf8mb4"
	ddlV3 = "CREATE TABLE `users` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `age` INT,\n" +
		"  `email` VARCHAR(255),\n" +
		"  `phone` VARCHAR(32),\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// steppingClock returns a clock that advances one second per call so that
// successive migration pairs get distinct file names.
func steppingClock() func() time.Time {
	cur := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func newTestTracker(t *testing.T) (*Tracker, Layout) {
	t.Helper()
	layout := Layout{Root: t.TempDir()}
	return NewTracker(layout, "main", NewEmissionCache(), WithClock(steppingClock())), layout
}

func users(ddl string) schema.TableSchema {
	return schema.TableSchema{Name: "users", RawDDL: ddl}
}

func upFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*_up.sql"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// bootstrapMain runs a complete first main cycle over the given tables.
func bootstrapMain(t *testing.T, tr *Tracker, tables ...schema.TableSchema) {
	t.Helper()
	for _, ts := range tables {
		if _, err := tr.Observe("main", ts); err != nil {
			t.Fatalf("Observe main: %v", err)
		}
	}
	created, err := tr.FinishMainCycle(tables)
	if err != nil {
		t.Fatalf("FinishMainCycle: %v", err)
	}
	if !created {
		t.Fatal("expected bootstrap marker to be created")
	}
}

// ---------------------------------------------------------------------------
// Main branch
// ---------------------------------------------------------------------------

func TestMain_BootstrapWritesBaselineWithoutMigration(t *testing.T) {
	tr, layout := newTestTracker(t)

	out, err := tr.Observe("main", users(ddlV1))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !out.Bootstrap {
		t.Error("first main observation should be a bootstrap")
	}
	if out.Pair != nil {
		t.Errorf("bootstrap should not emit a migration, got %+v", out.Pair)
	}
	if out.To != InSyncWithMain {
		t.Errorf("To = %v, want IN_SYNC_WITH_MAIN", out.To)
	}

	got := mustRead(t, layout.MainSchemaPath("main", "users"))
	if got != schema.Normalize(ddlV1) {
		t.Errorf("main baseline = %q, want normalized schema", got)
	}
	if tr.Bootstrapped() {
		t.Error("marker must not exist before the cycle finishes")
	}

	if _, err := tr.FinishMainCycle([]schema.TableSchema{users(ddlV1)}); err != nil {
		t.Fatalf("FinishMainCycle: %v", err)
	}
	if !tr.Bootstrapped() {
		t.Error("marker should exist after the first cycle")
	}
	snap := mustRead(t, layout.SnapshotPath("main"))
	if !strings.Contains(snap, "-- Table: users\n") || strings.Contains(snap, "AUTO_INCREMENT=3") {
		t.Errorf("unexpected snapshot:\n%s", snap)
	}
}

func TestMain_DriftAfterBootstrapEmits(t *testing.T) {
	tr, layout := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	out, err := tr.Observe("main", users(ddlV2))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if out.Pair == nil {
		t.Fatal("expected a migration on main drift")
	}
	if out.Pair.Reason != migration.ReasonSchemaChanged {
		t.Errorf("Reason = %q, want schema_changed", out.Pair.Reason)
	}
	up := mustRead(t, out.Pair.UpPath)
	if up != "-- reason: schema_changed\nALTER TABLE `users` ADD `email` VARCHAR(255);\n" {
		t.Errorf("up = %q", up)
	}
	if filepath.Dir(out.Pair.UpPath) != layout.BranchDir("main") {
		t.Errorf("main migration written to %s", out.Pair.UpPath)
	}
	if got := mustRead(t, layout.MainSchemaPath("main", "users")); got != schema.Normalize(ddlV2) {
		t.Error("main baseline should follow drift")
	}

	// Same schema again: nothing to do.
	out, err = tr.Observe("main", users(ddlV2))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if out.Pair != nil {
		t.Error("unchanged main schema should not emit")
	}
}

func TestMain_NewTableAfterBootstrap(t *testing.T) {
	tr, _ := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	orders := schema.TableSchema{Name: "orders", RawDDL: "CREATE TABLE `orders` (\n  `id` int\n) ENGINE=InnoDB"}
	out, err := tr.Observe("main", orders)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if out.Pair == nil || out.Pair.Reason != migration.ReasonNewTable {
		t.Fatalf("expected new_table migration, got %+v", out.Pair)
	}
}

func TestMain_CounterOnlyChangeIsIgnored(t *testing.T) {
	tr, layout := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	bumped := strings.Replace(ddlV1, "AUTO_INCREMENT=3", "AUTO_INCREMENT=4000", 1)
	out, err := tr.Observe("main", users(bumped))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if out.Pair != nil {
		t.Error("counter-only change must not produce a migration")
	}
	if n := len(upFiles(t, layout.BranchDir("main"))); n != 0 {
		t.Errorf("found %d main migrations, want 0", n)
	}
}

// ---------------------------------------------------------------------------
// Feature branches
// ---------------------------------------------------------------------------

func TestBranch_NoMainBaselineEmitsNewTableOnce(t *testing.T) {
	tr, layout := newTestTracker(t)

	out, err := tr.Observe("feature/x", users(ddlV1))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if out.Pair == nil || out.Pair.Reason != migration.ReasonNewTable {
		t.Fatalf("expected new_table migration, got %+v", out.Pair)
	}
	if got := mustRead(t, out.Pair.UpPath); got != "-- reason: new_table\n"+ddlV1 {
		t.Errorf("up should be the verbatim schema, got %q", got)
	}
	if got := mustRead(t, out.Pair.DownPath); got != "-- reason: new_table\n"+migration.NewTableDown {
		t.Errorf("down = %q", got)
	}
	if filepath.Dir(out.Pair.UpPath) != layout.BranchDir("feature_x") {
		t.Errorf("branch migration written to %s", out.Pair.UpPath)
	}

	out, err = tr.Observe("feature/x", users(ddlV1))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !out.Suppressed || out.Pair != nil {
		t.Errorf("second identical observation should be suppressed: %+v", out)
	}
	if n := len(upFiles(t, layout.BranchDir("feature_x"))); n != 1 {
		t.Errorf("got %d pairs, want 1", n)
	}
}

func TestBranch_IdempotentEmission(t *testing.T) {
	tr, layout := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	first, err := tr.Observe("feature-x", users(ddlV2))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if first.Pair == nil {
		t.Fatal("expected a branch migration")
	}
	if first.Pair.Reason != migration.ReasonBranchDelta {
		t.Errorf("Reason = %q, want branch_delta", first.Pair.Reason)
	}
	if first.To != Emitted {
		t.Errorf("To = %v, want EMITTED", first.To)
	}
	wantUp := "-- reason: branch_delta\nALTER TABLE `users` ADD `email` VARCHAR(255);\n"
	if got := mustRead(t, first.Pair.UpPath); got != wantUp {
		t.Errorf("up = %q, want %q", got, wantUp)
	}
	wantDown := "-- reason: branch_delta\nALTER TABLE `users` DROP COLUMN `email`;\n"
	if got := mustRead(t, first.Pair.DownPath); got != wantDown {
		t.Errorf("down = %q, want %q", got, wantDown)
	}

	second, err := tr.Observe("feature-x", users(ddlV2))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if second.Pair != nil || !second.Suppressed {
		t.Errorf("second observation should be suppressed: %+v", second)
	}
	if n := len(upFiles(t, layout.BranchDir("feature-x"))); n != 1 {
		t.Errorf("got %d pairs, want exactly 1", n)
	}
	if tr.State("feature-x", "users") != Emitted {
		t.Errorf("State = %v, want EMITTED", tr.State("feature-x", "users"))
	}
}

func TestBranch_FurtherChangeEmitsIncrementalDiff(t *testing.T) {
	tr, _ := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	if _, err := tr.Observe("feature-x", users(ddlV2)); err != nil {
		t.Fatalf("Observe v2: %v", err)
	}
	out, err := tr.Observe("feature-x", users(ddlV3))
	if err != nil {
		t.Fatalf("Observe v3: %v", err)
	}
	if out.Pair == nil || out.Pair.Reason != migration.ReasonSchemaChanged {
		t.Fatalf("expected schema_changed migration, got %+v", out.Pair)
	}
	want := "-- reason: schema_changed\nALTER TABLE `users` ADD `phone` VARCHAR(32);\n"
	if got := mustRead(t, out.Pair.UpPath); got != want {
		t.Errorf("up = %q, want %q (email must not be re-emitted)", got, want)
	}
}

func TestBranch_ReconvergenceClearsCache(t *testing.T) {
	tr, layout := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))
	dir := layout.BranchDir("feature-x")

	if out, err := tr.Observe("feature-x", users(ddlV2)); err != nil || out.Pair == nil {
		t.Fatalf("diverge: pair=%v err=%v", out.Pair, err)
	}

	out, err := tr.Observe("feature-x", users(ddlV1))
	if err != nil {
		t.Fatalf("reconverge: %v", err)
	}
	if out.Pair != nil {
		t.Error("reconvergence must not emit")
	}
	if out.From != Emitted || out.To != InSyncWithMain {
		t.Errorf("transition = %v -> %v, want EMITTED -> IN_SYNC_WITH_MAIN", out.From, out.To)
	}
	if _, ok := tr.cache.Get("feature-x", "users"); ok {
		t.Error("cache entry should be cleared on reconvergence")
	}
	if n := len(upFiles(t, dir)); n != 1 {
		t.Fatalf("got %d pairs after reconvergence, want 1", n)
	}

	out, err = tr.Observe("feature-x", users(ddlV2))
	if err != nil {
		t.Fatalf("re-diverge: %v", err)
	}
	if out.Pair == nil {
		t.Fatal("diverging again to the same schema must re-emit")
	}
	if out.Pair.Reason != migration.ReasonBranchDelta {
		t.Errorf("Reason = %q, want branch_delta", out.Pair.Reason)
	}
	if n := len(upFiles(t, dir)); n != 2 {
		t.Errorf("got %d pairs, want 2", n)
	}
}

func TestBranch_NoiseOnlyDivergenceDoesNotEmit(t *testing.T) {
	tr, layout := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	withIndex := strings.Replace(ddlV1, "  PRIMARY KEY (`id`)\n", "  PRIMARY KEY (`id`),\n  KEY `idx_age` (`age`)\n", 1)
	out, err := tr.Observe("feature-x", users(withIndex))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if out.Pair != nil {
		t.Error("index-only divergence yields an empty diff and must not emit")
	}
	if out.To != Diverged {
		t.Errorf("To = %v, want DIVERGED", out.To)
	}
	if n := len(upFiles(t, layout.BranchDir("feature-x"))); n != 0 {
		t.Errorf("got %d pairs, want 0", n)
	}
}

func TestBranch_BranchesAreIndependent(t *testing.T) {
	tr, layout := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	for _, b := range []string{"a", "b"} {
		out, err := tr.Observe(b, users(ddlV2))
		if err != nil {
			t.Fatalf("Observe %s: %v", b, err)
		}
		if out.Pair == nil {
			t.Errorf("branch %s should get its own migration", b)
		}
	}
	for _, b := range []string{"a", "b"} {
		if n := len(upFiles(t, layout.BranchDir(b))); n != 1 {
			t.Errorf("branch %s: got %d pairs, want 1", b, n)
		}
	}
}

func TestBranch_DoesNotTouchMainBaseline(t *testing.T) {
	tr, layout := newTestTracker(t)
	bootstrapMain(t, tr, users(ddlV1))

	if _, err := tr.Observe("feature-x", users(ddlV3)); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if got := mustRead(t, layout.MainSchemaPath("main", "users")); got != schema.Normalize(ddlV1) {
		t.Error("feature branch observation must not modify the main baseline")
	}
	if fileExists(layout.MarkerPath("feature-x")) {
		t.Error("bootstrap marker is main-only")
	}
}

func TestState_Unseen(t *testing.T) {
	tr, _ := newTestTracker(t)
	if s := tr.State("any", "users"); s != Unseen {
		t.Errorf("State = %v, want UNSEEN", s)
	}
	if Unseen.String() != "UNSEEN" || Diverged.String() != "DIVERGED" {
		t.Error("unexpected State strings")
	}
}

// ---------------------------------------------------------------------------
// Global baseline
// ---------------------------------------------------------------------------

func TestTrackGlobal_Lifecycle(t *testing.T) {
	tr, layout := newTestTracker(t)

	p, err := tr.TrackGlobal(users(ddlV1))
	if err != nil {
		t.Fatalf("TrackGlobal: %v", err)
	}
	if p == nil || p.Reason != migration.ReasonNewTable {
		t.Fatalf("first sighting should write a new_table pair, got %+v", p)
	}
	if got := mustRead(t, p.UpPath); got != ddlV1 {
		t.Errorf("global up should be verbatim and unannotated, got %q", got)
	}
	if got := mustRead(t, layout.GlobalSchemaPath("users")); got != schema.Normalize(ddlV1) {
		t.Errorf("schema.sql = %q", got)
	}

	p, err = tr.TrackGlobal(users(ddlV1))
	if err != nil || p != nil {
		t.Fatalf("unchanged schema: pair=%v err=%v", p, err)
	}

	p, err = tr.TrackGlobal(users(ddlV2))
	if err != nil {
		t.Fatalf("TrackGlobal v2: %v", err)
	}
	if p == nil {
		t.Fatal("drift should write a pair")
	}
	if got := mustRead(t, p.UpPath); got != "ALTER TABLE `users` ADD `email` VARCHAR(255);\n" {
		t.Errorf("up = %q", got)
	}
	if filepath.Dir(p.UpPath) != layout.GlobalMigrationsDir("users") {
		t.Errorf("pair written to %s", p.UpPath)
	}

	history := mustRead(t, layout.HistoryPath("users"))
	if strings.Count(history, "Schema changed") != 2 {
		t.Errorf("history should have two entries:\n%s", history)
	}
	if !strings.Contains(history, "Initial schema saved.") ||
		!strings.Contains(history, "Previous schema was different. Generated ALTER statements.") {
		t.Errorf("history missing expected lines:\n%s", history)
	}
}

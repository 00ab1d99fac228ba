package gitint

import (
	"context"
	"sync"
	"testing"
	"time"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestWatcher(t *testing.T, dir string, rec *eventRecorder) *Watcher {
	t.Helper()
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := NewWatcher(repo, time.Hour, rec.record)
	if _, err := w.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return w
}

func TestWatcher_CheckDetectsBranchSwitch(t *testing.T) {
	dir := t.TempDir()
	gitInitShell(t, dir)
	gitCheckoutNewBranch(t, dir, "feature-x")
	gitCheckoutBranch(t, dir, "main")

	rec := &eventRecorder{}
	w := newTestWatcher(t, dir, rec)

	gitCheckoutBranch(t, dir, "feature-x")
	w.Check()

	got := rec.ofKind(BranchChanged)
	if len(got) != 1 {
		t.Fatalf("expected 1 branch event, got %d", len(got))
	}
	if got[0].Branch != "feature-x" || got[0].PrevBranch != "main" {
		t.Errorf("event = %+v, want main -> feature-x", got[0])
	}
	// Both branches point at the same commit.
	if n := len(rec.ofKind(NewCommit)); n != 0 {
		t.Errorf("got %d commit events, want 0", n)
	}
}

func TestWatcher_CheckDetectsNewCommit(t *testing.T) {
	dir := t.TempDir()
	gitInitShell(t, dir)

	rec := &eventRecorder{}
	w := newTestWatcher(t, dir, rec)

	gitCommitFile(t, dir, "new.txt", "hello", "add file")
	w.Check()

	commits := rec.ofKind(NewCommit)
	if len(commits) != 1 {
		t.Fatalf("expected 1 commit event, got %d", len(commits))
	}
	if commits[0].Commit.Message != "add file" || commits[0].Branch != "main" {
		t.Errorf("commit event = %+v", commits[0])
	}
	if n := len(rec.ofKind(BranchChanged)); n != 0 {
		t.Errorf("same-branch commit produced %d branch events", n)
	}

	w.Check()
	if n := len(rec.ofKind(NewCommit)); n != 1 {
		t.Errorf("repeated check re-emitted commit: %d events", n)
	}
}

func TestWatcher_RunSeesSwitchViaNotify(t *testing.T) {
	dir := t.TempDir()
	gitInitShell(t, dir)
	gitCheckoutNewBranch(t, dir, "a")
	gitCheckoutBranch(t, dir, "main")

	rec := &eventRecorder{}
	w := newTestWatcher(t, dir, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The hour-long interval means only the fsnotify wakeup can catch this.
	time.Sleep(100 * time.Millisecond)
	gitCheckoutBranch(t, dir, "a")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(rec.ofKind(BranchChanged)) == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := rec.ofKind(BranchChanged)
	if len(got) != 1 || got[0].Branch != "a" {
		t.Fatalf("branch events = %+v, want one switch to a", got)
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	gitInitShell(t, dir)

	rec := &eventRecorder{}
	w := newTestWatcher(t, dir, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

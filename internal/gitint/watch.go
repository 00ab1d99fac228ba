package gitint

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind distinguishes watcher events.
type EventKind string

const (
	BranchChanged EventKind = "branch_changed"
	NewCommit     EventKind = "commit"
)

// Event is emitted when HEAD moves to another branch or a new commit.
type Event struct {
	Kind       EventKind
	Branch     string
	PrevBranch string
	Commit     CommitInfo
}

// wakeFiles are entries of the .git directory whose modification usually
// means HEAD or the current branch tip moved.
var wakeFiles = map[string]bool{
	"HEAD":           true,
	"ORIG_HEAD":      true,
	"index":          true,
	"COMMIT_EDITMSG": true,
	"packed-refs":    true,
}

// Watcher polls a repository's HEAD at a fixed interval and reports branch
// switches and new commits. Changes to .git/HEAD and friends trigger an
// immediate check so switches are seen before the next tick.
type Watcher struct {
	repo     *Repository
	interval time.Duration
	onEvent  func(Event)
	last     Head
}

// NewWatcher returns a Watcher that calls onEvent from its own goroutine.
func NewWatcher(repo *Repository, interval time.Duration, onEvent func(Event)) *Watcher {
	return &Watcher{repo: repo, interval: interval, onEvent: onEvent}
}

// Init reads the starting HEAD without emitting events. Run calls it if it
// has not been called.
func (w *Watcher) Init() (Head, error) {
	h, err := w.repo.Head()
	if err != nil {
		return Head{}, err
	}
	w.last = h
	return h, nil
}

// Run blocks, checking HEAD every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.last == (Head{}) {
		if _, err := w.Init(); err != nil {
			return err
		}
	}

	wake := make(chan struct{}, 1)
	if stop := w.notifyOnGitDir(wake); stop != nil {
		defer stop()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check()
		case <-wake:
			w.Check()
		}
	}
}

// Check compares HEAD with the last observation and emits events for a
// new commit first, then for a branch switch.
func (w *Watcher) Check() {
	h, err := w.repo.Head()
	if err != nil {
		// HEAD can be briefly unreadable while git rewrites it.
		log.Printf("gitwatch: %v", err)
		return
	}
	prev := w.last
	w.last = h

	if h.Commit != "" && h.Commit != prev.Commit {
		info, err := w.repo.Commit(h.Commit)
		if err != nil {
			log.Printf("gitwatch: %v", err)
			info = CommitInfo{Hash: h.Commit}
		}
		w.onEvent(Event{Kind: NewCommit, Branch: prev.Branch, Commit: info})
	}
	if h.Branch != prev.Branch {
		w.onEvent(Event{Kind: BranchChanged, Branch: h.Branch, PrevBranch: prev.Branch})
	}
}

// notifyOnGitDir sends on wake once a burst of changes to relevant .git
// entries has settled. It returns nil if the directory cannot be watched;
// polling still works.
func (w *Watcher) notifyOnGitDir(wake chan<- struct{}) func() {
	gitDir := w.repo.GitDir()
	if gitDir == "" {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("gitwatch: fsnotify unavailable, polling only: %v", err)
		return nil
	}
	if err := fsw.Add(gitDir); err != nil {
		log.Printf("gitwatch: watch %s: %v", gitDir, err)
		_ = fsw.Close()
		return nil
	}

	settle := newSettler(settleWindow, func([]string) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !wakeFiles[filepath.Base(ev.Name)] {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				settle.Touch(filepath.Base(ev.Name))
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		settle.Stop()
		_ = fsw.Close()
	}
}

package daemon

import (
	"log"
	"time"

	"github.com/deepak-highbeam/schemadrift/internal/gitint"
	"github.com/deepak-highbeam/schemadrift/internal/store"
)

// handleGitEvent updates the branch context and records the event. It runs
// on the git watcher's goroutine.
func (d *Daemon) handleGitEvent(ev gitint.Event) {
	rec := store.VCSEvent{
		Kind:      string(ev.Kind),
		Branch:    ev.Branch,
		RunID:     d.runID,
		CreatedAt: time.Now(),
	}

	switch ev.Kind {
	case gitint.BranchChanged:
		prev, changed := d.branch.SetBranch(ev.Branch)
		if !changed {
			return
		}
		log.Printf("gitwatch: branch changed %s -> %s", prev, ev.Branch)
		rec.PrevBranch = prev
		d.saveState("last_branch", ev.Branch)

	case gitint.NewCommit:
		d.branch.SetCommit(ev.Commit.Hash)
		log.Printf("gitwatch: new commit detected on branch %s: %s", ev.Branch, shortHash(ev.Commit.Hash))
		rec.CommitHash = ev.Commit.Hash
		rec.Author = ev.Commit.Author
		rec.Message = ev.Commit.Message
		d.saveState("last_commit", ev.Commit.Hash)
	}

	d.metrics.RecordVCSEvent(rec.Kind)
	if d.store == nil {
		return
	}
	if err := d.store.InsertVCSEvent(rec); err != nil {
		log.Printf("store: record %s event: %v", ev.Kind, err)
	}
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

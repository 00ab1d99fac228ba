// Package branchctx holds the one piece of state shared between the git
// watcher and the database watcher: the currently checked-out branch.
package branchctx

import "sync"

// Unknown is reported before any branch has been observed.
const Unknown = "unknown"

// Context is the current branch and HEAD commit. The git watcher writes
// it, the database watcher reads it. Safe for concurrent use.
type Context struct {
	mu     sync.RWMutex
	branch string
	commit string
}

// New returns a Context initialised to branch.
func New(branch string) *Context {
	return &Context{branch: branch}
}

// Branch returns the current branch, or Unknown if none is set.
func (c *Context) Branch() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.branch == "" {
		return Unknown
	}
	return c.branch
}

// SetBranch stores branch and returns the previous value and whether it
// changed.
func (c *Context) SetBranch(branch string) (prev string, changed bool) {
	if branch == "" {
		branch = Unknown
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.branch
	if prev == "" {
		prev = Unknown
	}
	c.branch = branch
	return prev, prev != branch
}

// Commit returns the last observed HEAD commit hash.
func (c *Context) Commit() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commit
}

// SetCommit stores the HEAD commit hash.
func (c *Context) SetCommit(hash string) {
	c.mu.Lock()
	c.commit = hash
	c.mu.Unlock()
}

// Package gitint reads the checked-out branch and HEAD commit of a git
// working tree using go-git, and watches them for changes.
package gitint

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// DetachedHEAD is reported as the branch name when HEAD is not a branch.
const DetachedHEAD = "DETACHED_HEAD"

// Head is the state of HEAD at one point in time.
type Head struct {
	Branch string
	Commit string // empty on an unborn branch
}

// CommitInfo describes a single commit.
type CommitInfo struct {
	Hash    string
	Author  string
	Message string
	When    time.Time
}

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens the git repository containing repoPath.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repo at %s: %w", repoPath, err)
	}
	return &Repository{repo: repo, path: repoPath}, nil
}

// Path returns the path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// GitDir returns the repository's .git directory, or "" for storages that
// are not on the local filesystem.
func (r *Repository) GitDir() string {
	wt, err := r.repo.Worktree()
	if err != nil {
		return ""
	}
	return filepath.Join(wt.Filesystem.Root(), ".git")
}

// Head returns the current branch and commit. A branch with no commits yet
// is reported with an empty Commit.
func (r *Repository) Head() (Head, error) {
	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Unborn branch: HEAD is a symbolic ref to a branch with no commits.
		sym, serr := r.repo.Reference(plumbing.HEAD, false)
		if serr != nil {
			return Head{}, fmt.Errorf("read HEAD: %w", serr)
		}
		return Head{Branch: sym.Target().Short()}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	h := Head{Commit: ref.Hash().String(), Branch: DetachedHEAD}
	if ref.Name().IsBranch() {
		h.Branch = ref.Name().Short()
	}
	return h, nil
}

// Commit returns metadata for the commit with the given hash.
func (r *Repository) Commit(hash string) (CommitInfo, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return CommitInfo{}, fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	return CommitInfo{
		Hash:    c.Hash.String(),
		Author:  c.Author.Name,
		Message: strings.TrimSpace(c.Message),
		When:    c.Author.When,
	}, nil
}

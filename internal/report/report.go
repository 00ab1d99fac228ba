// Package report summarizes the migration ledger. It reads the SQLite
// database directly, so the daemon does not need to be running.
package report

import (
	"fmt"
	"sort"

	"github.com/deepak-highbeam/schemadrift/internal/store"
)

// GlobalLabel is how migrations written under tables/<table>/ are shown.
const GlobalLabel = store.GlobalBranch

// History holds the migration ledger, optionally filtered to one branch.
type History struct {
	Branch   string                  `json:"branch,omitempty"`
	Total    int                     `json:"total"`
	ByReason map[string]int          `json:"by_reason"`
	ByTable  map[string]int          `json:"by_table"`
	Branches []BranchSummary         `json:"branches"`
	Records  []store.MigrationRecord `json:"records"`
}

// BranchSummary counts migrations written for one branch.
type BranchSummary struct {
	Branch string `json:"branch"`
	Count  int    `json:"count"`
}

// GenerateHistory reads the store at dbPath and builds a History. An empty
// branch includes every branch; limit <= 0 lists all records.
func GenerateHistory(dbPath, branch string, limit int) (*History, error) {
	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	return GenerateHistoryFromStore(s, branch, limit)
}

// GenerateHistoryFromStore builds a History from an open store.
func GenerateHistoryFromStore(s *store.Store, branch string, limit int) (*History, error) {
	all, err := s.QueryMigrations(branch, 0)
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}

	h := &History{
		Branch:   branch,
		Total:    len(all),
		ByReason: make(map[string]int),
		ByTable:  make(map[string]int),
	}

	perBranch := make(map[string]int)
	for _, r := range all {
		h.ByReason[r.Reason]++
		h.ByTable[r.Table]++
		perBranch[r.Branch]++
	}
	for b, n := range perBranch {
		h.Branches = append(h.Branches, BranchSummary{Branch: b, Count: n})
	}
	sort.Slice(h.Branches, func(i, j int) bool {
		if h.Branches[i].Count != h.Branches[j].Count {
			return h.Branches[i].Count > h.Branches[j].Count
		}
		return h.Branches[i].Branch < h.Branches[j].Branch
	})

	h.Records = all
	if limit > 0 && len(h.Records) > limit {
		h.Records = h.Records[:limit]
	}
	return h, nil
}

package branchctx

import (
	"fmt"
	"sync"
	"testing"
)

func TestContext_Defaults(t *testing.T) {
	c := New("")
	if got := c.Branch(); got != Unknown {
		t.Errorf("Branch = %q, want %q", got, Unknown)
	}
}

func TestContext_SetBranch(t *testing.T) {
	c := New("main")

	prev, changed := c.SetBranch("feature-x")
	if prev != "main" || !changed {
		t.Errorf("SetBranch = %q, %v; want main, true", prev, changed)
	}
	prev, changed = c.SetBranch("feature-x")
	if prev != "feature-x" || changed {
		t.Errorf("SetBranch same = %q, %v; want feature-x, false", prev, changed)
	}
	if _, changed := c.SetBranch(""); !changed || c.Branch() != Unknown {
		t.Errorf("empty branch should become %q", Unknown)
	}
}

func TestContext_ConcurrentAccess(t *testing.T) {
	c := New("main")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.SetBranch(fmt.Sprintf("b-%d-%d", i, j))
				c.SetCommit(fmt.Sprintf("%040d", j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if c.Branch() == "" {
					t.Error("Branch returned empty string")
				}
				_ = c.Commit()
			}
		}()
	}
	wg.Wait()
}

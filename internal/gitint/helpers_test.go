package gitint

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func gitInitShell(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "init")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")
	runGit(t, dir, "commit", "--allow-empty", "-m", "init")
}

func gitCheckoutBranch(t *testing.T, dir, branch string) {
	t.Helper()
	runGit(t, dir, "checkout", branch)
}

func gitCheckoutNewBranch(t *testing.T, dir, branch string) {
	t.Helper()
	runGit(t, dir, "checkout", "-b", branch)
}

func gitCommitFile(t *testing.T, dir, file, content, message string) {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", file)
	runGit(t, dir, "commit", "-m", message)
}

func gitRevParseHelper(t *testing.T, dir, ref string) string {
	t.Helper()
	return runGit(t, dir, "rev-parse", ref)
}

package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// requireGitCLI skips tests that shell out to the git binary when it is not
// installed.
func requireGitCLI(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// createTestRepo initializes a throwaway repository in a temp directory.
func createTestRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	return dir, repo
}

// commitFiles writes the given files, stages them, and commits. It returns
// the full commit hash.
func commitFiles(t *testing.T, dir string, repo *gogit.Repository, message string, files map[string]string, when time.Time) string {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	for rel, content := range files {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := wt.Add(rel); err != nil {
			t.Fatalf("Add %s: %v", rel, err)
		}
	}

	return commitWorktree(t, wt, message, when)
}

// deleteFiles removes the given files from the worktree and commits.
func deleteFiles(t *testing.T, repo *gogit.Repository, message string, files []string, when time.Time) string {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	for _, rel := range files {
		if _, err := wt.Remove(rel); err != nil {
			t.Fatalf("Remove %s: %v", rel, err)
		}
	}
	return commitWorktree(t, wt, message, when)
}

func commitWorktree(t *testing.T, wt *gogit.Worktree, message string, when time.Time) string {
	t.Helper()
	sig := &object.Signature{Name: "Test Author", Email: "test@example.com", When: when}
	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

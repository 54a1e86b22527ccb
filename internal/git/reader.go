package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gogit "github.com/go-git/go-git/v5"
)

// Options configures a Reader.
type Options struct {
	RepoPath string
	Include  []string // Glob patterns to include
	Exclude  []string // Glob patterns to exclude
}

// Reader issues read-only queries against a Git repository. Every operation
// is a query: nothing in this package invokes a command capable of altering
// refs, HEAD, or the working tree.
//
// A Reader holds validated repository state from construction time. To point
// at a different repository, construct a new Reader.
type Reader struct {
	root string
	opts Options
}

// NewReader validates the repository path and creates a reader for it.
func NewReader(opts Options) (*Reader, error) {
	abs, err := filepath.Abs(opts.RepoPath)
	if err != nil {
		return nil, &RepositoryError{Path: opts.RepoPath, Err: err}
	}
	if _, err := gogit.PlainOpen(abs); err != nil {
		return nil, &RepositoryError{Path: abs, Err: err}
	}
	return &Reader{root: abs, opts: opts}, nil
}

// Root returns the absolute repository path.
func (r *Reader) Root() string { return r.root }

// ListRevisions enumerates every revision reachable from every ref, in the
// order git emits them (reverse-chronological). The order is not guaranteed
// to be topological.
func (r *Reader) ListRevisions(ctx context.Context) ([]Revision, error) {
	out, err := r.run(ctx, "log", "--oneline", "--no-color", "--all")
	if err != nil {
		return nil, &RepositoryError{Path: r.root, Err: err}
	}

	var revisions []Revision
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sha, subject, _ := strings.Cut(line, " ")
		revisions = append(revisions, Revision{SHA: sha, Subject: subject})
	}
	return revisions, nil
}

// FetchFileAt reads file content purely by revision-addressed lookup
// (git show <revision>:<path>). The path may be repository-relative or
// absolute; a path outside the repository root yields an absent result.
func (r *Reader) FetchFileAt(ctx context.Context, revision, path string) (FileContent, error) {
	rel, inside := r.relativize(path)
	if !inside {
		return FileContent{Path: path}, nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "-C", r.root, "show", revision+":"+rel)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isAbsenceMessage(stderr.String()) {
			return FileContent{Path: rel}, nil
		}
		return FileContent{Path: rel}, &FetchError{
			Revision: revision,
			Path:     rel,
			Err:      fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	return FileContent{Path: rel, Content: stdout.Bytes(), Present: true}, nil
}

// ListTrackedFiles lists currently tracked files matching the given glob
// patterns, further narrowed by the reader's include/exclude filters. It
// reads the index only; historical lookups go through FetchFileAt.
func (r *Reader) ListTrackedFiles(ctx context.Context, patterns ...string) ([]string, error) {
	args := []string{"ls-files", "-z"}
	if len(patterns) > 0 {
		args = append(args, "--")
		args = append(args, patterns...)
	}

	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, &RepositoryError{Path: r.root, Err: err}
	}

	var files []string
	for _, raw := range bytes.Split(out, []byte{0}) {
		path := string(raw)
		if path == "" {
			continue
		}
		if r.matchesFilters(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

// run executes a read-only git subcommand rooted at the repository.
func (r *Reader) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"-C", r.root}, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// relativize converts path to a repository-relative path. inside is false
// when the path escapes the repository root.
func (r *Reader) relativize(path string) (rel string, inside bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.root, path)
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// matchesFilters checks if a path matches the include/exclude filters.
func (r *Reader) matchesFilters(path string) bool {
	path = strings.ReplaceAll(path, "\\", "/")

	for _, pattern := range r.opts.Exclude {
		matched, _ := doublestar.Match(pattern, path)
		if matched {
			return false
		}
	}

	if len(r.opts.Include) == 0 {
		return true
	}

	for _, pattern := range r.opts.Include {
		matched, _ := doublestar.Match(pattern, path)
		if matched {
			return true
		}
	}

	return false
}

// isAbsenceMessage reports whether git show failed because the path does not
// exist at the revision, which is an absent outcome rather than an error.
func isAbsenceMessage(stderr string) bool {
	return strings.Contains(stderr, "does not exist in") ||
		strings.Contains(stderr, "exists on disk, but not in") ||
		strings.Contains(stderr, "is in the index, but not at")
}

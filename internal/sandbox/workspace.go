// Package sandbox materializes fetched file contents into ephemeral,
// revision-scoped directories for isolated analysis. A workspace lives for
// exactly one pipeline pass and is removed unconditionally at the end of
// that pass, including on error.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dfgviz/histflow/internal/git"
)

// Workspace is an ephemeral directory exclusively owned by one revision's
// processing step.
type Workspace struct {
	root  string
	paths []string
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Paths returns the absolute paths of all materialized files.
func (w *Workspace) Paths() []string { return w.paths }

// Close removes the workspace directory and everything in it. Callers
// downgrade a non-nil return to a warning; removal failure never blocks
// progression to the next revision.
func (w *Workspace) Close() error {
	if w.root == "" {
		return nil
	}
	err := os.RemoveAll(w.root)
	w.root = ""
	return err
}

// Materialize creates a directory unique to this invocation and writes each
// present file into it, preserving relative path structure. Absent files are
// skipped. The caller must Close the returned workspace on every exit path,
// even when Materialize itself is followed by an error.
func Materialize(revision string, files []git.FileContent) (*Workspace, error) {
	short := revision
	if len(short) > 8 {
		short = short[:8]
	}
	root, err := os.MkdirTemp("", "histflow_"+short+"_")
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}

	ws := &Workspace{root: root}
	for _, file := range files {
		if !file.Present {
			continue
		}
		dst := filepath.Join(root, filepath.FromSlash(file.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return ws, fmt.Errorf("create sandbox dir for %s: %w", file.Path, err)
		}
		if err := os.WriteFile(dst, file.Content, 0o644); err != nil {
			return ws, fmt.Errorf("write sandbox file %s: %w", file.Path, err)
		}
		ws.paths = append(ws.paths, dst)
	}

	return ws, nil
}

package git

import (
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// RefSnapshot records HEAD and every ref hash at a point in time. Comparing
// snapshots taken before and after a traversal verifies that the run issued
// no mutating operation.
type RefSnapshot struct {
	Head string
	Refs map[string]string
}

// Snapshot captures the current HEAD and all ref pointers.
func (r *Reader) Snapshot() (RefSnapshot, error) {
	repo, err := gogit.PlainOpen(r.root)
	if err != nil {
		return RefSnapshot{}, &RepositoryError{Path: r.root, Err: err}
	}

	snap := RefSnapshot{Refs: make(map[string]string)}

	// HEAD may be unborn in an empty repository; that still snapshots cleanly.
	if head, err := repo.Head(); err == nil {
		snap.Head = head.Hash().String()
	} else if err != plumbing.ErrReferenceNotFound {
		return RefSnapshot{}, &RepositoryError{Path: r.root, Err: err}
	}

	iter, err := repo.References()
	if err != nil {
		return RefSnapshot{}, &RepositoryError{Path: r.root, Err: err}
	}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference {
			snap.Refs[ref.Name().String()] = ref.Hash().String()
		}
		return nil
	})
	if err != nil {
		return RefSnapshot{}, &RepositoryError{Path: r.root, Err: err}
	}

	return snap, nil
}

// Equal reports whether two snapshots describe identical repository state.
func (s RefSnapshot) Equal(other RefSnapshot) bool {
	if s.Head != other.Head || len(s.Refs) != len(other.Refs) {
		return false
	}
	for name, hash := range s.Refs {
		if other.Refs[name] != hash {
			return false
		}
	}
	return true
}

// Diff returns a sorted description of refs that changed between snapshots.
func (s RefSnapshot) Diff(other RefSnapshot) []string {
	var changed []string
	if s.Head != other.Head {
		changed = append(changed, fmt.Sprintf("HEAD: %s -> %s", s.Head, other.Head))
	}
	for name, hash := range s.Refs {
		if got, ok := other.Refs[name]; !ok {
			changed = append(changed, fmt.Sprintf("%s: removed", name))
		} else if got != hash {
			changed = append(changed, fmt.Sprintf("%s: %s -> %s", name, hash, got))
		}
	}
	for name := range other.Refs {
		if _, ok := s.Refs[name]; !ok {
			changed = append(changed, fmt.Sprintf("%s: added", name))
		}
	}
	sort.Strings(changed)
	return changed
}

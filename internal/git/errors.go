package git

import "fmt"

// RepositoryError reports that the target path is not a valid repository or
// that revision enumeration failed. It aborts a run before any revision is
// processed.
type RepositoryError struct {
	Path string
	Err  error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Path, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// FetchError reports that a read-only content lookup failed unexpectedly,
// as opposed to the path simply not existing at the revision. Callers treat
// the file as absent for the current revision and continue.
type FetchError struct {
	Revision string
	Path     string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s:%s: %v", e.Revision, e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

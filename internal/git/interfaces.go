package git

import "context"

// RepositoryReader is the read-only query surface the traversal depends on.
// This abstraction allows for easier testing and potential alternative
// implementations.
type RepositoryReader interface {
	// ListRevisions enumerates every revision reachable from every ref.
	ListRevisions(ctx context.Context) ([]Revision, error)

	// FetchFileAt reads file content at a revision. Absence is reported via
	// FileContent.Present, not as an error.
	FetchFileAt(ctx context.Context, revision, path string) (FileContent, error)

	// ListTrackedFiles lists currently tracked files matching glob patterns.
	ListTrackedFiles(ctx context.Context, patterns ...string) ([]string, error)
}

// Compile-time interface conformance checks.
var (
	_ RepositoryReader = (*Reader)(nil)
	_ RepositoryReader = (*FakeReader)(nil)
)

package git

import "context"

// FakeReader is a test double for Reader. It serves predefined revisions and
// per-revision file contents without needing a real Git repository.
type FakeReader struct {
	Revisions []Revision
	// Contents maps revision SHA -> repository-relative path -> content.
	// A missing entry means the file is absent at that revision.
	Contents map[string]map[string][]byte
	Tracked  []string

	ListErr  error
	FetchErr map[string]error // keyed by revision SHA + ":" + path
}

// NewFakeReader creates a FakeReader with the given revisions and contents.
func NewFakeReader(revisions []Revision, contents map[string]map[string][]byte) *FakeReader {
	return &FakeReader{Revisions: revisions, Contents: contents}
}

// ListRevisions returns the predefined revisions or error.
func (f *FakeReader) ListRevisions(_ context.Context) ([]Revision, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Revisions, nil
}

// FetchFileAt returns predefined content, an absent result, or an injected error.
func (f *FakeReader) FetchFileAt(_ context.Context, revision, path string) (FileContent, error) {
	if err := f.FetchErr[revision+":"+path]; err != nil {
		return FileContent{Path: path}, err
	}
	content, ok := f.Contents[revision][path]
	if !ok {
		return FileContent{Path: path}, nil
	}
	return FileContent{Path: path, Content: content, Present: true}, nil
}

// ListTrackedFiles returns the predefined tracked file list.
func (f *FakeReader) ListTrackedFiles(_ context.Context, _ ...string) ([]string, error) {
	return f.Tracked, nil
}

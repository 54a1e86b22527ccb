package git

// Revision identifies a single commit in the repository's history.
type Revision struct {
	SHA     string
	Subject string
}

// Short returns an abbreviated form of the revision id for display.
func (r Revision) Short() string {
	if len(r.SHA) <= 8 {
		return r.SHA
	}
	return r.SHA[:8]
}

// FileContent is the outcome of a revision-addressed content lookup.
// Absence is a first-class outcome, not a failure: Present is false when the
// path did not exist at the revision or resolves outside the repository root.
type FileContent struct {
	Path    string // repository-relative
	Content []byte
	Present bool
}

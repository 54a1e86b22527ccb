package analysis

// Store accumulates well-formed results keyed by revision id. It is
// append-only during a single run and exclusively owned by the traversal
// worker; consumers receive copies via Export, never the live map.
type Store struct {
	// KeepEmpty stores results even when both variables and metadata are
	// empty. The default discards them, matching the rule that a revision
	// without dataflow data produces no entry.
	KeepEmpty bool

	results map[string]*Result
	order   []string
}

// NewStore creates an empty result store.
func NewStore(keepEmpty bool) *Store {
	return &Store{KeepEmpty: keepEmpty, results: make(map[string]*Result)}
}

// Record stores the result for a revision if it is present and meaningful.
// It reports whether the result was stored. Absent results (nil) are never
// stored; empty results are stored only when KeepEmpty is set.
func (s *Store) Record(revision string, result *Result) bool {
	if result == nil {
		return false
	}
	if result.Empty() && !s.KeepEmpty {
		return false
	}
	if _, exists := s.results[revision]; !exists {
		s.order = append(s.order, revision)
	}
	s.results[revision] = result
	return true
}

// Get returns the stored result for a revision, or nil.
func (s *Store) Get(revision string) *Result {
	return s.results[revision]
}

// Len returns the number of stored revisions.
func (s *Store) Len() int { return len(s.results) }

// Revisions returns stored revision ids in insertion order.
func (s *Store) Revisions() []string {
	return append([]string(nil), s.order...)
}

// Export returns the accumulated results as a deep copy for serialization.
// The consumer never receives a reference into the live store: mutating the
// returned map, a result, or its nested values does not affect stored state.
func (s *Store) Export() map[string]*Result {
	out := make(map[string]*Result, len(s.results))
	for revision, result := range s.results {
		out[revision] = result.clone()
	}
	return out
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	return &Result{Variables: cloneMap(r.Variables), Metadata: cloneMap(r.Metadata)}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the nesting JSON decoding produces: maps, slices, and
// scalar leaves.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return t
	}
}

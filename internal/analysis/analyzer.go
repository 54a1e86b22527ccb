// Package analysis defines the contract for the external source-analysis
// capability and aggregates its per-revision results.
package analysis

import "context"

// Request is the uniform input contract for an analysis capability.
type Request struct {
	// Files are absolute paths to materialized source files.
	Files []string
	// TargetFunction optionally narrows the analysis to one function.
	TargetFunction string
	// ExtraArgs carries compiler-style arguments for capability variants
	// that require them (sourced from the build-flag provider).
	ExtraArgs []string
}

// Result is the structured output of one analyzer invocation. Variables maps
// identifiers to their dataflow facts; Metadata maps auxiliary facts such as
// discovered function names. The core validates results, it never constructs
// them.
type Result struct {
	Variables map[string]any `json:"variables"`
	Metadata  map[string]any `json:"metadata"`
}

// Empty reports whether the result carries no dataflow data at all.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Variables) == 0 && len(r.Metadata) == 0)
}

// Functions returns discovered function names from metadata, when present.
func (r *Result) Functions() []string {
	if r == nil {
		return nil
	}
	for _, key := range []string{"functions", "defined_functions"} {
		raw, ok := r.Metadata[key].([]any)
		if !ok {
			continue
		}
		names := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

// Analyzer is the opaque, swappable analysis capability. A (nil, nil) return
// is the explicit no-result signal; any error is an analysis failure the
// caller downgrades to "no result for this revision". Each call must be
// independent: no warm state is required between calls.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a plain function to the Analyzer interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Analyze calls f.
func (f Func) Analyze(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

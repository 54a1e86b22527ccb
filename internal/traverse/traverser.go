// Package traverse drives the per-revision analysis pipeline: fetch file
// contents at each revision, materialize them into an ephemeral sandbox,
// invoke the external analyzer, and aggregate well-formed results. The
// repository is never mutated; every per-revision failure is contained at
// the revision boundary.
package traverse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dfgviz/histflow/internal/analysis"
	"github.com/dfgviz/histflow/internal/git"
	"github.com/dfgviz/histflow/internal/sandbox"
)

// ErrAlreadyRunning is returned when Run is called while a traversal is
// active. A second run is rejected synchronously, never queued.
var ErrAlreadyRunning = errors.New("traversal already running")

// Options configures a Traverser.
type Options struct {
	// KeepEmpty stores revisions whose analysis legitimately found nothing
	// instead of discarding them.
	KeepEmpty bool
	// RevisionTimeout bounds one revision's full pipeline pass (and the
	// initial enumeration). Zero disables the bound.
	RevisionTimeout time.Duration
}

// Snapshotter captures repository ref state. Readers that support it get
// their read-only guarantee verified after every run.
type Snapshotter interface {
	Snapshot() (git.RefSnapshot, error)
}

// Traverser orchestrates a full history traversal. Only one traversal may be
// active per instance.
type Traverser struct {
	reader   git.RepositoryReader
	analyzer analysis.Analyzer
	opts     Options
	running  atomic.Bool
}

// New creates a traverser over the given reader and analyzer.
func New(reader git.RepositoryReader, analyzer analysis.Analyzer, opts Options) *Traverser {
	return &Traverser{reader: reader, analyzer: analyzer, opts: opts}
}

// RunOptions carries the per-run inputs.
type RunOptions struct {
	// Files is the caller-supplied set of repository-relative paths to
	// analyze across history.
	Files []string
	// TargetFunction optionally narrows the analysis to one function.
	TargetFunction string
	// ExtraArgs carries compiler-style arguments for analyzer variants that
	// require them.
	ExtraArgs []string
	// Progress receives ordered progress events. May be nil.
	Progress ProgressFunc
}

// Run performs a full traversal and returns the result store. Enumeration
// failure is fatal; any other failure is contained at the revision boundary
// and surfaced as a progress event, so the run always reaches the last
// revision. Cancellation is cooperative: it is honored between revisions,
// and an in-flight revision always completes its pipeline pass so the
// sandbox cleanup invariant holds. On cancellation the partial store is
// returned together with the context error.
func (t *Traverser) Run(ctx context.Context, run RunOptions) (*analysis.Store, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer t.running.Store(false)

	emit := run.Progress
	if emit == nil {
		emit = func(Event) {}
	}

	var before git.RefSnapshot
	snapshotter, verifiable := t.reader.(Snapshotter)
	if verifiable {
		var err error
		before, err = snapshotter.Snapshot()
		if err != nil {
			return nil, err
		}
	}

	enumCtx, cancel := t.boundedContext(ctx)
	revisions, err := t.reader.ListRevisions(enumCtx)
	cancel()
	if err != nil {
		return nil, err
	}

	total := len(revisions)
	emit(Event{Stage: StageEnumerate, Message: fmt.Sprintf("found %d revision(s)", total), Total: total})

	store := analysis.NewStore(t.opts.KeepEmpty)
	var runErr error
	for i, rev := range revisions {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		t.processRevision(ctx, rev, run, store, emit, i+1, total)
	}

	// Verify even on cancellation: an interrupted run must still prove the
	// repository was left untouched.
	if verifiable {
		t.verify(before, snapshotter, emit)
	}

	return store, runErr
}

// processRevision runs one pipeline pass. Failures are reported via emit and
// never propagate; the sandbox, once created, is removed on every exit path.
func (t *Traverser) processRevision(ctx context.Context, rev git.Revision, run RunOptions, store *analysis.Store, emit ProgressFunc, current, total int) {
	rctx, cancel := t.boundedContext(ctx)
	defer cancel()

	emit(Event{
		Stage:    StageFetch,
		Revision: rev.SHA,
		Message:  fmt.Sprintf("processing revision %d/%d: %s", current, total, rev.Short()),
		Current:  current,
		Total:    total,
	})

	contents := make([]git.FileContent, 0, len(run.Files))
	present := 0
	for _, path := range run.Files {
		fc, err := t.reader.FetchFileAt(rctx, rev.SHA, path)
		if err != nil {
			// File-granularity failure: treat as absent and keep going.
			emit(Event{Stage: StageFetch, Revision: rev.SHA, Warning: true,
				Message: fmt.Sprintf("fetch failed for %s at %s, treating as absent: %v", path, rev.Short(), err)})
			continue
		}
		if fc.Present {
			present++
		}
		contents = append(contents, fc)
	}

	if present == 0 {
		emit(Event{Stage: StageFetch, Revision: rev.SHA,
			Message: fmt.Sprintf("no files found at revision %s", rev.Short())})
		return
	}

	emit(Event{Stage: StageMaterialize, Revision: rev.SHA,
		Message: fmt.Sprintf("materializing %d file(s) for %s", present, rev.Short())})

	ws, err := sandbox.Materialize(rev.SHA, contents)
	if ws != nil {
		defer func() {
			emit(Event{Stage: StageCleanup, Revision: rev.SHA,
				Message: fmt.Sprintf("removing sandbox for %s", rev.Short())})
			if cerr := ws.Close(); cerr != nil {
				emit(Event{Stage: StageCleanup, Revision: rev.SHA, Warning: true,
					Message: fmt.Sprintf("could not remove sandbox for %s: %v", rev.Short(), cerr)})
			}
		}()
	}
	if err != nil {
		emit(Event{Stage: StageMaterialize, Revision: rev.SHA, Warning: true,
			Message: fmt.Sprintf("sandbox failed for %s, skipping revision: %v", rev.Short(), err)})
		return
	}

	emit(Event{Stage: StageAnalyze, Revision: rev.SHA,
		Message: fmt.Sprintf("analyzing revision %s", rev.Short())})

	result, err := t.analyzer.Analyze(rctx, analysis.Request{
		Files:          ws.Paths(),
		TargetFunction: run.TargetFunction,
		ExtraArgs:      run.ExtraArgs,
	})
	if err != nil {
		emit(Event{Stage: StageAnalyze, Revision: rev.SHA, Warning: true,
			Message: fmt.Sprintf("analysis failed for revision %s: %v", rev.Short(), err)})
		return
	}
	if result == nil {
		emit(Event{Stage: StageAnalyze, Revision: rev.SHA,
			Message: fmt.Sprintf("analysis returned no result for revision %s", rev.Short())})
		return
	}

	if store.Record(rev.SHA, result) {
		emit(Event{Stage: StageAggregate, Revision: rev.SHA,
			Message: fmt.Sprintf("stored result for revision %s (%d variable(s))", rev.Short(), len(result.Variables))})
	} else {
		emit(Event{Stage: StageAggregate, Revision: rev.SHA,
			Message: fmt.Sprintf("no dataflow data for revision %s", rev.Short())})
	}
}

// verify re-snapshots refs after the run and reports any drift. A drift here
// means something outside this process mutated the repository mid-run, or an
// invariant was broken; either way the consumer should know.
func (t *Traverser) verify(before git.RefSnapshot, snapshotter Snapshotter, emit ProgressFunc) {
	after, err := snapshotter.Snapshot()
	if err != nil {
		emit(Event{Stage: StageVerify, Warning: true,
			Message: fmt.Sprintf("could not verify repository state: %v", err)})
		return
	}
	if !before.Equal(after) {
		emit(Event{Stage: StageVerify, Warning: true,
			Message: "repository refs changed during the run: " + strings.Join(before.Diff(after), ", ")})
		return
	}
	emit(Event{Stage: StageVerify, Message: "repository state unchanged"})
}

func (t *Traverser) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.opts.RevisionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.opts.RevisionTimeout)
}

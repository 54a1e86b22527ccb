package traverse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dfgviz/histflow/internal/analysis"
	"github.com/dfgviz/histflow/internal/git"
)

var (
	sha1 = strings.Repeat("1", 40)
	sha2 = strings.Repeat("2", 40)
	sha3 = strings.Repeat("3", 40)
)

// historyReader serves a three-revision history, newest first: alpha.py is
// introduced in the oldest revision, beta.py is added in the middle one, and
// alpha.py is deleted in the newest.
func historyReader() *git.FakeReader {
	return git.NewFakeReader(
		[]git.Revision{
			{SHA: sha3, Subject: "delete alpha"},
			{SHA: sha2, Subject: "add beta"},
			{SHA: sha1, Subject: "add alpha"},
		},
		map[string]map[string][]byte{
			sha1: {"src/alpha.py": []byte("alpha")},
			sha2: {"src/alpha.py": []byte("alpha"), "src/beta.py": []byte("beta")},
			sha3: {"src/beta.py": []byte("beta")},
		},
	)
}

// contentAnalyzer reads the materialized files and reports one variable per
// whitespace-separated token, so stored results reflect exactly what reached
// the sandbox.
func contentAnalyzer() analysis.Func {
	return func(_ context.Context, req analysis.Request) (*analysis.Result, error) {
		vars := make(map[string]any)
		for _, path := range req.Files {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			for _, name := range strings.Fields(string(data)) {
				vars[name] = map[string]any{"file": filepath.Base(path)}
			}
		}
		if len(vars) == 0 {
			return nil, nil
		}
		return &analysis.Result{Variables: vars, Metadata: map[string]any{}}, nil
	}
}

func runFiles() []string { return []string{"src/alpha.py", "src/beta.py"} }

func TestRun_TracksFilesAcrossHistory(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	tr := New(historyReader(), contentAnalyzer(), Options{})
	store, err := tr.Run(context.Background(), RunOptions{Files: runFiles()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.Len() != 3 {
		t.Fatalf("expected 3 stored revisions, got %d", store.Len())
	}

	expected := map[string][]string{
		sha1: {"alpha"},
		sha2: {"alpha", "beta"},
		sha3: {"beta"},
	}
	for sha, names := range expected {
		result := store.Get(sha)
		if result == nil {
			t.Fatalf("missing result for %s", sha[:8])
		}
		if len(result.Variables) != len(names) {
			t.Fatalf("revision %s: expected %d variables, got %v", sha[:8], len(names), result.Variables)
		}
		for _, name := range names {
			if _, ok := result.Variables[name]; !ok {
				t.Fatalf("revision %s: missing variable %q", sha[:8], name)
			}
		}
	}

	newest := store.Get(sha3)
	if newest == nil {
		t.Fatalf("deletion revision must still be stored")
	}
	if _, ok := newest.Variables["alpha"]; ok {
		t.Fatalf("deleted file's variables must not appear at the deletion revision")
	}

	// Every sandbox must be gone once the run returns.
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "histflow_") {
			t.Fatalf("leftover sandbox directory: %s", e.Name())
		}
	}
}

func TestRun_StoresNewestFirst(t *testing.T) {
	tr := New(historyReader(), contentAnalyzer(), Options{})
	store, err := tr.Run(context.Background(), RunOptions{Files: runFiles()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	order := store.Revisions()
	want := []string{sha3, sha2, sha1}
	if len(order) != len(want) {
		t.Fatalf("expected %d revisions, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %s, expected %s", i, order[i][:8], want[i][:8])
		}
	}
}

func TestRun_AnalyzerFailureIsContained(t *testing.T) {
	calls := 0
	failing := analysis.Func(func(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("analyzer crashed")
		}
		return contentAnalyzer()(ctx, req)
	})

	var warnings []Event
	tr := New(historyReader(), failing, Options{})
	store, err := tr.Run(context.Background(), RunOptions{
		Files: runFiles(),
		Progress: func(ev Event) {
			if ev.Warning {
				warnings = append(warnings, ev)
			}
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.Len() != 2 {
		t.Fatalf("expected 2 stored revisions, got %d", store.Len())
	}
	if store.Get(sha2) != nil {
		t.Fatalf("failing revision must not be stored")
	}
	if store.Get(sha1) == nil {
		t.Fatalf("revisions after the failing one must still be processed")
	}

	if len(warnings) != 1 || warnings[0].Stage != StageAnalyze || warnings[0].Revision != sha2 {
		t.Fatalf("expected one analyze warning for %s, got %v", sha2[:8], warnings)
	}
}

func TestRun_FetchFailureTreatedAsAbsent(t *testing.T) {
	reader := historyReader()
	reader.Contents[sha2] = map[string][]byte{"src/alpha.py": []byte("alpha")}
	reader.FetchErr = map[string]error{sha2 + ":src/alpha.py": errors.New("object store corrupt")}

	var warnings []Event
	tr := New(reader, contentAnalyzer(), Options{})
	store, err := tr.Run(context.Background(), RunOptions{
		Files: runFiles(),
		Progress: func(ev Event) {
			if ev.Warning {
				warnings = append(warnings, ev)
			}
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.Get(sha2) != nil {
		t.Fatalf("revision with no fetchable files must not be stored")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 stored revisions, got %d", store.Len())
	}

	if len(warnings) != 1 || warnings[0].Stage != StageFetch {
		t.Fatalf("expected one fetch warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0].Message, "treating as absent") {
		t.Fatalf("unexpected warning message: %q", warnings[0].Message)
	}
}

func TestRun_SandboxFailureIsContained(t *testing.T) {
	// A nonexistent temp root makes every sandbox creation fail.
	t.Setenv("TMPDIR", filepath.Join(t.TempDir(), "missing"))

	calls := 0
	counting := analysis.Func(func(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
		calls++
		return contentAnalyzer()(ctx, req)
	})

	var warnings []Event
	tr := New(historyReader(), counting, Options{})
	store, err := tr.Run(context.Background(), RunOptions{
		Files: runFiles(),
		Progress: func(ev Event) {
			if ev.Warning {
				warnings = append(warnings, ev)
			}
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.Len() != 0 {
		t.Fatalf("revisions without a sandbox must not be stored, got %d", store.Len())
	}
	if calls != 0 {
		t.Fatalf("analyzer must not run without a sandbox, ran %d times", calls)
	}

	// One materialize warning per revision proves the run kept going past
	// each failure.
	seen := map[string]bool{}
	for _, ev := range warnings {
		if ev.Stage != StageMaterialize {
			t.Fatalf("unexpected warning stage %s: %q", ev.Stage, ev.Message)
		}
		if !strings.Contains(ev.Message, "skipping revision") {
			t.Fatalf("unexpected warning message: %q", ev.Message)
		}
		seen[ev.Revision] = true
	}
	for _, sha := range []string{sha1, sha2, sha3} {
		if !seen[sha] {
			t.Fatalf("missing sandbox warning for %s", sha[:8])
		}
	}
}

func TestRun_EnumerationFailureIsFatal(t *testing.T) {
	reader := historyReader()
	reader.ListErr = errors.New("not a repository")

	tr := New(reader, contentAnalyzer(), Options{})
	store, err := tr.Run(context.Background(), RunOptions{Files: runFiles()})
	if err == nil {
		t.Fatalf("expected enumeration error")
	}
	if store != nil {
		t.Fatalf("no store must be returned on enumeration failure")
	}
}

func TestRun_SecondRunRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := analysis.Func(func(context.Context, analysis.Request) (*analysis.Result, error) {
		close(entered)
		<-release
		return nil, nil
	})

	reader := git.NewFakeReader(
		[]git.Revision{{SHA: sha1, Subject: "add alpha"}},
		map[string]map[string][]byte{sha1: {"src/alpha.py": []byte("alpha")}},
	)

	tr := New(reader, blocking, Options{})
	done := make(chan error, 1)
	go func() {
		_, err := tr.Run(context.Background(), RunOptions{Files: []string{"src/alpha.py"}})
		done <- err
	}()

	<-entered
	if _, err := tr.Run(context.Background(), RunOptions{Files: []string{"src/alpha.py"}}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Once the first run finishes, a new run is accepted again.
	if _, err := tr.Run(context.Background(), RunOptions{Files: []string{"src/alpha.py"}}); err != nil {
		t.Fatalf("run after completion failed: %v", err)
	}
}

func TestRun_CancellationReturnsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	cancelling := analysis.Func(func(c context.Context, req analysis.Request) (*analysis.Result, error) {
		calls++
		cancel()
		return contentAnalyzer()(c, req)
	})

	tr := New(historyReader(), cancelling, Options{})
	store, err := tr.Run(ctx, RunOptions{Files: runFiles()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected exactly one revision in flight, analyzer ran %d times", calls)
	}
	if store == nil || store.Len() != 1 {
		t.Fatalf("expected the in-flight revision's partial result, got %v", store)
	}
	if store.Get(sha3) == nil {
		t.Fatalf("in-flight revision must complete before cancellation takes effect")
	}
}

// snapshottingReader adds ref snapshots to the fake so verification paths
// can be exercised without a real repository.
type snapshottingReader struct {
	*git.FakeReader
}

func (r *snapshottingReader) Snapshot() (git.RefSnapshot, error) {
	return git.RefSnapshot{
		Head: sha3,
		Refs: map[string]string{"refs/heads/main": sha3},
	}, nil
}

func TestRun_CancelledRunStillVerifiesRefs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelling := analysis.Func(func(c context.Context, req analysis.Request) (*analysis.Result, error) {
		cancel()
		return contentAnalyzer()(c, req)
	})

	var verify []Event
	tr := New(&snapshottingReader{FakeReader: historyReader()}, cancelling, Options{})
	store, err := tr.Run(ctx, RunOptions{
		Files: runFiles(),
		Progress: func(ev Event) {
			if ev.Stage == StageVerify {
				verify = append(verify, ev)
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store == nil || store.Len() != 1 {
		t.Fatalf("expected the in-flight revision's partial result, got %v", store)
	}

	if len(verify) != 1 || verify[0].Warning {
		t.Fatalf("an interrupted run must still verify refs cleanly, got %v", verify)
	}
}

func TestRun_EventStageOrder(t *testing.T) {
	var events []Event
	tr := New(historyReader(), contentAnalyzer(), Options{})
	if _, err := tr.Run(context.Background(), RunOptions{
		Files:    runFiles(),
		Progress: func(ev Event) { events = append(events, ev) },
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(events) == 0 || events[0].Stage != StageEnumerate {
		t.Fatalf("first event must be enumeration, got %v", events)
	}
	if events[0].Total != 3 {
		t.Fatalf("enumeration total = %d, expected 3", events[0].Total)
	}

	want := []Stage{StageFetch, StageMaterialize, StageAnalyze, StageAggregate, StageCleanup}
	for _, sha := range []string{sha1, sha2, sha3} {
		var stages []Stage
		for _, ev := range events {
			if ev.Revision == sha {
				stages = append(stages, ev.Stage)
			}
		}
		if len(stages) != len(want) {
			t.Fatalf("revision %s: expected %d events, got %v", sha[:8], len(want), stages)
		}
		for i := range want {
			if stages[i] != want[i] {
				t.Fatalf("revision %s: stage[%d] = %s, expected %s", sha[:8], i, stages[i], want[i])
			}
		}
	}
}

func TestRun_KeepEmptyStoresEmptyResults(t *testing.T) {
	empty := analysis.Func(func(context.Context, analysis.Request) (*analysis.Result, error) {
		return &analysis.Result{Variables: map[string]any{}, Metadata: map[string]any{}}, nil
	})

	tr := New(historyReader(), empty, Options{})
	store, err := tr.Run(context.Background(), RunOptions{Files: runFiles()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("empty results must be discarded by default, got %d", store.Len())
	}

	tr = New(historyReader(), empty, Options{KeepEmpty: true})
	store, err = tr.Run(context.Background(), RunOptions{Files: runFiles()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.Len() != 3 {
		t.Fatalf("KeepEmpty must store empty results, got %d", store.Len())
	}
}

func TestRun_NoResultSignalSkipsRevision(t *testing.T) {
	silent := analysis.Func(func(context.Context, analysis.Request) (*analysis.Result, error) {
		return nil, nil
	})

	tr := New(historyReader(), silent, Options{KeepEmpty: true})
	store, err := tr.Run(context.Background(), RunOptions{Files: runFiles()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("no-result revisions must never be stored, got %d", store.Len())
	}
}

package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Exec runs an external analyzer command once per invocation. The command
// receives any configured base arguments, then --function <name> when a
// target function is set, then the extra compiler-style arguments, then the
// file paths. It must print a {"variables": ..., "metadata": ...} JSON
// document to stdout, or "null"/nothing to signal no result.
type Exec struct {
	Command string
	Args    []string
	// Timeout bounds a single invocation so one pathological revision or
	// oversized file cannot stall the whole run. Zero means no bound beyond
	// the caller's context.
	Timeout time.Duration
}

// Analyze invokes the external command and decodes its output.
func (e *Exec) Analyze(ctx context.Context, req Request) (*Result, error) {
	if e.Command == "" {
		return nil, fmt.Errorf("no analyzer command configured")
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append([]string{}, e.Args...)
	if req.TargetFunction != "" {
		args = append(args, "--function", req.TargetFunction)
	}
	args = append(args, req.ExtraArgs...)
	args = append(args, req.Files...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("analyzer %s: %w: %s", e.Command, err, strings.TrimSpace(stderr.String()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 || bytes.Equal(out, []byte("null")) {
		return nil, nil
	}

	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("analyzer %s: malformed output: %w", e.Command, err)
	}
	if result.Variables == nil {
		result.Variables = map[string]any{}
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	return &result, nil
}

// Compile-time interface conformance checks.
var (
	_ Analyzer = (*Exec)(nil)
	_ Analyzer = (Func)(nil)
)

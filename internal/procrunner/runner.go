// Package procrunner executes external analyzer tools with a timeout, a
// bounded output buffer and UTF-8-safe capture of stdout/stderr.
package procrunner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxOutputBytes bounds each captured stream when the caller does not
// say otherwise. Scanner JSON reports on large repos can run into megabytes.
const DefaultMaxOutputBytes = 16 << 20

// TruncationMarker is appended to a stream that exceeded its budget.
const TruncationMarker = "\n...[output truncated]..."

// Spec describes one tool invocation.
type Spec struct {
	Argv           []string
	Env            map[string]string
	Dir            string
	Timeout        time.Duration
	MaxOutputBytes int
}

// Result is the captured outcome of a tool invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	WallTime time.Duration
	TimedOut bool
}

// Runner launches external tools. It holds no per-invocation state and is
// safe for concurrent use.
type Runner struct {
	logger *zap.Logger
}

// New creates a Runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger.Named("procrunner")}
}

// Run executes the spec and captures its output. The child's process tree is
// terminated when the timeout elapses or ctx is cancelled; in the timeout
// case Run returns TimedOut=true together with whatever output was buffered,
// not an error. A non-zero exit is reported through ExitCode, also not an
// error; the error return covers spawn failures only.
func (r *Runner) Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, errors.New("procrunner: empty argv")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	maxBytes := spec.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxOutputBytes
	}

	cmd := exec.CommandContext(runCtx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = buildEnv(spec.Env)

	stdout := newLimitedBuffer(maxBytes)
	stderr := newLimitedBuffer(maxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// Kill the whole process group, not just the direct child; scanners
	// routinely fork helpers (git subprocesses, JVMs).
	setProcAttributes(cmd)
	cmd.Cancel = func() error { return killTree(cmd) }
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	wall := time.Since(start)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		WallTime: wall,
	}

	if err != nil {
		timedOut := runCtx.Err() != nil && ctx.Err() == nil
		if timedOut {
			res.TimedOut = true
			res.ExitCode = -1
			r.logger.Warn("Tool timed out",
				zap.String("tool", spec.Argv[0]),
				zap.Duration("timeout", spec.Timeout))
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		// Spawn failure: binary missing, permission denied.
		return res, err
	}

	res.ExitCode = 0
	return res, nil
}

// buildEnv merges the ambient environment with the spec overrides and forces
// UTF-8 child output so Unicode tool output is not garbled on Windows.
func buildEnv(overrides map[string]string) []string {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	merged["PYTHONIOENCODING"] = "utf-8"
	merged["PYTHONUTF8"] = "1"
	for k, v := range overrides {
		merged[k] = v
	}
	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

// limitedBuffer captures at most max bytes and remembers whether anything was
// dropped. Writes never fail so the child is not killed by a full buffer.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	max       int
	truncated bool
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := b.max - len(b.buf); remaining > 0 {
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
			b.truncated = true
		} else {
			b.buf = append(b.buf, p...)
		}
	} else {
		b.truncated = true
	}
	return len(p), nil
}

// String returns the captured bytes as valid UTF-8, invalid sequences
// replaced, with the truncation marker when the budget was exceeded.
func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.ToValidUTF8(string(b.buf), "�")
	if b.truncated {
		s += TruncationMarker
	}
	return s
}

// Tail returns the last n bytes of s, for stderr excerpts in error reports.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const (
	// DefaultTailBytes bounds captured stdout/stderr per process
	DefaultTailBytes = 256 * 1024

	// DefaultWaitDelay bounds how long output pipes may outlive a killed process
	DefaultWaitDelay = 2 * time.Second
)

// ErrProcess marks evaluator processes that failed to start or exited non-zero
var ErrProcess = errors.New("evaluator process failed")

// Output is what a finished process left behind
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes one command to completion.
// A non-nil error wraps ErrProcess (or the context error) and Output holds what was captured.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands as child processes with silent, bounded capture
type ExecRunner struct {
	Dir       string        // working directory of the evaluator
	TailBytes int           // 0 = DefaultTailBytes
	WaitDelay time.Duration // 0 = DefaultWaitDelay
}

// Run starts the process and waits; context cancellation kills its whole process group
func (r ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	limit := r.TailBytes
	if limit <= 0 {
		limit = DefaultTailBytes
	}

	stdout := newTailBuffer(limit)
	stderr := newTailBuffer(limit)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = r.Dir
	isolateProcessGroup(c)
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = r.WaitDelay
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultWaitDelay
	}

	err := c.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		return out, fmt.Errorf("%w: %w", ErrProcess, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, fmt.Errorf("%w: exit code %d", ErrProcess, out.ExitCode)
	}

	out.ExitCode = -1
	return out, fmt.Errorf("%w: %w", ErrProcess, err)
}

// tailBuffer keeps only the last limit bytes written to it
type tailBuffer struct {
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.limit {
		b.buf = append(b.buf[:0], p[n-b.limit:]...)
		return n, nil
	}

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}

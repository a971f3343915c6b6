package gitcli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// DefaultMaxBuffer bounds captured stdout and stderr per invocation (2 MiB).
const DefaultMaxBuffer = 2 * 1024 * 1024

// Result is the captured output of one git invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Executor runs git with args inside dir.
type Executor interface {
	Run(ctx context.Context, dir string, args ...string) (Result, error)
}

// ExecExecutor runs the git binary through os/exec.
type ExecExecutor struct {
	// Binary is the git executable. Empty means "git" from PATH.
	Binary string

	// MaxBuffer bounds each of stdout and stderr. Non-positive means DefaultMaxBuffer.
	MaxBuffer int64
}

// NewExecExecutor creates an ExecExecutor with the given capture limit.
func NewExecExecutor(maxBuffer int64) *ExecExecutor {
	return &ExecExecutor{MaxBuffer: maxBuffer}
}

// Run executes git. The process is killed when ctx is cancelled.
// Output beyond MaxBuffer fails the call with ErrOutputLimit instead of being truncated.
func (e *ExecExecutor) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	binary := e.Binary
	if binary == "" {
		binary = "git"
	}

	limit := e.MaxBuffer
	if limit <= 0 {
		limit = DefaultMaxBuffer
	}

	cmd := exec.CommandContext(ctx, binary, append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_MERGE_AUTOEDIT=no")

	stdout := newBoundedBuffer(limit)
	stderr := newBoundedBuffer(limit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	op, opArgs := splitArgs(args)

	if stdout.Overflowed() || stderr.Overflowed() {
		return res, &CommandError{
			Operation: op,
			Args:      opArgs,
			Stderr:    res.Stderr,
			Err:       fmt.Errorf("%w (%d bytes)", ErrOutputLimit, limit),
		}
	}

	if runErr != nil {
		return res, &CommandError{
			Operation: op,
			Args:      opArgs,
			Stderr:    res.Stderr,
			Err:       fmt.Errorf("%w: %w", ErrCommandFailed, runErr),
		}
	}

	return res, nil
}

func splitArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}

	return args[0], args[1:]
}

// boundedBuffer collects output up to a limit and reports overflow.
// Writes past the limit return ErrOutputLimit so the copy goroutine stops.
type boundedBuffer struct {
	mu       sync.Mutex
	buf      []byte
	limit    int64
	overflow bool
}

func newBoundedBuffer(limit int64) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - int64(len(b.buf))
	if int64(len(p)) > room {
		written := 0
		if room > 0 {
			b.buf = append(b.buf, p[:room]...)
			written = int(room)
		}

		b.overflow = true

		return written, ErrOutputLimit
	}

	b.buf = append(b.buf, p...)

	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}

func (b *boundedBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.overflow
}

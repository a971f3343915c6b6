// Package gitcli runs git as a subprocess against a local working checkout.
package gitcli

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommandFailed marks a git invocation that exited with a non-zero status.
	ErrCommandFailed = errors.New("git command failed")

	// ErrOutputLimit marks a git invocation whose output exceeded the capture limit.
	ErrOutputLimit = errors.New("git output exceeded buffer limit")

	// ErrStderrOutput marks a query that wrote to stderr; queries treat that as failure.
	ErrStderrOutput = errors.New("git wrote to stderr")

	// ErrUnexpectedOutput marks output that could not be parsed.
	ErrUnexpectedOutput = errors.New("unexpected git output")
)

// CommandError describes a failed git invocation.
type CommandError struct {
	Operation string
	Args      []string
	Stderr    string
	Err       error
}

func (e *CommandError) Error() string {
	msg := "git " + e.Operation + " failed"

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error { return e.Err }

package gitcli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

// DefaultRemote is the remote branches are pushed to.
const DefaultRemote = "origin"

// Repo runs replay operations against the checkout at Path.
// It implements both replay.Workspace and replay.Enumerator.
type Repo struct {
	path   string
	remote string
	exec   Executor
	logger *slog.Logger
	tracer trace.Tracer
}

// NewRepo creates a Repo for the checkout at path.
func NewRepo(path string, exec Executor, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}

	return &Repo{
		path:   path,
		remote: DefaultRemote,
		exec:   exec,
		logger: logger,
		tracer: noop.NewTracerProvider().Tracer("replayer.gitcli"),
	}
}

// WithTracer makes every git invocation emit a "git.<op>" span.
func (r *Repo) WithTracer(tracer trace.Tracer) *Repo {
	if tracer != nil {
		r.tracer = tracer
	}

	return r
}

// Path returns the checkout path.
func (r *Repo) Path() string { return r.path }

// AbortMerge runs "git merge --abort".
func (r *Repo) AbortMerge(ctx context.Context) error {
	_, err := r.run(ctx, "merge", "--abort")

	return err
}

// Checkout runs "git checkout <branch>".
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "checkout", branch)

	return err
}

// Merge runs a three-way merge of commit into the current branch without
// opening an editor for the merge message.
func (r *Repo) Merge(ctx context.Context, commit replay.CommitRef) error {
	_, err := r.run(ctx, "merge", "--no-edit", commit.String())

	return err
}

// Push runs "git push origin <branch>".
func (r *Repo) Push(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "push", r.remote, branch)

	return err
}

// Count returns the number of commits reachable from "from" and not from "to".
func (r *Repo) Count(ctx context.Context, from, to string) (int, error) {
	res, err := r.query(ctx, "rev-list", "--count", rangeSpec(from, to))
	if err != nil {
		return 0, replay.NewEnumerationError(from, to, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, replay.NewEnumerationError(from, to, fmt.Errorf("%w: count %q", ErrUnexpectedOutput, res.Stdout))
	}

	return count, nil
}

// List returns the commits reachable from "from" and not from "to", oldest first.
func (r *Repo) List(ctx context.Context, from, to string) (replay.Sequence, error) {
	res, err := r.query(ctx, "rev-list", "--reverse", rangeSpec(from, to))
	if err != nil {
		return nil, replay.NewEnumerationError(from, to, err)
	}

	return parseRevList(res.Stdout), nil
}

func (r *Repo) run(ctx context.Context, args ...string) (Result, error) {
	op, _ := splitArgs(args)

	ctx, span := r.tracer.Start(ctx, "git."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.StringSlice("git.args", args),
			attribute.String("git.path", r.path),
		))
	defer span.End()

	r.logger.DebugContext(ctx, "git", "args", args, "path", r.path)

	res, err := r.exec.Run(ctx, r.path, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}

	return res, err
}

// query runs a read-only command. Anything on stderr counts as failure.
func (r *Repo) query(ctx context.Context, args ...string) (Result, error) {
	res, err := r.run(ctx, args...)
	if err != nil {
		return res, err
	}

	if strings.TrimSpace(res.Stderr) != "" {
		op, opArgs := splitArgs(args)

		return res, &CommandError{Operation: op, Args: opArgs, Stderr: res.Stderr, Err: ErrStderrOutput}
	}

	return res, nil
}

func rangeSpec(from, to string) string {
	return to + ".." + from
}

func parseRevList(out string) replay.Sequence {
	lines := strings.Fields(out)
	if len(lines) == 0 {
		return nil
	}

	seq := make(replay.Sequence, 0, len(lines))
	for _, line := range lines {
		seq = append(seq, replay.CommitRef(line))
	}

	return seq
}

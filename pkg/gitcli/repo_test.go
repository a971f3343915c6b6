package gitcli_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/replayer/pkg/gitcli"
	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

// mockExecutor records invocations and answers from a script keyed by subcommand.
type mockExecutor struct {
	calls   [][]string
	dirs    []string
	results map[string]gitcli.Result
	errs    map[string]error
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{results: map[string]gitcli.Result{}, errs: map[string]error{}}
}

func (m *mockExecutor) Run(_ context.Context, dir string, args ...string) (gitcli.Result, error) {
	m.calls = append(m.calls, args)
	m.dirs = append(m.dirs, dir)

	return m.results[args[0]], m.errs[args[0]]
}

func TestRepo_MutatingCommands(t *testing.T) {
	t.Parallel()

	mock := newMockExecutor()
	repo := gitcli.NewRepo("/work/widgets", mock, nil)
	ctx := context.Background()

	require.NoError(t, repo.AbortMerge(ctx))
	require.NoError(t, repo.Checkout(ctx, "feature1"))
	require.NoError(t, repo.Merge(ctx, "abc123"))
	require.NoError(t, repo.Push(ctx, "feature1"))

	assert.Equal(t, [][]string{
		{"merge", "--abort"},
		{"checkout", "feature1"},
		{"merge", "--no-edit", "abc123"},
		{"push", "origin", "feature1"},
	}, mock.calls)

	for _, dir := range mock.dirs {
		assert.Equal(t, "/work/widgets", dir)
	}

	assert.Equal(t, "/work/widgets", repo.Path())
}

func TestRepo_MergeErrorPropagates(t *testing.T) {
	t.Parallel()

	mock := newMockExecutor()
	cmdErr := &gitcli.CommandError{Operation: "merge", Stderr: "CONFLICT", Err: gitcli.ErrCommandFailed}
	mock.errs["merge"] = cmdErr

	err := gitcli.NewRepo(".", mock, nil).Merge(context.Background(), "abc")
	require.ErrorIs(t, err, gitcli.ErrCommandFailed)

	var got *gitcli.CommandError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "CONFLICT", got.Stderr)
}

func TestRepo_Count(t *testing.T) {
	t.Parallel()

	mock := newMockExecutor()
	mock.results["rev-list"] = gitcli.Result{Stdout: "120\n"}

	count, err := gitcli.NewRepo(".", mock, nil).Count(context.Background(), "master", "feature1")
	require.NoError(t, err)
	assert.Equal(t, 120, count)
	assert.Equal(t, []string{"rev-list", "--count", "feature1..master"}, mock.calls[0])
}

func TestRepo_List(t *testing.T) {
	t.Parallel()

	mock := newMockExecutor()
	mock.results["rev-list"] = gitcli.Result{Stdout: "aaa\nbbb\nccc\n"}

	seq, err := gitcli.NewRepo(".", mock, nil).List(context.Background(), "master", "feature1")
	require.NoError(t, err)
	assert.Equal(t, replay.Sequence{"aaa", "bbb", "ccc"}, seq)
	assert.Equal(t, []string{"rev-list", "--reverse", "feature1..master"}, mock.calls[0])
}

func TestRepo_ListEmpty(t *testing.T) {
	t.Parallel()

	mock := newMockExecutor()

	seq, err := gitcli.NewRepo(".", mock, nil).List(context.Background(), "master", "feature1")
	require.NoError(t, err)
	assert.Empty(t, seq)
}

func TestRepo_EnumerationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  gitcli.Result
		err     error
		wantErr error
	}{
		{
			name:    "stderr output",
			result:  gitcli.Result{Stdout: "3\n", Stderr: "warning: something odd\n"},
			wantErr: gitcli.ErrStderrOutput,
		},
		{
			name:    "command failure",
			err:     &gitcli.CommandError{Operation: "rev-list", Err: gitcli.ErrCommandFailed},
			wantErr: gitcli.ErrCommandFailed,
		},
		{
			name:    "garbage count",
			result:  gitcli.Result{Stdout: "lots\n"},
			wantErr: gitcli.ErrUnexpectedOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := newMockExecutor()
			mock.results["rev-list"] = tt.result
			mock.errs["rev-list"] = tt.err

			_, err := gitcli.NewRepo(".", mock, nil).Count(context.Background(), "master", "feature1")
			require.ErrorIs(t, err, replay.ErrEnumeration)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRepo_ListStderrIsEnumerationError(t *testing.T) {
	t.Parallel()

	mock := newMockExecutor()
	mock.results["rev-list"] = gitcli.Result{Stderr: "fatal: bad revision 'nope'"}

	_, err := gitcli.NewRepo(".", mock, nil).List(context.Background(), "nope", "feature1")
	require.ErrorIs(t, err, replay.ErrEnumeration)

	var enumErr *replay.EnumerationError
	require.True(t, errors.As(err, &enumErr))
	assert.Equal(t, "nope", enumErr.From)
}

func TestCommandError_Message(t *testing.T) {
	t.Parallel()

	err := &gitcli.CommandError{Operation: "push", Stderr: "  rejected\n", Err: gitcli.ErrCommandFailed}
	assert.Equal(t, "git push failed: rejected: git command failed", err.Error())

	bare := &gitcli.CommandError{Operation: "merge"}
	assert.Equal(t, "git merge failed", bare.Error())
}

func TestRepo_EmitsSpanPerCommand(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mock := newMockExecutor()
	mock.errs["push"] = errors.New("rejected")

	repo := gitcli.NewRepo("/work/widgets", mock, nil).WithTracer(tp.Tracer("test"))
	ctx := context.Background()

	require.NoError(t, repo.Checkout(ctx, "feature1"))
	require.Error(t, repo.Push(ctx, "feature1"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "git.checkout", spans[0].Name())
	assert.Equal(t, "git.push", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

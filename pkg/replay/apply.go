package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Applicator merges a single boundary commit into the checked-out branch.
type Applicator struct {
	ws     Workspace
	logger *slog.Logger
}

// NewApplicator creates an Applicator over ws.
func NewApplicator(ws Workspace, logger *slog.Logger) *Applicator {
	return &Applicator{ws: ws, logger: logger}
}

// Apply merges commit. On failure the merge is aborted exactly once so the
// working tree is clean for the next stride, and the merge error is returned.
// The commit's changes are not on the branch after a failed Apply.
func (a *Applicator) Apply(ctx context.Context, commit CommitRef) error {
	mergeErr := a.ws.Merge(ctx, commit)
	if mergeErr == nil {
		a.logger.InfoContext(ctx, "merged commit", "commit", commit.String())

		return nil
	}

	a.logger.ErrorContext(ctx, "merge failed, aborting", "commit", commit.String(), "error", mergeErr)

	err := fmt.Errorf("merge %s: %w", commit.Short(), mergeErr)

	abortErr := a.ws.AbortMerge(ctx)
	if abortErr != nil {
		a.logger.WarnContext(ctx, "merge abort failed", "commit", commit.String(), "error", abortErr)

		return errors.Join(err, fmt.Errorf("abort merge: %w", abortErr))
	}

	return err
}

// Publisher pushes the target branch to the remote.
type Publisher struct {
	ws     Workspace
	logger *slog.Logger
}

// NewPublisher creates a Publisher over ws.
func NewPublisher(ws Workspace, logger *slog.Logger) *Publisher {
	return &Publisher{ws: ws, logger: logger}
}

// Publish pushes branch. Errors are logged and returned for the outcome record.
func (p *Publisher) Publish(ctx context.Context, branch string, commit CommitRef) error {
	err := p.ws.Push(ctx, branch)
	if err != nil {
		p.logger.ErrorContext(ctx, "push failed", "branch", branch, "commit", commit.String(), "error", err)

		return fmt.Errorf("push %s: %w", branch, err)
	}

	p.logger.InfoContext(ctx, "pushed branch", "branch", branch, "commit", commit.String())

	return nil
}

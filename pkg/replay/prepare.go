package replay

import (
	"context"
	"fmt"
	"log/slog"
)

// Preparer puts the target branch into a clean, checked-out, non-merging state.
type Preparer struct {
	ws     Workspace
	logger *slog.Logger
}

// NewPreparer creates a Preparer over ws.
func NewPreparer(ws Workspace, logger *slog.Logger) *Preparer {
	return &Preparer{ws: ws, logger: logger}
}

// Prepare aborts any merge in progress and checks out branch.
// A failed abort is ignored since there usually is no merge to abort.
// A failed checkout is returned wrapped in ErrCheckout.
func (p *Preparer) Prepare(ctx context.Context, branch string) error {
	abortErr := p.ws.AbortMerge(ctx)
	if abortErr != nil {
		p.logger.DebugContext(ctx, "no merge to abort", "error", abortErr)
	}

	checkoutErr := p.ws.Checkout(ctx, branch)
	if checkoutErr != nil {
		p.logger.ErrorContext(ctx, "checkout failed", "branch", branch, "error", checkoutErr)

		return fmt.Errorf("%w: %s: %w", ErrCheckout, branch, checkoutErr)
	}

	p.logger.InfoContext(ctx, "checked out target branch", "branch", branch)

	return nil
}

package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// DefaultBatchSize is the number of commits per stride.
const DefaultBatchSize = 50

// Options are the immutable run parameters the driver needs.
type Options struct {
	Source    string
	Target    string
	BatchSize int

	// AwaitNotify makes the driver wait for each cache notification before pacing.
	AwaitNotify bool

	// DryRun prepares and enumerates, then logs the planned boundary commits only.
	DryRun bool
}

// Deps are the collaborators of a Driver. Workspace, Enumerator and Notifier are required.
type Deps struct {
	Workspace  Workspace
	Enumerator Enumerator
	Notifier   Notifier
	Pacer      *Pacer
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Recorder   Recorder

	// OnTransition, when set, is called on every state change.
	OnTransition func(State)
}

// Driver runs the replay state machine.
type Driver struct {
	opts Options
	deps Deps

	preparer   *Preparer
	applicator *Applicator
	publisher  *Publisher

	state State
}

// NewDriver validates opts and wires a Driver.
func NewDriver(opts Options, deps Deps) (*Driver, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.BatchSize)
	}

	switch {
	case deps.Workspace == nil:
		return nil, fmt.Errorf("%w: workspace", ErrMissingDependency)
	case deps.Enumerator == nil:
		return nil, fmt.Errorf("%w: enumerator", ErrMissingDependency)
	case deps.Notifier == nil:
		return nil, fmt.Errorf("%w: notifier", ErrMissingDependency)
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("replay")
	}

	if deps.Pacer == nil {
		deps.Pacer = NewPacer(0)
	}

	return &Driver{
		opts:       opts,
		deps:       deps,
		preparer:   NewPreparer(deps.Workspace, deps.Logger),
		applicator: NewApplicator(deps.Workspace, deps.Logger),
		publisher:  NewPublisher(deps.Workspace, deps.Logger),
		state:      StateInit,
	}, nil
}

// State returns the current state.
func (d *Driver) State() State { return d.state }

// Run executes one replay. The returned Summary is never nil. A non-nil error
// means the run was aborted: checkout or enumeration failed, or ctx was cancelled.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	ctx, span := d.deps.Tracer.Start(ctx, "replay.run", trace.WithAttributes(
		attribute.String("replay.source", d.opts.Source),
		attribute.String("replay.target", d.opts.Target),
		attribute.Int("replay.batch_size", d.opts.BatchSize),
	))
	defer span.End()

	summary := &Summary{
		Source:    d.opts.Source,
		Target:    d.opts.Target,
		BatchSize: d.opts.BatchSize,
		DryRun:    d.opts.DryRun,
		Started:   time.Now(),
	}

	err := d.run(ctx, summary)

	summary.Finished = time.Now()
	summary.State = d.state

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return summary, err
}

func (d *Driver) run(ctx context.Context, summary *Summary) error {
	log := d.deps.Logger

	d.transition(ctx, StatePreparing)

	err := d.preparer.Prepare(ctx, d.opts.Target)
	if err != nil {
		d.transition(ctx, StateFailed)

		return err
	}

	d.transition(ctx, StateEnumerating)

	seq, err := d.enumerate(ctx)
	if err != nil {
		d.transition(ctx, StateFailed)

		return err
	}

	summary.Commits = len(seq)

	if len(seq) == 0 {
		log.InfoContext(ctx, "no commits to onboard", "source", d.opts.Source, "target", d.opts.Target)
		d.transition(ctx, StateDone)

		return nil
	}

	boundaries := BoundaryIndices(len(seq), d.opts.BatchSize)
	for _, idx := range boundaries {
		summary.Planned = append(summary.Planned, seq[idx])
	}

	log.InfoContext(ctx, "commits to onboard",
		"commits", len(seq), "strides", len(boundaries), "batch_size", d.opts.BatchSize)

	if d.opts.DryRun {
		for i, idx := range boundaries {
			log.InfoContext(ctx, "planned stride", "stride", i+1, "index", idx, "commit", seq[idx].String())
		}

		d.transition(ctx, StateDone)

		return nil
	}

	d.transition(ctx, StateReplaying)

	pending := make([]<-chan error, len(boundaries))
	defer d.drain(ctx, summary, pending)

	for i, idx := range boundaries {
		if i > 0 {
			d.transition(ctx, StatePacing)
			log.InfoContext(ctx, "pausing before next stride", "delay", d.deps.Pacer.Delay())

			waitErr := d.deps.Pacer.Wait(ctx)
			if waitErr != nil {
				d.transition(ctx, StateFailed)

				return fmt.Errorf("replay interrupted before stride %d: %w", i+1, waitErr)
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			d.transition(ctx, StateFailed)

			return fmt.Errorf("replay interrupted before stride %d: %w", i+1, ctxErr)
		}

		outcome, notified := d.stride(ctx, i+1, idx, seq[idx])
		summary.Strides = append(summary.Strides, outcome)
		pending[i] = notified

		if d.deps.Recorder != nil {
			d.deps.Recorder.RecordPending(ctx, len(seq)-idx-1)
		}
	}

	d.transition(ctx, StateComplete)

	return nil
}

func (d *Driver) enumerate(ctx context.Context) (Sequence, error) {
	count, err := d.deps.Enumerator.Count(ctx, d.opts.Source, d.opts.Target)
	if err != nil {
		return nil, asEnumerationError(d.opts.Source, d.opts.Target, err)
	}

	if count == 0 {
		return nil, nil
	}

	seq, err := d.deps.Enumerator.List(ctx, d.opts.Source, d.opts.Target)
	if err != nil {
		return nil, asEnumerationError(d.opts.Source, d.opts.Target, err)
	}

	if len(seq) != count {
		return nil, NewEnumerationError(d.opts.Source, d.opts.Target,
			fmt.Errorf("count %d does not match list length %d", count, len(seq)))
	}

	return seq, nil
}

// stride merges, pushes and notifies for one boundary commit. When the driver
// does not await notifications, the returned channel is still pending.
func (d *Driver) stride(ctx context.Context, n, idx int, commit CommitRef) (StrideOutcome, <-chan error) {
	ctx, span := d.deps.Tracer.Start(ctx, "replay.stride", trace.WithAttributes(
		attribute.Int("replay.stride", n),
		attribute.Int("replay.index", idx),
		attribute.String("replay.commit", commit.String()),
	))
	defer span.End()

	outcome := StrideOutcome{Stride: n, Index: idx, Commit: commit, Started: time.Now()}

	d.deps.Logger.InfoContext(ctx, "starting stride", "stride", n, "index", idx, "commit", commit.String())

	d.transition(ctx, StateMerging)
	outcome.MergeErr = d.applicator.Apply(ctx, commit)
	outcome.Merge = statusOf(outcome.MergeErr)

	d.transition(ctx, StatePushing)
	outcome.PushErr = d.publisher.Publish(ctx, d.opts.Target, commit)
	outcome.Push = statusOf(outcome.PushErr)

	d.transition(ctx, StateNotifying)

	notified := d.deps.Notifier.Notify(ctx)
	outcome.Notify = StatusPending

	if d.opts.AwaitNotify {
		outcome.NotifyErr = <-notified
		outcome.Notify = statusOf(outcome.NotifyErr)
		d.recordNotify(ctx, outcome.NotifyErr)
		notified = nil
	}

	outcome.Duration = time.Since(outcome.Started)

	if outcome.MergeErr != nil || outcome.PushErr != nil {
		span.SetStatus(codes.Error, "stride incomplete")
	}

	if d.deps.Recorder != nil {
		d.deps.Recorder.RecordStride(ctx, outcome)
	}

	return outcome, notified
}

// drain waits for detached notifications so the process never exits mid-request.
func (d *Driver) drain(ctx context.Context, summary *Summary, pending []<-chan error) {
	for i, ch := range pending {
		if ch == nil || i >= len(summary.Strides) {
			continue
		}

		err := <-ch
		summary.Strides[i].NotifyErr = err
		summary.Strides[i].Notify = statusOf(err)
		d.recordNotify(ctx, err)
	}
}

func (d *Driver) recordNotify(ctx context.Context, err error) {
	if d.deps.Recorder != nil {
		d.deps.Recorder.RecordNotify(ctx, err)
	}
}

func (d *Driver) transition(ctx context.Context, next State) {
	d.deps.Logger.DebugContext(ctx, "state transition", "from", string(d.state), "to", string(next))
	d.state = next

	if d.deps.OnTransition != nil {
		d.deps.OnTransition(next)
	}
}

func asEnumerationError(from, to string, err error) error {
	var enumErr *EnumerationError
	if errors.As(err, &enumErr) {
		return err
	}

	return NewEnumerationError(from, to, err)
}

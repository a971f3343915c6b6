package replay

import "context"

// CommitRef is an opaque revision id as reported by the version-control system.
type CommitRef string

// String returns the revision id.
func (c CommitRef) String() string { return string(c) }

// Short returns the first seven characters of the revision id.
func (c CommitRef) Short() string {
	const shortLen = 7

	if len(c) <= shortLen {
		return string(c)
	}

	return string(c[:shortLen])
}

// Sequence is an oldest-first list of commits reachable from the source branch
// and not from the target branch.
type Sequence []CommitRef

// Enumerator computes the ancestry diff between two refs.
// Both methods return commits reachable from "from" but not from "to".
type Enumerator interface {
	Count(ctx context.Context, from, to string) (int, error)
	List(ctx context.Context, from, to string) (Sequence, error)
}

// Workspace is the set of mutating operations run against the local checkout.
type Workspace interface {
	AbortMerge(ctx context.Context) error
	Checkout(ctx context.Context, branch string) error
	Merge(ctx context.Context, commit CommitRef) error
	Push(ctx context.Context, branch string) error
}

// Notifier tells the cache service that the target branch changed.
// Notify must not block on the request. The returned channel receives exactly
// one value once the request finishes.
type Notifier interface {
	Notify(ctx context.Context) <-chan error
}

// Recorder receives run measurements. A nil Recorder is allowed.
type Recorder interface {
	RecordStride(ctx context.Context, outcome StrideOutcome)
	RecordNotify(ctx context.Context, err error)
	RecordPending(ctx context.Context, remaining int)
}

package replay

import "time"

// Status is the result of one phase of a stride.
type Status string

// Phase statuses.
const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
	StatusSkipped Status = "skipped"
)

// StrideOutcome records what happened to a single stride.
type StrideOutcome struct {
	Stride   int
	Index    int
	Commit   CommitRef
	Merge    Status
	Push     Status
	Notify   Status
	Started  time.Time
	Duration time.Duration

	MergeErr  error
	PushErr   error
	NotifyErr error
}

// OK reports whether every phase of the stride succeeded.
func (o StrideOutcome) OK() bool {
	return o.Merge == StatusOK && o.Push == StatusOK && o.Notify == StatusOK
}

// Summary is the in-memory record of a run.
type Summary struct {
	Source    string
	Target    string
	BatchSize int
	Commits   int
	DryRun    bool
	State     State
	Planned   []CommitRef
	Strides   []StrideOutcome
	Started   time.Time
	Finished  time.Time
}

// Failures counts strides with at least one failed phase, per phase.
func (s *Summary) Failures() (merge, push, notify int) {
	for _, o := range s.Strides {
		if o.Merge == StatusFailed {
			merge++
		}

		if o.Push == StatusFailed {
			push++
		}

		if o.Notify == StatusFailed {
			notify++
		}
	}

	return merge, push, notify
}

// Elapsed returns the wall time of the run.
func (s *Summary) Elapsed() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}

	return s.Finished.Sub(s.Started)
}

func statusOf(err error) Status {
	if err != nil {
		return StatusFailed
	}

	return StatusOK
}

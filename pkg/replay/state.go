package replay

// State is a phase of the replay state machine.
type State string

// Replay states, in the order a run normally visits them.
const (
	StateInit        State = "init"
	StatePreparing   State = "preparing"
	StateEnumerating State = "enumerating"
	StateDone        State = "done"
	StateReplaying   State = "replaying"
	StateMerging     State = "merging"
	StatePushing     State = "pushing"
	StateNotifying   State = "notifying"
	StatePacing      State = "pacing"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateComplete || s == StateFailed
}

// Package replay implements the batched history replay loop.
//
// A run prepares the target branch, enumerates the commits present on the
// source branch but not on the target (oldest first), and then walks that
// sequence in fixed-size strides. For every stride only the boundary commit
// (the last commit of the stride) is merged; its ancestors come along with the
// three-way merge. After each merge the branch is pushed, the cache service is
// notified, and the driver pauses before the next stride.
//
// Merge, push and notification failures are stride-local: they are logged,
// recorded in the [StrideOutcome], and the run moves on. Only checkout and
// enumeration failures abort a run.
//
// Nothing is persisted between runs. A restarted run re-enumerates, and since
// merged commits are already reachable from the target they drop out of the
// ancestry diff on their own.
package replay

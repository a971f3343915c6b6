package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

// AncestryDiff returns the commits reachable from "from" and not from "to",
// oldest first, the same set "git rev-list --reverse to..from" prints.
func (r *Repository) AncestryDiff(from, to string) ([]Hash, error) {
	fromHash, err := r.Resolve(from)
	if err != nil {
		return nil, err
	}

	toHash, err := r.Resolve(to)
	if err != nil {
		return nil, err
	}

	walk, err := r.Walk()
	if err != nil {
		return nil, err
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTopological | git2go.SortTime | git2go.SortReverse)

	err = walk.Push(fromHash)
	if err != nil {
		return nil, err
	}

	err = walk.Hide(toHash)
	if err != nil {
		return nil, err
	}

	return walk.Hashes()
}

// Enumerator implements replay.Enumerator by walking history in-process.
// The repository is opened per call so the enumerator holds no C resources
// between runs.
type Enumerator struct {
	path string
}

// NewEnumerator creates an Enumerator for the repository at path.
func NewEnumerator(path string) *Enumerator {
	return &Enumerator{path: path}
}

// Count returns the number of commits reachable from "from" and not from "to".
func (e *Enumerator) Count(ctx context.Context, from, to string) (int, error) {
	seq, err := e.List(ctx, from, to)
	if err != nil {
		return 0, err
	}

	return len(seq), nil
}

// List returns the commits reachable from "from" and not from "to", oldest first.
func (e *Enumerator) List(ctx context.Context, from, to string) (replay.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, replay.NewEnumerationError(from, to, err)
	}

	repo, err := OpenRepository(e.path)
	if err != nil {
		return nil, replay.NewEnumerationError(from, to, err)
	}
	defer repo.Free()

	hashes, err := repo.AncestryDiff(from, to)
	if err != nil {
		return nil, replay.NewEnumerationError(from, to, fmt.Errorf("walk %s: %w", e.path, err))
	}

	seq := make(replay.Sequence, 0, len(hashes))
	for _, h := range hashes {
		seq = append(seq, replay.CommitRef(h.String()))
	}

	return seq, nil
}

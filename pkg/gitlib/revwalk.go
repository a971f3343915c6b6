package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// RevWalk wraps a libgit2 revision walker.
type RevWalk struct {
	walk *git2go.RevWalk
}

// Push adds a commit to start walking from.
func (w *RevWalk) Push(hash Hash) error {
	err := w.walk.Push(hash.ToOid())
	if err != nil {
		return fmt.Errorf("push to revwalk: %w", err)
	}

	return nil
}

// Hide excludes a commit and all of its ancestors from the walk.
func (w *RevWalk) Hide(hash Hash) error {
	err := w.walk.Hide(hash.ToOid())
	if err != nil {
		return fmt.Errorf("hide from revwalk: %w", err)
	}

	return nil
}

// Sorting sets the sorting mode for the walker.
func (w *RevWalk) Sorting(mode git2go.SortType) {
	w.walk.Sorting(mode)
}

// Hashes drains the walk and returns every visited commit hash in walk order.
func (w *RevWalk) Hashes() ([]Hash, error) {
	var hashes []Hash

	err := w.walk.Iterate(func(commit *git2go.Commit) bool {
		hashes = append(hashes, HashFromOid(commit.Id()))
		commit.Free()

		return true
	})
	if err != nil {
		return nil, fmt.Errorf("revwalk iterate: %w", err)
	}

	return hashes, nil
}

// Free releases the walker resources.
func (w *RevWalk) Free() {
	if w.walk != nil {
		w.walk.Free()
		w.walk = nil
	}
}

package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Resolve returns the commit a revision expression (branch, tag, hash) points at.
func (r *Repository) Resolve(spec string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(spec)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %q: %w", spec, err)
	}
	defer obj.Free()

	commit, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("peel %q to commit: %w", spec, err)
	}
	defer commit.Free()

	return HashFromOid(commit.Id()), nil
}

// Walk creates a new revision walker.
func (r *Repository) Walk() (*RevWalk, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	return &RevWalk{walk: walk}, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

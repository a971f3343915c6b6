package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/replayer/pkg/gitlib"
	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

// testRepo wraps a test repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
	clock  time.Time
}

// newTestRepo creates a new test repository.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, native: repo, clock: time.Unix(1_700_000_000, 0)}
}

// commit writes name and commits it on HEAD.
func (tr *testRepo) commit(name string) gitlib.Hash {
	tr.t.Helper()

	err := os.WriteFile(filepath.Join(tr.path, name), []byte(name), 0o644)
	require.NoError(tr.t, err)

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	// Strictly increasing timestamps keep time sorting deterministic.
	tr.clock = tr.clock.Add(time.Minute)

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: tr.clock}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, "add "+name, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// branch creates a branch pointing at hash.
func (tr *testRepo) branch(name string, hash gitlib.Hash) {
	tr.t.Helper()

	commit, err := tr.native.LookupCommit(hash.ToOid())
	require.NoError(tr.t, err)

	defer commit.Free()

	ref, err := tr.native.CreateBranch(name, commit, false)
	require.NoError(tr.t, err)

	ref.Free()
}

func TestOpenRepository(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("initial.txt")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, tr.path, repo.Path())
	assert.NotNil(t, repo.Native())
}

func TestOpenRepositoryNotFound(t *testing.T) {
	_, err := gitlib.OpenRepository(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.commit("a.txt")
	tr.branch("feature1", first)
	second := tr.commit("b.txt")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	got, err := repo.Resolve("feature1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = repo.Resolve("HEAD")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = repo.Resolve("nope")
	require.Error(t, err)
}

func TestAncestryDiff_OldestFirst(t *testing.T) {
	tr := newTestRepo(t)
	base := tr.commit("base.txt")
	tr.branch("feature1", base)

	want := []gitlib.Hash{tr.commit("a.txt"), tr.commit("b.txt"), tr.commit("c.txt")}

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	got, err := repo.AncestryDiff("HEAD", "feature1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	none, err := repo.AncestryDiff("feature1", "HEAD")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEnumerator(t *testing.T) {
	tr := newTestRepo(t)
	base := tr.commit("base.txt")
	tr.branch("feature1", base)

	var want replay.Sequence

	for _, name := range []string{"1.txt", "2.txt", "3.txt", "4.txt", "5.txt"} {
		want = append(want, replay.CommitRef(tr.commit(name).String()))
	}

	enum := gitlib.NewEnumerator(tr.path)
	ctx := context.Background()

	count, err := enum.Count(ctx, "HEAD", "feature1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	seq, err := enum.List(ctx, "HEAD", "feature1")
	require.NoError(t, err)
	assert.Equal(t, want, seq)

	indices := replay.BoundaryIndices(len(seq), 2)
	assert.Equal(t, []int{1, 3, 4}, indices)
}

func TestEnumerator_Errors(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("base.txt")

	ctx := context.Background()

	_, err := gitlib.NewEnumerator(tr.path).Count(ctx, "HEAD", "missing-branch")
	require.ErrorIs(t, err, replay.ErrEnumeration)

	_, err = gitlib.NewEnumerator(filepath.Join(t.TempDir(), "nope")).List(ctx, "HEAD", "feature1")
	require.ErrorIs(t, err, replay.ErrEnumeration)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = gitlib.NewEnumerator(tr.path).List(cancelled, "HEAD", "HEAD")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHash(t *testing.T) {
	var h gitlib.Hash
	assert.True(t, h.IsZero())
	assert.Len(t, h.String(), 2*gitlib.HashSize)

	h[0] = 0xab
	assert.False(t, h.IsZero())
	assert.Equal(t, "ab", h.String()[:2])
	assert.Equal(t, h, gitlib.HashFromOid(h.ToOid()))
}

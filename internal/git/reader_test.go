package git

import (
	"context"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
	"git.home.luguber.info/inful/qbdeploy/internal/testutil"
)

func setupRepo(t *testing.T) (*gogit.Repository, string) {
	t.Helper()
	return testutil.SetupTestGitRepo(t)
}

func addCommit(t *testing.T, repo *gogit.Repository, repoPath string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()
	return testutil.CommitFiles(t, repo, repoPath, files, msg)
}

func TestReader_ReadsAtRevision(t *testing.T) {
	repo, dir := setupRepo(t)
	first := addCommit(t, repo, dir, map[string]string{"qbcli.json": `{"v":1}`, "dist/app.js": "v1"}, "first")
	addCommit(t, repo, dir, map[string]string{"dist/app.js": "v2"}, "second")

	r, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	head, err := r.ReadFile(ctx, "", "dist/app.js")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(head))

	old, err := r.ReadFile(ctx, first.String(), "dist/app.js")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(old))

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	byBranch, err := r.ReadFile(ctx, branch, "/dist/app.js")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(byBranch))
}

func TestReader_GetFileContentIsBase64(t *testing.T) {
	repo, dir := setupRepo(t)
	addCommit(t, repo, dir, map[string]string{"qbcli.json": `{"dbid":"x"}`}, "init")

	r := NewReader(repo)
	content, err := r.GetFileContent(context.Background(), source.Location{Path: "qbcli.json"})
	require.NoError(t, err)

	decoded, err := source.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, `{"dbid":"x"}`, string(decoded))
}

func TestReader_NotFound(t *testing.T) {
	repo, dir := setupRepo(t)
	addCommit(t, repo, dir, map[string]string{"a.txt": "a"}, "init")
	r := NewReader(repo)

	_, err := r.ReadFile(context.Background(), "", "missing.txt")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))

	_, err = r.ReadFile(context.Background(), "no-such-branch", "a.txt")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestReader_CancelledContext(t *testing.T) {
	repo, dir := setupRepo(t)
	addCommit(t, repo, dir, map[string]string{"a.txt": "a"}, "init")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(repo).ReadFile(ctx, "", "a.txt")
	require.ErrorIs(t, err, context.Canceled)
}

package git

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
)

// Reader serves file content from a git repository at arbitrary revisions.
type Reader struct {
	repo *gogit.Repository
	path string
}

// Open opens the repository at repoPath (a working tree or a bare repository).
func Open(repoPath string) (*Reader, error) {
	repo, err := gogit.PlainOpenWithOptions(repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, ClassifyGitError(err, "open", repoPath)
	}
	return &Reader{repo: repo, path: repoPath}, nil
}

// NewReader wraps an already opened repository.
func NewReader(repo *gogit.Repository) *Reader {
	return &Reader{repo: repo}
}

// ResolveCommit resolves ref to a commit. An empty ref means HEAD. Bare
// branch names are also tried as remote-tracking branches of origin, which
// is how CI checkouts usually carry them.
func (r *Reader) ResolveCommit(ref string) (*object.Commit, error) {
	candidates := []string{ref}
	if ref == "" {
		candidates = []string{"HEAD"}
	} else if !strings.Contains(ref, "/") {
		candidates = append(candidates, "refs/remotes/origin/"+ref)
	}

	var lastErr error
	for _, c := range candidates {
		hash, err := r.repo.ResolveRevision(plumbing.Revision(c))
		if err != nil {
			lastErr = err
			continue
		}
		commit, err := r.repo.CommitObject(*hash)
		if err != nil {
			return nil, ClassifyGitError(err, "commit", c)
		}
		return commit, nil
	}
	return nil, ClassifyGitError(lastErr, "resolve", ref)
}

// CurrentBranch returns the short name of the checked out branch, or an
// empty string for a detached HEAD.
func (r *Reader) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", ClassifyGitError(err, "head", r.path)
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}

// ReadFile returns the raw bytes of p at ref.
func (r *Reader) ReadFile(ctx context.Context, ref, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit, err := r.ResolveCommit(ref)
	if err != nil {
		return nil, err
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	file, err := commit.File(clean)
	if err != nil {
		return nil, ClassifyGitError(err, "read", clean)
	}
	rd, err := file.Reader()
	if err != nil {
		return nil, ClassifyGitError(err, "read", clean)
	}
	defer func() { _ = rd.Close() }()

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read blob").
			WithContext("path", clean).
			Build()
	}
	slog.Debug("Read file from git", logfields.Path(clean), logfields.Ref(ref), slog.String("commit", commit.Hash.String()[:8]))
	return data, nil
}

// GetFileContent implements source.Fetcher. Owner and repo of loc are ignored.
func (r *Reader) GetFileContent(ctx context.Context, loc source.Location) (string, error) {
	data, err := r.ReadFile(ctx, loc.Ref, loc.Path)
	if err != nil {
		return "", err
	}
	return source.Encode(data), nil
}

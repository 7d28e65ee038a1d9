package forge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
)

func newGitHubServer(t *testing.T, mux *http.ServeMux) (*GitHubClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewGitHubClient(srv.Client(), srv.URL, "gh-token"), srv
}

func TestGitHubClient_GetFileContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/contents/build/qbcli.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		assert.Equal(t, githubJSON, r.Header.Get("Accept"))
		assert.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		_, _ = w.Write([]byte(`{"type":"file","encoding":"base64","size":2,"content":"e30=\n"}`))
	})
	c, _ := newGitHubServer(t, mux)

	content, err := c.GetFileContent(context.Background(), source.Location{Owner: "acme", Repo: "app", Path: "build/qbcli.json", Ref: "main"})
	require.NoError(t, err)
	data, err := source.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestGitHubClient_GetFileContentEscapesPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/contents/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/app/contents/dist/what?.js", r.URL.Path)
		assert.Equal(t, "/repos/acme/app/contents/dist/what%3F.js", r.URL.EscapedPath())
		assert.Equal(t, "ref=feature%2Fx", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"type":"file","encoding":"base64","size":2,"content":"b2s="}`))
	})
	c, _ := newGitHubServer(t, mux)

	content, err := c.GetFileContent(context.Background(), source.Location{Owner: "acme", Repo: "app", Path: "dist/what?.js", Ref: "feature/x"})
	require.NoError(t, err)
	assert.Equal(t, "b2s=", content)
}

func TestGitHubClient_GetFileContentLargeFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/contents/big.js", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == githubRaw {
			_, _ = w.Write([]byte("console.log(1)"))
			return
		}
		_, _ = w.Write([]byte(`{"type":"file","encoding":"none","size":14,"content":""}`))
	})
	c, _ := newGitHubServer(t, mux)

	content, err := c.GetFileContent(context.Background(), source.Location{Owner: "acme", Repo: "app", Path: "big.js"})
	require.NoError(t, err)
	data, err := source.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))
}

func TestGitHubClient_GetFileContentDirectory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/contents/dist", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"type":"file","name":"a.js"}]`))
	})
	c, _ := newGitHubServer(t, mux)

	_, err := c.GetFileContent(context.Background(), source.Location{Owner: "acme", Repo: "app", Path: "dist"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
}

func TestGitHubClient_GetFileContentEmptyFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/contents/empty.js", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"file","encoding":"base64","size":0,"content":""}`))
	})
	c, _ := newGitHubServer(t, mux)

	content, err := c.GetFileContent(context.Background(), source.Location{Owner: "acme", Repo: "app", Path: "empty.js"})
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestGitHubClient_GetFileContentNotFound(t *testing.T) {
	c, _ := newGitHubServer(t, http.NewServeMux())

	_, err := c.GetFileContent(context.Background(), source.Location{Owner: "acme", Repo: "app", Path: "missing.js"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestGitHubClient_ResolveBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[{"sha":"abc123"}]`))
	})
	mux.HandleFunc("/repos/acme/app/commits/abc123/branches-where-head", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"release"},{"name":"main"}]`))
	})
	c, _ := newGitHubServer(t, mux)

	branch, err := c.ResolveBranch(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.Equal(t, "release", branch)
}

func TestGitHubClient_ResolveBranchNoCommits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/commits", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c, _ := newGitHubServer(t, mux)

	_, err := c.ResolveBranch(context.Background(), "acme", "app")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestGitHubClient_BranchForCommitNone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/commits/abc/branches-where-head", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c, _ := newGitHubServer(t, mux)

	_, err := c.BranchForCommit(context.Background(), "acme", "app", "abc")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

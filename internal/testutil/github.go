package testutil

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// GitHubContents fakes GET /repos/{owner}/{repo}/contents/{path}.
type GitHubContents struct {
	Server *httptest.Server

	mu       sync.Mutex
	files    map[string]string
	requests []*http.Request
}

// NewGitHubContents serves files for owner/repo. Unknown paths answer 404.
func NewGitHubContents(t *testing.T, owner, repo string, files map[string]string) *GitHubContents {
	t.Helper()
	g := &GitHubContents{files: files}
	prefix := "/repos/" + owner + "/" + repo + "/contents/"
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests = append(g.requests, r.Clone(r.Context()))
		g.mu.Unlock()

		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		content, ok := g.files[strings.TrimPrefix(r.URL.Path, prefix)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"encoding": "base64",
			"size":     len(content),
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
	}))
	t.Cleanup(g.Server.Close)
	return g
}

// URL is the API base URL.
func (g *GitHubContents) URL() string { return g.Server.URL }

// Requests returns the requests received so far.
func (g *GitHubContents) Requests() []*http.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*http.Request(nil), g.requests...)
}

package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
)

// DefaultGitHubAPIURL is used when no API URL is configured.
const DefaultGitHubAPIURL = "https://api.github.com"

const (
	githubJSON = "application/vnd.github+json"
	githubRaw  = "application/vnd.github.raw"
)

// GitHubClient reads repository contents through the GitHub REST API.
type GitHubClient struct {
	*BaseForge
}

// NewGitHubClient creates a client for apiURL. An empty token sends
// unauthenticated requests, which only work for public repositories.
func NewGitHubClient(httpClient *http.Client, apiURL, token string) *GitHubClient {
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	base := NewBaseForge(httpClient, apiURL, token)
	base.SetCustomHeader("Accept", githubJSON)
	base.SetCustomHeader("X-GitHub-Api-Version", "2022-11-28")
	return &GitHubClient{BaseForge: base}
}

// githubContent is one entry of the contents API.
type githubContent struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
}

type githubCommit struct {
	SHA string `json:"sha"`
}

type githubBranch struct {
	Name string `json:"name"`
}

// escapePath escapes every segment of a slash-separated repository path.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func repoEndpoint(owner, repo string, rest ...string) string {
	parts := append([]string{"repos", url.PathEscape(owner), url.PathEscape(repo)}, rest...)
	return "/" + strings.Join(parts, "/")
}

func contentsEndpoint(loc source.Location) (string, url.Values) {
	endpoint := repoEndpoint(loc.Owner, loc.Repo, "contents", escapePath(loc.Path))
	if loc.Ref == "" {
		return endpoint, nil
	}
	return endpoint, url.Values{"ref": {loc.Ref}}
}

// GetFileContent implements source.Fetcher. It returns the base64 content
// field of the contents API. Files too large for inline content are
// downloaded raw and encoded locally.
func (c *GitHubClient) GetFileContent(ctx context.Context, loc source.Location) (string, error) {
	endpoint, query := contentsEndpoint(loc)
	req, err := c.NewRequest(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return "", err
	}

	var raw json.RawMessage
	if err := c.DoRequest(req, &raw); err != nil {
		return "", err
	}
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		return "", errors.ValidationError("path is a directory, not a file").
			WithContext("location", loc.String()).
			Build()
	}

	var content githubContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return "", errors.ForgeError("failed to decode contents response").
			WithCause(err).
			WithContext("location", loc.String()).
			Build()
	}
	if content.Type != "" && content.Type != "file" {
		return "", errors.ValidationError(fmt.Sprintf("path is a %s, not a file", content.Type)).
			WithContext("location", loc.String()).
			Build()
	}

	if content.Encoding == "base64" || (content.Encoding == "" && content.Content != "") {
		slog.Debug("Fetched file", logfields.Path(loc.Path), logfields.Ref(loc.Ref), slog.Int64("size", content.Size))
		return content.Content, nil
	}
	if content.Size == 0 {
		return "", nil
	}

	// encoding "none": over the inline size limit
	rawReq, err := c.NewRequest(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return "", err
	}
	rawReq.Header.Set("Accept", githubRaw)
	data, err := c.DoRaw(rawReq)
	if err != nil {
		return "", err
	}
	slog.Debug("Fetched large file", logfields.Path(loc.Path), logfields.Ref(loc.Ref), slog.Int("size", len(data)))
	return source.Encode(data), nil
}

// LatestCommitSHA returns the SHA of the newest commit on the default branch.
func (c *GitHubClient) LatestCommitSHA(ctx context.Context, owner, repo string) (string, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, repoEndpoint(owner, repo, "commits"), url.Values{"per_page": {"1"}})
	if err != nil {
		return "", err
	}
	var commits []githubCommit
	if err := c.DoRequest(req, &commits); err != nil {
		return "", err
	}
	if len(commits) == 0 || commits[0].SHA == "" {
		return "", errors.NotFoundError("repository has no commits").
			WithContext("repository", owner+"/"+repo).
			Build()
	}
	return commits[0].SHA, nil
}

// BranchForCommit returns the first branch whose head is sha.
func (c *GitHubClient) BranchForCommit(ctx context.Context, owner, repo, sha string) (string, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, repoEndpoint(owner, repo, "commits", url.PathEscape(sha), "branches-where-head"), nil)
	if err != nil {
		return "", err
	}
	var branches []githubBranch
	if err := c.DoRequest(req, &branches); err != nil {
		return "", err
	}
	if len(branches) == 0 {
		return "", errors.NotFoundError("no branch has this commit as head").
			WithContext("repository", owner+"/"+repo).
			WithContext("sha", sha).
			Build()
	}
	return branches[0].Name, nil
}

// ResolveBranch returns the branch carrying the repository's latest commit.
func (c *GitHubClient) ResolveBranch(ctx context.Context, owner, repo string) (string, error) {
	sha, err := c.LatestCommitSHA(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	branch, err := c.BranchForCommit(ctx, owner, repo, sha)
	if err != nil {
		return "", err
	}
	slog.Info("Resolved branch from latest commit",
		logfields.Repository(owner+"/"+repo),
		logfields.Ref(branch),
		slog.String("sha", sha))
	return branch, nil
}

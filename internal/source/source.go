// Package source defines how deployment content is read from source control.
package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/qbdeploy/internal/retry"
)

// Location addresses one file in a repository at a reference.
type Location struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

func (l Location) String() string {
	if l.Ref == "" {
		return fmt.Sprintf("%s/%s:%s", l.Owner, l.Repo, l.Path)
	}
	return fmt.Sprintf("%s/%s@%s:%s", l.Owner, l.Repo, l.Ref, l.Path)
}

// WithPath returns a copy of l pointing at path.
func (l Location) WithPath(path string) Location {
	l.Path = path
	return l
}

// Fetcher returns a file's content encoded as base64 text. Each call is one
// round-trip to the backing store; failures are returned as classified
// errors (not_found, auth, network, forge).
type Fetcher interface {
	GetFileContent(ctx context.Context, loc Location) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, loc Location) (string, error)

// GetFileContent implements Fetcher.
func (f FetcherFunc) GetFileContent(ctx context.Context, loc Location) (string, error) {
	return f(ctx, loc)
}

// Decode turns fetched base64 text into bytes. Line breaks, which GitHub
// inserts every 60 characters, are ignored.
func Decode(content string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, content)
	return base64.StdEncoding.DecodeString(cleaned)
}

// Encode is the inverse of Decode for fetchers that read raw bytes.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Retrying wraps a Fetcher so transient failures are retried per policy.
// With the default policy every call is attempted exactly once.
func Retrying(f Fetcher, p retry.Policy) Fetcher {
	if p.MaxRetries <= 0 {
		return f
	}
	return FetcherFunc(func(ctx context.Context, loc Location) (string, error) {
		var content string
		err := retry.Do(ctx, p, func(ctx context.Context) error {
			var err error
			content, err = f.GetFileContent(ctx, loc)
			return err
		})
		return content, err
	})
}

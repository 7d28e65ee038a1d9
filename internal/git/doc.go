// Package git reads deployment content from a local clone with go-git.
//
// The Reader resolves a revision (branch, tag, commit or HEAD), walks the
// commit's tree and returns file blobs. It satisfies source.Fetcher so a
// deployment can run from a CI checkout without calling the GitHub API.
package git

// Package forge talks to source-hosting REST APIs. The GitHubClient reads
// repository contents and resolves branches for deployments.
package forge

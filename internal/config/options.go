package config

import (
	"strings"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
)

// Environment variable names understood by the deploy command.
const (
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvOwner         = "OWNER"
	EnvRepoName      = "REPO_NAME"
	EnvBranch        = "BRANCH"
	EnvAppToken      = "APP_TOKEN"
	EnvUserToken     = "USER_TOKEN"
	EnvDeploymentEnv = "DEPLOYMENT_ENV"
	EnvFolderPath    = "QBCLI_FOLDER_PATH"
)

// Deployment environments accepted by the prefix generator.
const (
	DeployDev  = "dev"
	DeployProd = "prod"
)

// ManifestFileName is the manifest looked up in the repository.
const ManifestFileName = "qbcli.json"

// positionalOrder is the order of positional deploy arguments.
var positionalOrder = []string{
	EnvGitHubToken,
	EnvOwner,
	EnvRepoName,
	EnvBranch,
	EnvAppToken,
	EnvUserToken,
	EnvDeploymentEnv,
	EnvFolderPath,
}

// RunOptions are the per-run inputs of a deployment.
type RunOptions struct {
	GitHubToken   string
	Owner         string
	Repo          string
	Branch        string
	AppToken      string
	UserToken     string
	DeploymentEnv string
	FolderPath    string
}

// ResolveRunOptions merges positional arguments with the environment.
// Positional arguments follow positionalOrder and may be written as
// KEY=value or as a bare value. For owner, repo, branch, both tokens and
// the deployment env a non-empty environment variable wins; the GitHub
// token prefers the argument; the folder path comes from arguments only.
func ResolveRunOptions(args []string, lookup LookupFunc) RunOptions {
	pos := make(map[string]string, len(positionalOrder))
	for i, raw := range args {
		if i >= len(positionalOrder) {
			break
		}
		pos[positionalOrder[i]] = argValue(raw)
	}

	env := func(key string) string {
		if lookup == nil {
			return ""
		}
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	envFirst := func(key string) string {
		if v := env(key); v != "" {
			return v
		}
		return pos[key]
	}

	token := pos[EnvGitHubToken]
	if token == "" {
		token = env(EnvGitHubToken)
	}

	return RunOptions{
		GitHubToken:   token,
		Owner:         envFirst(EnvOwner),
		Repo:          envFirst(EnvRepoName),
		Branch:        envFirst(EnvBranch),
		AppToken:      envFirst(EnvAppToken),
		UserToken:     envFirst(EnvUserToken),
		DeploymentEnv: envFirst(EnvDeploymentEnv),
		FolderPath:    pos[EnvFolderPath],
	}
}

// argValue strips a leading KEY= from a positional argument.
func argValue(raw string) string {
	idx := strings.IndexByte(raw, '=')
	if idx <= 0 || !isArgKey(raw[:idx]) {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(raw[idx+1:])
}

func isArgKey(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || r == '-':
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Validate fails fast on missing or unusable options before any network call.
func (o RunOptions) Validate(source SourceType) error {
	if source == SourceGitHub {
		if o.Owner == "" {
			return errors.ConfigMissing(EnvOwner)
		}
		if o.Repo == "" {
			return errors.ConfigMissing(EnvRepoName)
		}
	}
	if o.UserToken == "" {
		return errors.ConfigMissing(EnvUserToken)
	}
	if o.DeploymentEnv == "" {
		return errors.ConfigMissing(EnvDeploymentEnv)
	}
	if o.DeploymentEnv != DeployDev && o.DeploymentEnv != DeployProd {
		return errors.InvalidConfig(EnvDeploymentEnv, "must be dev or prod")
	}
	return nil
}

// ManifestPath returns the repository path of qbcli.json.
func (o RunOptions) ManifestPath() string {
	folder := strings.TrimPrefix(o.FolderPath, "./")
	if folder != "" && !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	return folder + ManifestFileName
}

// Repository returns owner/repo for logging.
func (o RunOptions) Repository() string {
	if o.Owner == "" && o.Repo == "" {
		return ""
	}
	return o.Owner + "/" + o.Repo
}

// DeployConfig carries what every upload needs: application id, realm and
// both tokens. It is built once per run and passed explicitly.
type DeployConfig struct {
	DBID      string
	Realm     string
	AppToken  string
	UserToken string
}

// NewDeployConfig combines run options with manifest deployment identifiers.
func NewDeployConfig(o RunOptions, dbid, realm string) DeployConfig {
	return DeployConfig{
		DBID:      dbid,
		Realm:     realm,
		AppToken:  o.AppToken,
		UserToken: o.UserToken,
	}
}

package manifest

import (
	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
)

// Default prefix letters per deployment environment.
const (
	DefaultDevPrefix  = "D"
	DefaultProdPrefix = "P"
)

// Overrides replaces the default prefix letters.
type Overrides struct {
	Dev  string
	Prod string
}

// Prefix derives the page name prefix for a deployment environment:
// "<D|override>_<id>_" for dev and "<P|override>_<id>_" for prod. Any other
// environment is an invalid configuration.
func Prefix(env, repositoryID string, o Overrides) (string, error) {
	var head string
	switch env {
	case "dev":
		head = DefaultDevPrefix
		if o.Dev != "" {
			head = o.Dev
		}
	case "prod":
		head = DefaultProdPrefix
		if o.Prod != "" {
			head = o.Prod
		}
	default:
		return "", errors.InvalidConfig("DEPLOYMENT_ENV", "must be dev or prod, got \""+env+"\"")
	}
	return head + "_" + repositoryID + "_", nil
}

// Prefix computes the prefix for env using the manifest's overrides and repository id.
func (m *Manifest) Prefix(env string) (string, error) {
	return Prefix(env, string(m.RepositoryID), Overrides{Dev: m.DevPrefix, Prod: m.ProdPrefix})
}

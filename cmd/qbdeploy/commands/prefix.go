package commands

import (
	"fmt"

	"git.home.luguber.info/inful/qbdeploy/internal/manifest"
)

// PrefixCmd implements the 'prefix' command.
type PrefixCmd struct {
	Env          string `arg:"" help:"Deployment environment (dev|prod)"`
	RepositoryID string `arg:"" name:"repository-id" help:"repositoryId from qbcli.json"`
	DevPrefix    string `name:"dev-prefix" help:"devPrefix override"`
	ProdPrefix   string `name:"prod-prefix" help:"prodPrefix override"`
}

func (p *PrefixCmd) Run(g *Global, _ *CLI) error {
	prefix, err := manifest.Prefix(p.Env, p.RepositoryID, manifest.Overrides{Dev: p.DevPrefix, Prod: p.ProdPrefix})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.Stdout, prefix)
	return err
}

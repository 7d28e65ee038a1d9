package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"10"`
	DB    string `name:"db" help:"History database (defaults to history.path from settings)"`
	Pages bool   `help:"Also list the pages of each run"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	path := h.DB
	if path == "" {
		settings, err := loadSettings(root, g.Lookup)
		if err != nil {
			return err
		}
		path = settings.History.Path
	}
	if path == "" {
		return errors.ConfigMissing("history.path")
	}

	store, err := history.Open(path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to open history").
			WithContext("path", path).
			Build()
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read history").Build()
	}

	w := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STARTED\tRUN\tREPOSITORY\tREF\tENV\tPAGES\tOUTCOME")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.ID, r.Owner, r.Repo, r.Ref, r.Env, len(r.Pages), r.Outcome)
		if h.Pages {
			for _, p := range r.Pages {
				_, _ = fmt.Fprintf(w, "\t\t  %s\t\t\t%d\t%s %s\n", p.Name, p.ErrCode, p.Status, p.ErrText)
			}
		}
	}
	return w.Flush()
}

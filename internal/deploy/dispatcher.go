package deploy

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
	"git.home.luguber.info/inful/qbdeploy/internal/quickbase"
	"git.home.luguber.info/inful/qbdeploy/internal/transform"
)

// Platform uploads pages and builds their browser URLs.
type Platform interface {
	AddReplaceDBPage(ctx context.Context, cfg config.DeployConfig, page quickbase.Page) (*quickbase.Response, error)
	PageURL(cfg config.DeployConfig, pageName string) string
}

// Outcome is the settled result of one upload. Exactly one of Response
// and Err is set.
type Outcome struct {
	File     transform.File
	Response *quickbase.Response
	Err      error
}

// Dispatcher uploads transformed files with bounded concurrency.
type Dispatcher struct {
	platform Platform
	limit    int
}

// NewDispatcher creates a Dispatcher. A limit of 0 issues every upload at once.
func NewDispatcher(platform Platform, limit int) *Dispatcher {
	return &Dispatcher{platform: platform, limit: limit}
}

// Dispatch uploads every file and waits for all uploads to settle.
// Outcomes follow the order of files. When any upload failed, the first
// failure in file order is returned alongside the outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg config.DeployConfig, files []transform.File) ([]Outcome, error) {
	slog.Info("Uploading pages", logfields.Count(len(files)), slog.Int("concurrency", d.limit))

	results := runOrdered(files, d.limit, func(f transform.File) (*quickbase.Response, error) {
		return d.platform.AddReplaceDBPage(ctx, cfg, quickbase.Page{Name: f.Name, Body: f.Content})
	})

	outcomes := make([]Outcome, len(files))
	var firstErr error
	for i, r := range results {
		outcomes[i] = Outcome{File: files[i], Response: r.Value, Err: r.Err}
		if r.Err != nil {
			slog.Error("Upload failed", logfields.Page(files[i].Name), logfields.Error(r.Err))
			if firstErr == nil {
				firstErr = r.Err
			}
		}
	}
	return outcomes, firstErr
}

package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/deploy"
	"git.home.luguber.info/inful/qbdeploy/internal/forge"
	"git.home.luguber.info/inful/qbdeploy/internal/git"
	"git.home.luguber.info/inful/qbdeploy/internal/history"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
	"git.home.luguber.info/inful/qbdeploy/internal/metrics"
	"git.home.luguber.info/inful/qbdeploy/internal/quickbase"
	"git.home.luguber.info/inful/qbdeploy/internal/retry"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
)

// DeployCmd implements the 'deploy' command.
type DeployCmd struct {
	Args            []string `arg:"" optional:"" help:"GITHUB_TOKEN OWNER REPO_NAME BRANCH APP_TOKEN USER_TOKEN DEPLOYMENT_ENV QBCLI_FOLDER_PATH, each bare or as KEY=value"`
	DryRun          bool     `name:"dry-run" help:"Fetch and transform without uploading; print the plan"`
	AllowRejections bool     `name:"allow-rejections" help:"Log pages the platform rejects without failing the run"`
	Concurrency     int      `name:"concurrency" help:"Maximum parallel fetches and uploads (0 = unbounded, -1 = from settings)" default:"-1"`
	Source          string   `name:"source" help:"Override source.type (github|git)"`
	RepoPath        string   `name:"repo-path" help:"Local clone for the git source"`
}

func (d *DeployCmd) Run(g *Global, root *CLI) error {
	settings, err := loadSettings(root, g.Lookup)
	if err != nil {
		return err
	}
	d.applyOverrides(settings)
	if err := settings.Validate(); err != nil {
		return err
	}
	policy := retry.FromSettings(settings.Retry)
	if err := policy.Validate(); err != nil {
		return err
	}

	ro := config.ResolveRunOptions(d.Args, g.Lookup)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var fetcher source.Fetcher
	var options []deploy.Option
	switch settings.Source.Type {
	case config.SourceGit:
		reader, err := git.Open(settings.Source.Path)
		if err != nil {
			return err
		}
		fetcher = reader
	default:
		gh := forge.NewGitHubClient(&http.Client{Timeout: settings.GitHub.Timeout}, settings.GitHub.APIURL, ro.GitHubToken)
		fetcher = gh
		options = append(options, deploy.WithBranchResolver(gh))
	}
	fetcher = source.Retrying(fetcher, policy)

	platform := quickbase.NewClient(nil,
		quickbase.WithDomain(settings.Platform.Domain),
		quickbase.WithBaseURL(settings.Platform.BaseURL),
		quickbase.WithTimeout(settings.Platform.Timeout))

	var recorder *metrics.PrometheusRecorder
	if settings.Metrics.Textfile != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
		options = append(options, deploy.WithRecorder(recorder))
	}

	if settings.History.Path != "" && !d.DryRun {
		store, err := history.Open(settings.History.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		options = append(options, deploy.WithHistory(store))
	}
	options = append(options, deploy.WithPlanOutput(g.Stdout))

	deployer := deploy.New(fetcher, platform, deploy.Options{
		Source:          settings.Source.Type,
		Concurrency:     settings.ConcurrencyLimit(),
		AllowRejections: settings.Report.AllowRejections,
		DryRun:          d.DryRun,
	}, options...)

	_, runErr := deployer.Run(ctx, ro)

	if recorder != nil {
		if err := recorder.WriteTextfile(settings.Metrics.Textfile); err != nil {
			slog.Warn("Failed to write metrics", logfields.Path(settings.Metrics.Textfile), logfields.Error(err))
		}
	}
	return runErr
}

// applyOverrides lets flags win over the settings file.
func (d *DeployCmd) applyOverrides(s *config.Settings) {
	if d.Source != "" {
		s.Source.Type = config.NormalizeSourceType(d.Source)
	}
	if d.RepoPath != "" {
		s.Source.Path = d.RepoPath
	}
	if d.Concurrency >= 0 {
		n := d.Concurrency
		s.Dispatch.Concurrency = &n
		s.Dispatch.Unbounded = n == 0
	}
	if d.AllowRejections {
		s.Report.AllowRejections = true
	}
}

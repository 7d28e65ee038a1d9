package deploy

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/history"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
	"git.home.luguber.info/inful/qbdeploy/internal/manifest"
	"git.home.luguber.info/inful/qbdeploy/internal/metrics"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
	"git.home.luguber.info/inful/qbdeploy/internal/transform"
)

// Stage names used in logs and metrics.
const (
	StageManifest  = "manifest"
	StageTransform = "transform"
	StageUpload    = "upload"
	StageReport    = "report"
)

// BranchResolver finds the branch to deploy when none was given.
type BranchResolver interface {
	ResolveBranch(ctx context.Context, owner, repo string) (string, error)
}

// HistoryRecorder persists finished runs.
type HistoryRecorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Options tune a Deployer.
type Options struct {
	Source          config.SourceType
	Concurrency     int // 0 = unbounded
	AllowRejections bool
	DryRun          bool
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Ref      string
	Prefix   string
	Manifest *manifest.Manifest
	Files    []transform.File
	Outcomes []Outcome
	Report   Report
}

// Deployer wires the pipeline stages together.
type Deployer struct {
	fetcher  source.Fetcher
	platform Platform
	opts     Options

	resolver BranchResolver
	recorder metrics.Recorder
	history  HistoryRecorder
	out      io.Writer
	logger   *slog.Logger

	newID func() string
	now   func() time.Time
}

// Option configures optional collaborators.
type Option func(*Deployer)

// WithBranchResolver resolves an empty branch before fetching.
func WithBranchResolver(r BranchResolver) Option {
	return func(d *Deployer) { d.resolver = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Deployer) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithHistory records every run that got past option validation.
func WithHistory(h HistoryRecorder) Option {
	return func(d *Deployer) { d.history = h }
}

// WithPlanOutput sets where the dry-run plan is printed.
func WithPlanOutput(w io.Writer) Option {
	return func(d *Deployer) { d.out = w }
}

// WithLogger sets the base logger; every record carries the run id.
func WithLogger(l *slog.Logger) Option {
	return func(d *Deployer) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Deployer.
func New(fetcher source.Fetcher, platform Platform, opts Options, options ...Option) *Deployer {
	if opts.Source == "" {
		opts.Source = config.SourceGitHub
	}
	d := &Deployer{
		fetcher:  fetcher,
		platform: platform,
		opts:     opts,
		recorder: metrics.NoopRecorder{},
		out:      io.Discard,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Run executes one deployment. Options are validated before any network
// call. A dry run stops after the transform stage and prints the plan.
func (d *Deployer) Run(ctx context.Context, ro config.RunOptions) (*Result, error) {
	if err := ro.Validate(d.opts.Source); err != nil {
		return nil, err
	}

	res := &Result{RunID: d.newID(), Ref: ro.Branch}
	started := d.now()
	log := d.logger.With(logfields.RunID(res.RunID))
	log.Info("Deployment started",
		logfields.Repository(ro.Repository()),
		logfields.Env(ro.DeploymentEnv),
		slog.Bool("dry_run", d.opts.DryRun))

	err := d.run(ctx, log, ro, res)
	d.finish(ctx, log, ro, res, started, err)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (d *Deployer) run(ctx context.Context, log *slog.Logger, ro config.RunOptions, res *Result) error {
	if res.Ref == "" && d.resolver != nil {
		ref, err := d.resolver.ResolveBranch(ctx, ro.Owner, ro.Repo)
		if err != nil {
			return errors.FetchFailed(ro.ManifestPath(), err)
		}
		res.Ref = ref
	}
	base := source.Location{Owner: ro.Owner, Repo: ro.Repo, Ref: res.Ref}

	var m *manifest.Manifest
	err := d.stage(log, StageManifest, func() error {
		var err error
		m, err = d.loadManifest(ctx, base.WithPath(ro.ManifestPath()))
		return err
	})
	if err != nil {
		return err
	}
	res.Manifest = m

	prefix, err := m.Prefix(ro.DeploymentEnv)
	if err != nil {
		return err
	}
	res.Prefix = prefix
	log.Info("Manifest loaded", logfields.Prefix(prefix), logfields.Count(len(m.Files)), logfields.Ref(res.Ref))

	err = d.stage(log, StageTransform, func() error {
		var err error
		res.Files, err = transform.NewStage(d.fetcher, d.opts.Concurrency).Run(ctx, m, prefix, base)
		return err
	})
	if err != nil {
		return err
	}

	cfg := config.NewDeployConfig(ro, m.DBID, m.Realm)
	if d.opts.DryRun {
		return d.printPlan(cfg, res)
	}

	d.recorder.SetUploadConcurrency(d.opts.Concurrency)
	err = d.stage(log, StageUpload, func() error {
		var err error
		res.Outcomes, err = NewDispatcher(d.platform, d.opts.Concurrency).Dispatch(ctx, cfg, res.Files)
		return err
	})
	d.countPages(res.Outcomes)
	if err != nil {
		return err
	}

	return d.stage(log, StageReport, func() error {
		var err error
		res.Report, err = NewReporter(d.platform, d.opts.AllowRejections).WithLogger(log).Report(cfg, res.Outcomes)
		return err
	})
}

func (d *Deployer) loadManifest(ctx context.Context, loc source.Location) (*manifest.Manifest, error) {
	content, err := d.fetcher.GetFileContent(ctx, loc)
	if err != nil {
		return nil, errors.FetchFailed(loc.Path, err)
	}
	m, err := manifest.Decode(content)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// stage times fn and records its result.
func (d *Deployer) stage(log *slog.Logger, name string, fn func() error) error {
	start := d.now()
	err := fn()
	elapsed := d.now().Sub(start)
	d.recorder.ObserveStageDuration(name, elapsed)

	result := metrics.ResultSuccess
	switch {
	case err == nil:
	case stderrors.Is(err, context.Canceled):
		result = metrics.ResultCanceled
	default:
		result = metrics.ResultFailed
	}
	d.recorder.IncStageResult(name, result)
	log.Debug("Stage finished", logfields.Stage(name), logfields.DurationMS(float64(elapsed.Milliseconds())), slog.String("result", string(result)))
	return err
}

func (d *Deployer) countPages(outcomes []Outcome) {
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			d.recorder.IncPageResult(metrics.PageFailed)
		case o.Response != nil && o.Response.Rejected():
			d.recorder.IncPageResult(metrics.PageRejected)
		default:
			d.recorder.IncPageResult(metrics.PageUploaded)
		}
	}
}

func (d *Deployer) printPlan(cfg config.DeployConfig, res *Result) error {
	_, err := fmt.Fprintf(d.out, "Dry run %s: %d page(s) for app %s in realm %s\n", res.RunID, len(res.Files), cfg.DBID, cfg.Realm)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write plan").Build()
	}
	for _, f := range res.Files {
		marker := ""
		if f.IsIndex {
			marker = " (index)"
		}
		if _, err := fmt.Fprintf(d.out, "  %s <- %s, %d bytes%s\n", f.Name, f.Source, len(transform.UnescapeCDATA(f.Content)), marker); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to write plan").Build()
		}
	}
	return nil
}

func (d *Deployer) outcome(err error) metrics.RunOutcome {
	switch {
	case err == nil && d.opts.DryRun:
		return metrics.RunDryRun
	case err == nil:
		return metrics.RunSuccess
	case errors.HasCategory(err, errors.CategoryPlatform):
		return metrics.RunRejected
	default:
		return metrics.RunFailed
	}
}

func (d *Deployer) finish(ctx context.Context, log *slog.Logger, ro config.RunOptions, res *Result, started time.Time, runErr error) {
	finished := d.now()
	outcome := d.outcome(runErr)
	d.recorder.ObserveRunDuration(finished.Sub(started))
	d.recorder.IncRunOutcome(outcome)

	attrs := []any{slog.String("outcome", string(outcome)), logfields.DurationMS(float64(finished.Sub(started).Milliseconds()))}
	if runErr != nil {
		log.Error("Deployment finished", append(attrs, logfields.Error(runErr))...)
	} else {
		log.Info("Deployment finished", attrs...)
	}

	if d.history == nil || d.opts.DryRun {
		return
	}
	run := history.Run{
		ID:         res.RunID,
		Owner:      ro.Owner,
		Repo:       ro.Repo,
		Ref:        res.Ref,
		Env:        ro.DeploymentEnv,
		Prefix:     res.Prefix,
		StartedAt:  started,
		FinishedAt: finished,
		Outcome:    string(outcome),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	for _, o := range res.Outcomes {
		p := history.Page{Name: o.File.Name, Status: string(metrics.PageUploaded)}
		switch {
		case o.Err != nil:
			p.Status = string(metrics.PageFailed)
			p.ErrText = o.Err.Error()
		case o.Response != nil && o.Response.Rejected():
			p.Status = string(metrics.PageRejected)
			p.ErrCode = o.Response.ErrCode
			p.ErrText = o.Response.ErrText
		}
		run.Pages = append(run.Pages, p)
	}
	// Detached so a cancelled run is still recorded.
	if err := d.history.Record(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("Failed to record run history", logfields.Error(err))
	}
}

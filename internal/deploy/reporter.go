package deploy

import (
	"log/slog"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
)

// Report summarizes a settled batch.
type Report struct {
	Uploaded  []string // accepted page names in manifest order
	Rejected  []string // page names with a non-zero errcode
	LaunchURL string   // browser URL of the index page, if any
}

// Reporter inspects upload responses.
type Reporter struct {
	platform        Platform
	allowRejections bool
	logger          *slog.Logger
}

// NewReporter creates a Reporter. With allowRejections set, rejected pages
// are logged but do not fail the run.
func NewReporter(platform Platform, allowRejections bool) *Reporter {
	return &Reporter{platform: platform, allowRejections: allowRejections, logger: slog.Default()}
}

// WithLogger sets the logger rejections and the launch URL are written to.
func (r *Reporter) WithLogger(l *slog.Logger) *Reporter {
	if l != nil {
		r.logger = l
	}
	return r
}

// Report logs every rejected page and returns a RemoteRejection error when
// any page was rejected and rejections are not allowed. Outcomes without a
// response are skipped.
func (r *Reporter) Report(cfg config.DeployConfig, outcomes []Outcome) (Report, error) {
	var rep Report
	for _, o := range outcomes {
		if o.Response == nil {
			continue
		}
		name := o.Response.PageName
		if name == "" {
			name = o.File.Name
		}
		if o.Response.Rejected() {
			r.logger.Error("Page rejected",
				logfields.Page(name),
				logfields.ErrCode(o.Response.ErrCode),
				slog.String("errtext", o.Response.ErrText),
				slog.String("errdetail", o.Response.ErrDetail))
			rep.Rejected = append(rep.Rejected, name)
			continue
		}
		rep.Uploaded = append(rep.Uploaded, name)
		if o.File.IsIndex {
			rep.LaunchURL = r.platform.PageURL(cfg, o.File.Name)
		}
	}

	if rep.LaunchURL != "" {
		r.logger.Info("Application launch page", logfields.URL(rep.LaunchURL))
	}
	if len(rep.Rejected) > 0 && !r.allowRejections {
		return rep, errors.RemoteRejection(rep.Rejected)
	}
	if len(rep.Rejected) == 0 {
		r.logger.Info("Files deployed successfully", logfields.Count(len(rep.Uploaded)))
	}
	return rep, nil
}

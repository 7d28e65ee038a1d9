package transform

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
	"git.home.luguber.info/inful/qbdeploy/internal/manifest"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
)

// File is a build file ready for upload.
type File struct {
	Name    string // prefixed page name
	Source  string // filename in the manifest
	Content string // CDATA-escaped body
	IsIndex bool
}

// Stage fetches and transforms every file a manifest lists.
type Stage struct {
	fetcher     source.Fetcher
	concurrency int
}

// NewStage creates a Stage. A concurrency of 0 fetches every file at once.
func NewStage(fetcher source.Fetcher, concurrency int) *Stage {
	return &Stage{fetcher: fetcher, concurrency: concurrency}
}

// Run fetches the manifest's files relative to base and transforms them
// with prefix. Results follow manifest order. The first failure cancels
// outstanding fetches and is returned; no partial result is produced.
func (s *Stage) Run(ctx context.Context, m *manifest.Manifest, prefix string, base source.Location) ([]File, error) {
	start := time.Now()
	out := make([]File, len(m.Files))

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, fd := range m.Files {
		g.Go(func() error {
			text, err := s.fetch(gctx, base.WithPath(m.FilePath(fd.Filename)))
			if err != nil {
				return err
			}
			if text == "" {
				return errors.MissingFileContent(fd.Filename)
			}
			out[i] = File{
				Name:    prefix + fd.Filename,
				Source:  fd.Filename,
				Content: Apply(text, prefix, dependencyNames(m, fd)),
				IsIndex: fd.IsIndexFile,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("Transformed files",
		logfields.Count(len(out)),
		logfields.Prefix(prefix),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return out, nil
}

func (s *Stage) fetch(ctx context.Context, loc source.Location) (string, error) {
	encoded, err := s.fetcher.GetFileContent(ctx, loc)
	if err != nil {
		return "", errors.FetchFailed(loc.Path, err)
	}
	data, err := source.Decode(encoded)
	if err != nil {
		return "", errors.TransformError("file content is not valid base64").
			WithCause(err).
			WithContext("path", loc.Path).
			Build()
	}
	slog.Debug("Fetched file", logfields.Path(loc.Path), slog.Int("bytes", len(data)))
	return string(data), nil
}

// Apply runs the fixed transformation order on one file's text: BOM
// removal, dependency rewrite, CDATA escaping.
func Apply(text, prefix string, deps []string) string {
	text = StripBOM(text)
	text = RewriteDependencies(text, prefix, deps)
	return EscapeCDATA(text)
}

func dependencyNames(m *manifest.Manifest, fd manifest.FileDescriptor) []string {
	names := make([]string, 0, len(fd.Dependencies))
	for _, idx := range fd.Dependencies {
		if idx >= 0 && idx < len(m.Files) {
			names = append(names, m.Files[idx].Filename)
		}
	}
	return names
}

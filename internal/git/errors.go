package git

import (
	stderrors "errors"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op, target string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	category := errors.CategoryForge
	switch {
	case stderrors.Is(err, gogit.ErrRepositoryNotExists),
		stderrors.Is(err, plumbing.ErrReferenceNotFound),
		stderrors.Is(err, plumbing.ErrObjectNotFound),
		stderrors.Is(err, object.ErrFileNotFound),
		strings.Contains(strings.ToLower(err.Error()), "not found"):
		category = errors.CategoryNotFound
	}

	return errors.WrapError(err, category, "git operation failed").
		WithContext("op", op).
		WithContext("target", target).
		Build()
}

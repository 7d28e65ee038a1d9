// Package manifest models qbcli.json, the deployment manifest kept in the
// source repository, and derives page name prefixes from it.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/source"
)

// Manifest is the parsed qbcli.json. It is read-only after Parse.
type Manifest struct {
	DeployPath   string           `json:"deployPath"`
	DevPrefix    string           `json:"devPrefix,omitempty"`
	ProdPrefix   string           `json:"prodPrefix,omitempty"`
	RepositoryID RepositoryID     `json:"repositoryId"`
	DBID         string           `json:"dbid"`
	Realm        string           `json:"realm"`
	Files        []FileDescriptor `json:"filesConf"`
}

// FileDescriptor names one build output file. Dependencies are indices into
// Manifest.Files of files this one references with pagename=.
type FileDescriptor struct {
	Filename     string `json:"filename"`
	Dependencies []int  `json:"dependencies,omitempty"`
	IsIndexFile  bool   `json:"isIndexFile,omitempty"`
}

// RepositoryID accepts both JSON strings and numbers.
type RepositoryID string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RepositoryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RepositoryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("repositoryId must be a string or number: %w", err)
	}
	*r = RepositoryID(n.String())
	return nil
}

// Parse decodes qbcli.json content.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse manifest").
			Fatal().
			Build()
	}
	return &m, nil
}

// Decode parses qbcli.json from the base64 text a source.Fetcher returns.
func Decode(content string) (*Manifest, error) {
	data, err := source.Decode(content)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "manifest is not valid base64").
			Fatal().
			Build()
	}
	return Parse(data)
}

// Validate checks the structure the deployment relies on. Dependency cycles
// are accepted: a rewrite only renames references and never recurses.
func (m *Manifest) Validate() error {
	if m.DBID == "" {
		return invalid("dbid", "application id is required")
	}
	if m.Realm == "" {
		return invalid("realm", "realm is required")
	}
	if len(m.Files) == 0 {
		return invalid("filesConf", "no files to deploy")
	}
	for i, f := range m.Files {
		if f.Filename == "" {
			return invalid("filesConf["+strconv.Itoa(i)+"].filename", "filename is required")
		}
		for _, dep := range f.Dependencies {
			if dep < 0 || dep >= len(m.Files) {
				return invalid("filesConf["+strconv.Itoa(i)+"].dependencies",
					fmt.Sprintf("index %d out of range [0,%d)", dep, len(m.Files)))
			}
		}
	}
	return nil
}

func invalid(field, reason string) error {
	return errors.ValidationError("invalid manifest").
		WithContext("field", field).
		WithContext("reason", reason).
		Build()
}

// IndexFile returns the descriptor flagged as the launch page, if any.
func (m *Manifest) IndexFile() (FileDescriptor, bool) {
	for _, f := range m.Files {
		if f.IsIndexFile {
			return f, true
		}
	}
	return FileDescriptor{}, false
}

// FilePath joins the deploy path and a filename the way the repository stores them.
func (m *Manifest) FilePath(filename string) string {
	return m.DeployPath + "/" + filename
}

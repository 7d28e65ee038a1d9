package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
)

// DefaultSettingsPath is the settings file looked up when --config is not given.
const DefaultSettingsPath = "qbdeploy.yaml"

// SourceType selects where manifest and build files are read from.
type SourceType string

const (
	SourceGitHub SourceType = "github" // GitHub contents API
	SourceGit    SourceType = "git"    // local clone read at a ref
)

// NormalizeSourceType maps user input to a SourceType, returning empty string for unknown.
func NormalizeSourceType(raw string) SourceType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(SourceGitHub):
		return SourceGitHub
	case string(SourceGit), "local":
		return SourceGit
	default:
		return ""
	}
}

// Settings holds tool behaviour that is not part of the repository manifest.
type Settings struct {
	Platform PlatformSettings `yaml:"platform"`
	GitHub   GitHubSettings   `yaml:"github"`
	Source   SourceSettings   `yaml:"source"`
	Dispatch DispatchSettings `yaml:"dispatch"`
	Retry    RetrySettings    `yaml:"retry"`
	Report   ReportSettings   `yaml:"report"`
	History  HistorySettings  `yaml:"history"`
	Metrics  MetricsSettings  `yaml:"metrics"`
}

// PlatformSettings configures the page hosting API.
type PlatformSettings struct {
	Domain  string        `yaml:"domain"`   // realm hostname suffix
	BaseURL string        `yaml:"base_url"` // overrides https://{realm}.{domain}
	Timeout time.Duration `yaml:"timeout"`
}

// GitHubSettings configures the GitHub contents client.
type GitHubSettings struct {
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SourceSettings selects the content fetcher.
type SourceSettings struct {
	Type SourceType `yaml:"type"`
	Path string     `yaml:"path"` // local clone, only for type git
}

// DefaultConcurrency bounds fetches and uploads when dispatch.concurrency is absent.
const DefaultConcurrency = 4

// DispatchSettings bounds upload fan-out. A nil Concurrency means the key was
// absent; an explicit 0 means unbounded.
type DispatchSettings struct {
	Concurrency *int `yaml:"concurrency"`
	Unbounded   bool `yaml:"unbounded"` // issue every upload at once
}

// RetrySettings configures backoff for transient network failures.
type RetrySettings struct {
	Mode       string        `yaml:"mode"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	MaxRetries int           `yaml:"max_retries"`
}

// BackoffMode names how the delay between retries grows.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// Backoff returns the configured mode, or empty when it is unset or unknown.
func (r RetrySettings) Backoff() BackoffMode {
	switch m := BackoffMode(strings.ToLower(strings.TrimSpace(r.Mode))); m {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		return m
	default:
		return ""
	}
}

// ReportSettings controls how per-page rejections affect the run.
type ReportSettings struct {
	AllowRejections bool `yaml:"allow_rejections"`
}

// HistorySettings configures the run ledger. Empty path disables it.
type HistorySettings struct {
	Path string `yaml:"path"`
}

// MetricsSettings configures the metrics textfile. Empty path disables it.
type MetricsSettings struct {
	Textfile string `yaml:"textfile"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.Platform.Domain == "" {
		s.Platform.Domain = "quickbase.com"
	}
	if s.Platform.Timeout <= 0 {
		s.Platform.Timeout = 60 * time.Second
	}
	if s.GitHub.APIURL == "" {
		s.GitHub.APIURL = "https://api.github.com"
	}
	if s.GitHub.Timeout <= 0 {
		s.GitHub.Timeout = 30 * time.Second
	}
	if t := NormalizeSourceType(string(s.Source.Type)); t != "" {
		s.Source.Type = t
	}
	if s.Dispatch.Concurrency == nil {
		n := DefaultConcurrency
		s.Dispatch.Concurrency = &n
	}
}

// Validate checks settings that cannot be defaulted.
func (s *Settings) Validate() error {
	switch s.Source.Type {
	case SourceGitHub:
	case SourceGit:
		if s.Source.Path == "" {
			return errors.ConfigMissing("source.path")
		}
	default:
		return errors.InvalidConfig("source.type", fmt.Sprintf("unknown source %q", s.Source.Type))
	}
	if s.Dispatch.Concurrency != nil && *s.Dispatch.Concurrency < 0 {
		return errors.InvalidConfig("dispatch.concurrency", "must not be negative")
	}
	if s.Retry.Mode != "" && s.Retry.Backoff() == "" {
		return errors.InvalidConfig("retry.mode", fmt.Sprintf("unknown backoff %q", s.Retry.Mode))
	}
	if s.Retry.MaxRetries < 0 {
		return errors.InvalidConfig("retry.max_retries", "must not be negative")
	}
	return nil
}

// ConcurrencyLimit returns the upload limit; 0 means unbounded.
func (s *Settings) ConcurrencyLimit() int {
	if s.Dispatch.Unbounded {
		return 0
	}
	if s.Dispatch.Concurrency == nil {
		return DefaultConcurrency
	}
	return *s.Dispatch.Concurrency
}

// LoadSettings reads a YAML settings file, expanding ${VAR} references
// through lookup. A missing file yields defaults unless mustExist is set.
func LoadSettings(path string, lookup LookupFunc, mustExist bool) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return DefaultSettings(), nil
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read settings file").
			Fatal().
			WithContext("path", path).
			Build()
	}

	expanded := os.Expand(string(data), func(key string) string {
		if lookup == nil {
			return ""
		}
		v, _ := lookup(key)
		return v
	})

	var s Settings
	if err := yaml.Unmarshal([]byte(expanded), &s); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse settings file").
			Fatal().
			WithContext("path", path).
			Build()
	}
	s.applyDefaults()
	return &s, nil
}

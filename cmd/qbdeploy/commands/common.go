package commands

import (
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
)

// EnvLogLevel overrides the log level when --verbose is not given.
const EnvLogLevel = "QBDEPLOY_LOG_LEVEL"

// Global carries process state shared by every command.
type Global struct {
	Stdout io.Writer
	Stderr io.Writer
	Lookup config.LookupFunc
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Settings file path" default:"qbdeploy.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	DetailedExitCodes bool `name:"detailed-exit-codes" env:"QBDEPLOY_DETAILED_EXIT_CODES" help:"Exit with a per-category code instead of 1 on failure"`

	Deploy  DeployCmd  `cmd:"" default:"withargs" help:"Deploy the files listed in qbcli.json as Quick Base pages"`
	Prefix  PrefixCmd  `cmd:"" help:"Print the page name prefix for an environment and repository id"`
	History HistoryCmd `cmd:"" help:"List recent deployment runs"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := parseLogLevel(c.Verbose, g.Lookup)
	g.Logger = slog.New(slog.NewTextHandler(g.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.Logger)
	return nil
}

// parseLogLevel honours --verbose first, then QBDEPLOY_LOG_LEVEL.
func parseLogLevel(verbose bool, lookup config.LookupFunc) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if lookup == nil {
		return slog.LevelInfo
	}
	raw, _ := lookup(EnvLogLevel)
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadSettings reads the settings file. The default path may be absent;
// an explicitly chosen one must exist.
func loadSettings(root *CLI, lookup config.LookupFunc) (*config.Settings, error) {
	mustExist := root.Config != config.DefaultSettingsPath
	s, err := config.LoadSettings(root.Config, lookup, mustExist)
	if err != nil {
		return nil, err
	}
	return s, nil
}

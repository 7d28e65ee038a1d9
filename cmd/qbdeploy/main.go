package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/qbdeploy/cmd/qbdeploy/commands"
	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/version"
)

func main() {
	if _, err := config.LoadDotEnv(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(errors.ExitGeneral)
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

// run parses args, executes the selected command and returns the exit code.
func run(args []string, stdout, stderr io.Writer, lookup config.LookupFunc) int {
	cli := &commands.CLI{}
	g := &commands.Global{Stdout: stdout, Stderr: stderr, Lookup: lookup}

	exitCode := -1
	parser, err := kong.New(cli,
		kong.Name("qbdeploy"),
		kong.Description("Deploy build files listed in qbcli.json to Quick Base pages."),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
		kong.UsageOnError(),
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "qbdeploy: %v\n", err)
		return errors.ExitGeneral
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help or --version
		return exitCode
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "qbdeploy: %v\n", err)
		if cli.DetailedExitCodes {
			return errors.ExitUsage
		}
		return errors.ExitGeneral
	}

	if err := kctx.Run(g, cli); err != nil {
		code := errors.ExitGeneral
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).
			WithDetailedExitCodes(cli.DetailedExitCodes).
			WithOutput(stderr).
			WithExit(func(c int) { code = c }).
			HandleError(err)
		return code
	}
	return errors.ExitOK
}

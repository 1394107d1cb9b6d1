// Package cli defines the terragrunt command line surface: the run-all subcommands that operate across every
// discovered module, the single-module terraform passthrough subcommands, and graph-dependencies.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/tf"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/google/shlex"
	"github.com/hashicorp/go-multierror"
	isatty "github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// AppName is the command users invoke.
const AppName = "terragrunt"

// AppVersion is set at build time via -ldflags.
var AppVersion = "dev"

const (
	flagWorkingDir             = "working-dir"
	flagParallelism            = "parallelism"
	flagIncludeDir             = "include-dir"
	flagExcludeDir             = "exclude-dir"
	flagNonInteractive         = "non-interactive"
	flagDryRun                 = "dry-run"
	flagLogLevel               = "log-level"
	flagNoAutoRetry            = "no-auto-retry"
	flagNoAutoInit             = "no-auto-init"
	flagIgnoreDependencyErrors = "ignore-dependency-errors"
	flagIgnoreDependencyOrder  = "ignore-dependency-order"
	flagTfPath                 = "tf-path"
	flagTfArgs                 = "tf-args"
)

// NewApp builds the terragrunt cli application, with all output going to the given writers.
func NewApp(writer io.Writer, errWriter io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = AppName
	app.Version = AppVersion
	app.Usage = "Run terraform commands against one module or a whole tree of modules in dependency order."
	app.Writer = writer
	app.ErrWriter = errWriter
	app.ExitErrHandler = func(ctx *cli.Context, err error) {} // exit handling lives in main
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: flagWorkingDir, Usage: "The directory to run in. Defaults to the current directory."},
		&cli.IntFlag{Name: flagParallelism, Value: options.DefaultParallelism, Usage: "Maximum number of modules to process concurrently during run-all commands."},
		&cli.StringSliceFlag{Name: flagIncludeDir, Usage: "Unix-style glob of directories to include during run-all commands. May be specified multiple times."},
		&cli.StringSliceFlag{Name: flagExcludeDir, Usage: "Unix-style glob of directories to exclude during run-all commands. May be specified multiple times."},
		&cli.BoolFlag{Name: flagNonInteractive, Usage: "Assume \"yes\" for all prompts and pass -input=false to terraform."},
		&cli.BoolFlag{Name: flagDryRun, Usage: "Log the terraform commands that would run without invoking them."},
		&cli.StringFlag{Name: flagLogLevel, Value: logrus.InfoLevel.String(), Usage: "Log level (trace, debug, info, warn, error)."},
		&cli.BoolFlag{Name: flagNoAutoRetry, Usage: "Do not automatically retry terraform commands that fail with a known transient error."},
		&cli.BoolFlag{Name: flagNoAutoInit, Usage: "Do not automatically run terraform init when a module has never been initialized."},
		&cli.BoolFlag{Name: flagIgnoreDependencyErrors, Usage: "Continue processing modules even when one of their dependencies fails."},
		&cli.BoolFlag{Name: flagIgnoreDependencyOrder, Usage: "Ignore the dependency graph and run every module as soon as a slot is free."},
		&cli.StringFlag{Name: flagTfPath, Value: "terraform", Usage: "Path to the terraform binary."},
		&cli.StringFlag{Name: flagTfArgs, Usage: "Extra arguments to pass through to every terraform invocation, as one shell-quoted string."},
	}
	app.Commands = append(runAllCommand(), append(graphDependenciesCommand(), singleModuleCommands()...)...)

	return app
}

// parseTerragruntOptions converts the parsed cli flags into a TerragruntOptions and wires up the single-module
// runner.
func parseTerragruntOptions(cliCtx *cli.Context) (*options.TerragruntOptions, error) {
	workingDir := cliCtx.String(flagWorkingDir)
	if workingDir == "" {
		currentDir, err := os.Getwd()
		if err != nil {
			return nil, errors.WithStack(err)
		}

		workingDir = currentDir
	}

	canonicalWorkingDir, err := util.CanonicalPath(workingDir, ".")
	if err != nil {
		return nil, err
	}

	opts, err := options.NewTerragruntOptions(filepath.Join(canonicalWorkingDir, options.DefaultConfigName))
	if err != nil {
		return nil, err
	}

	logLevel, err := logrus.ParseLevel(cliCtx.String(flagLogLevel))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	opts.Logger = newLogEntry(cliCtx.App.ErrWriter, logLevel)
	opts.LogLevel = logLevel
	opts.TerraformPath = cliCtx.String(flagTfPath)
	opts.NonInteractive = cliCtx.Bool(flagNonInteractive)
	opts.DryRun = cliCtx.Bool(flagDryRun)
	opts.AutoRetry = !cliCtx.Bool(flagNoAutoRetry)
	opts.AutoInit = !cliCtx.Bool(flagNoAutoInit)
	opts.IgnoreDependencyErrors = cliCtx.Bool(flagIgnoreDependencyErrors)
	opts.IgnoreDependencyOrder = cliCtx.Bool(flagIgnoreDependencyOrder)
	opts.IncludeDirs = cliCtx.StringSlice(flagIncludeDir)
	opts.ExcludeDirs = cliCtx.StringSlice(flagExcludeDir)
	opts.Parallelism = cliCtx.Int(flagParallelism)
	opts.Writer = cliCtx.App.Writer
	opts.ErrWriter = cliCtx.App.ErrWriter
	opts.RunTerragrunt = tf.RunTerragrunt

	if tfArgs := cliCtx.String(flagTfArgs); tfArgs != "" {
		extraArgs, err := shlex.Split(tfArgs)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --%s value %q", flagTfArgs, tfArgs)
		}

		opts.TerraformCliArgs = append(opts.TerraformCliArgs, extraArgs...)
	}

	return opts, nil
}

// newLogEntry builds the run-wide logger. Colors are enabled only when the destination is a terminal.
func newLogEntry(errWriter io.Writer, level logrus.Level) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(errWriter)
	logger.SetLevel(level)

	useColors := false
	if f, ok := errWriter.(*os.File); ok {
		useColors = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   useColors,
		DisableColors: !useColors,
	})

	return logrus.NewEntry(logger)
}

// ExitStatus converts a run error into a process exit code and reports the number of failed modules on errWriter.
func ExitStatus(err error, errWriter io.Writer) int {
	if err == nil {
		return 0
	}

	failedCount := 1

	var multiErr *multierror.Error
	if errors.As(err, &multiErr) {
		failedCount = len(multiErr.Errors)
	}

	fmt.Fprintf(errWriter, "%s: %d error(s) occurred:\n%v\n", AppName, failedCount, err)

	return 1
}

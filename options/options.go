package options

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultConfigName is the name of the configuration file that marks a directory as a module.
	DefaultConfigName = "terragrunt.hcl"

	// TerraformDataDir is the directory terraform keeps its local state and providers in. We never descend into it
	// while discovering modules.
	TerraformDataDir = ".terraform"

	// DefaultParallelism limits how many module pipelines may run their subprocess step concurrently during
	// run-all commands.
	DefaultParallelism = 10
)

// TerraformCommandsNeedInput is the set of terraform commands that might prompt on stdin. During run-all commands
// we pass -input=false to them, since stdin cannot be shared across concurrent modules.
var TerraformCommandsNeedInput = []string{
	"init",
	"plan",
	"apply",
	"destroy",
	"refresh",
	"import",
}

// TerragruntOptions represents options that configure the behavior of the terragrunt program. One instance exists
// per run; a clone is taken per module before dispatch so concurrent pipelines never share mutable state.
type TerragruntOptions struct {
	// Location of the terragrunt config file for the module being processed
	TerragruntConfigPath string

	// Location of the terraform binary
	TerraformPath string

	// Current terraform command being executed (plan, apply, destroy, ...)
	TerraformCommand string

	// CLI args that are passed through to terraform, including the command itself
	TerraformCliArgs []string

	// The working directory in which to run terraform
	WorkingDir string

	// Unlike WorkingDir, this path is the same for all modules and points to the directory the run started from
	RootWorkingDir string

	// Environment variables for the terraform subprocess and hook commands
	Env map[string]string

	// Basic log entry to use for all output
	Logger *logrus.Entry

	// Log level
	LogLevel logrus.Level

	// Whether we should prompt the user for confirmation or always assume "yes"
	NonInteractive bool

	// Whether we should automatically run terraform init when the module has never been initialized
	AutoInit bool

	// Whether run-all apply/destroy should pass -auto-approve to terraform
	RunAllAutoApprove bool

	// If true, no subprocess is invoked; intended commands are logged and recorded instead
	DryRun bool

	// Whether we should automatically retry errored terraform commands
	AutoRetry bool

	// Maximum number of attempts (including the first) for errors matching RetryableErrors
	RetryMaxAttempts int

	// The base duration to wait before retrying; scales linearly with the attempt number
	RetrySleepInterval time.Duration

	// RetryableErrors is a list of regular expressions (RE2 syntax) that qualify a failure for retrying
	RetryableErrors []string

	// Unix-style globs of directories to exclude when running *-all commands. Exclusion short-circuits descent.
	ExcludeDirs []string

	// Unix-style globs of directories to include when running *-all commands
	IncludeDirs []string

	// Parallelism limits the number of module pipelines that run their subprocess step concurrently
	Parallelism int

	// If set to true, continue running *-all commands even if a dependency finished with an error
	IgnoreDependencyErrors bool

	// If set to true, launch all module pipelines without waiting for their dependencies to finish first. The
	// scheduler's order then becomes advisory display output only.
	IgnoreDependencyOrder bool

	// If you want stdout to go somewhere other than os.Stdout
	Writer io.Writer

	// If you want stderr to go somewhere other than os.Stderr
	ErrWriter io.Writer

	// RunTerragrunt is the function that runs one module with the given options. It is normally wired up in the
	// cli package, which depends on almost all other packages; declaring it here lets configstack invoke a run
	// without a circular import.
	RunTerragrunt func(ctx context.Context, opts *TerragruntOptions) error
}

// NewTerragruntOptions returns a TerragruntOptions with defaults set, rooted at the given config file path.
func NewTerragruntOptions(terragruntConfigPath string) (*TerragruntOptions, error) {
	workingDir, err := util.CanonicalPath(filepath.Dir(terragruntConfigPath), ".")
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &TerragruntOptions{
		TerragruntConfigPath: terragruntConfigPath,
		TerraformPath:        "terraform",
		TerraformCliArgs:     []string{},
		WorkingDir:           workingDir,
		RootWorkingDir:       workingDir,
		Env:                  parseEnvironmentVariables(os.Environ()),
		Logger:               logrus.NewEntry(logger),
		LogLevel:             logrus.InfoLevel,
		AutoInit:             true,
		RunAllAutoApprove:    true,
		AutoRetry:            true,
		RetryMaxAttempts:     DefaultRetryMaxAttempts,
		RetrySleepInterval:   DefaultRetrySleepInterval,
		RetryableErrors:      util.CloneStringList(DefaultRetryableErrors),
		ExcludeDirs:          []string{},
		IncludeDirs:          []string{},
		Parallelism:          DefaultParallelism,
		Writer:               os.Stdout,
		ErrWriter:            os.Stderr,
	}, nil
}

// NewTerragruntOptionsForTest returns options suitable for unit tests: non-interactive, quick retries, and a logger
// that stays quiet unless a test fails interestingly.
func NewTerragruntOptionsForTest(terragruntConfigPath string) (*TerragruntOptions, error) {
	opts, err := NewTerragruntOptions(terragruntConfigPath)
	if err != nil {
		return nil, err
	}

	opts.NonInteractive = true
	opts.RetrySleepInterval = 1 * time.Millisecond
	opts.Logger.Logger.SetLevel(logrus.ErrorLevel)

	return opts, nil
}

// Clone creates a copy of this TerragruntOptions rooted at the given config path. Lists and maps are copied as
// run-all operations mutate per-module options concurrently.
func (opts *TerragruntOptions) Clone(terragruntConfigPath string) *TerragruntOptions {
	workingDir := filepath.Dir(terragruntConfigPath)

	return &TerragruntOptions{
		TerragruntConfigPath:   terragruntConfigPath,
		TerraformPath:          opts.TerraformPath,
		TerraformCommand:       opts.TerraformCommand,
		TerraformCliArgs:       util.CloneStringList(opts.TerraformCliArgs),
		WorkingDir:             workingDir,
		RootWorkingDir:         opts.RootWorkingDir,
		Env:                    util.CloneStringMap(opts.Env),
		Logger:                 opts.Logger.WithField("prefix", workingDir),
		LogLevel:               opts.LogLevel,
		NonInteractive:         opts.NonInteractive,
		AutoInit:               opts.AutoInit,
		RunAllAutoApprove:      opts.RunAllAutoApprove,
		DryRun:                 opts.DryRun,
		AutoRetry:              opts.AutoRetry,
		RetryMaxAttempts:       opts.RetryMaxAttempts,
		RetrySleepInterval:     opts.RetrySleepInterval,
		RetryableErrors:        util.CloneStringList(opts.RetryableErrors),
		ExcludeDirs:            util.CloneStringList(opts.ExcludeDirs),
		IncludeDirs:            util.CloneStringList(opts.IncludeDirs),
		Parallelism:            opts.Parallelism,
		IgnoreDependencyErrors: opts.IgnoreDependencyErrors,
		IgnoreDependencyOrder:  opts.IgnoreDependencyOrder,
		Writer:                 opts.Writer,
		ErrWriter:              opts.ErrWriter,
		RunTerragrunt:          opts.RunTerragrunt,
	}
}

// DataDir returns the terraform data dir for the module this options struct is rooted at.
func (opts *TerragruntOptions) DataDir() string {
	return filepath.Join(opts.WorkingDir, TerraformDataDir)
}

func parseEnvironmentVariables(environment []string) map[string]string {
	asMap, err := util.KeyValuePairStringListToMap(environment)
	if err != nil {
		return map[string]string{}
	}

	return asMap
}

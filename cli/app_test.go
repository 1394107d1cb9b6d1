package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/tf"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestNewAppCommandWiring(t *testing.T) {
	t.Parallel()

	app := NewApp(&bytes.Buffer{}, &bytes.Buffer{})

	names := []string{}
	for _, command := range app.Commands {
		names = append(names, command.Name)

		if command.Name == "run-all" {
			subNames := []string{}
			for _, sub := range command.Subcommands {
				subNames = append(subNames, sub.Name)
			}

			assert.ElementsMatch(t, []string{"plan", "apply", "destroy"}, subNames)
		}
	}

	assert.Contains(t, names, "run-all")
	assert.Contains(t, names, "graph-dependencies")
	assert.Contains(t, names, "plan")
	assert.Contains(t, names, "apply")
	assert.Contains(t, names, "destroy")
	assert.Contains(t, names, "init")
	assert.Contains(t, names, "validate")
	assert.Contains(t, names, "output")
}

func testCliContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()

	app := NewApp(&bytes.Buffer{}, &bytes.Buffer{})

	flagSet := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, appFlag := range app.Flags {
		require.NoError(t, appFlag.Apply(flagSet))
	}

	for name, value := range args {
		require.NoError(t, flagSet.Set(name, value))
	}

	cliCtx := cli.NewContext(app, flagSet, nil)
	cliCtx.Context = context.Background()

	return cliCtx
}

func TestParseTerragruntOptions(t *testing.T) {
	t.Parallel()

	workingDir := t.TempDir()

	cliCtx := testCliContext(t, map[string]string{
		flagWorkingDir:     workingDir,
		flagParallelism:    "4",
		flagNonInteractive: "true",
		flagDryRun:         "true",
		flagNoAutoRetry:    "true",
		flagNoAutoInit:     "true",
		flagLogLevel:       "debug",
		flagTfPath:         "tofu",
		flagTfArgs:         `-no-color -lock-timeout=5m`,
	})

	opts, err := parseTerragruntOptions(cliCtx)
	require.NoError(t, err)

	assert.Equal(t, 4, opts.Parallelism)
	assert.True(t, opts.NonInteractive)
	assert.True(t, opts.DryRun)
	assert.False(t, opts.AutoRetry)
	assert.False(t, opts.AutoInit)
	assert.Equal(t, "tofu", opts.TerraformPath)
	assert.Equal(t, []string{"-no-color", "-lock-timeout=5m"}, opts.TerraformCliArgs)
	assert.NotNil(t, opts.RunTerragrunt)
}

func TestParseTerragruntOptionsDefaults(t *testing.T) {
	t.Parallel()

	cliCtx := testCliContext(t, map[string]string{flagWorkingDir: t.TempDir()})

	opts, err := parseTerragruntOptions(cliCtx)
	require.NoError(t, err)

	assert.Equal(t, options.DefaultParallelism, opts.Parallelism)
	assert.True(t, opts.AutoRetry)
	assert.True(t, opts.AutoInit)
	assert.Equal(t, "terraform", opts.TerraformPath)
}

func TestParseTerragruntOptionsBadLogLevel(t *testing.T) {
	t.Parallel()

	cliCtx := testCliContext(t, map[string]string{
		flagWorkingDir: t.TempDir(),
		flagLogLevel:   "loud",
	})

	_, err := parseTerragruntOptions(cliCtx)
	require.Error(t, err)
}

func TestExitStatus(t *testing.T) {
	t.Parallel()

	errWriter := &bytes.Buffer{}
	assert.Equal(t, 0, ExitStatus(nil, errWriter))
	assert.Empty(t, errWriter.String())

	assert.Equal(t, 1, ExitStatus(fmt.Errorf("boom"), errWriter))
	assert.Contains(t, errWriter.String(), "1 error(s)")

	errWriter.Reset()

	var multiErr *multierror.Error
	multiErr = multierror.Append(multiErr, fmt.Errorf("module a failed"), fmt.Errorf("module b failed"))

	assert.Equal(t, 1, ExitStatus(multiErr.ErrorOrNil(), errWriter))
	assert.Contains(t, errWriter.String(), "2 error(s)")
}

func TestSingleModuleDryRun(t *testing.T) {
	t.Parallel()

	app := NewApp(&bytes.Buffer{}, &bytes.Buffer{})

	workingDir := t.TempDir()
	require.NoError(t, writeEmptyConfig(workingDir))

	err := app.RunContext(context.Background(), []string{
		"terragrunt",
		"--" + flagWorkingDir, workingDir,
		"--" + flagDryRun,
		"--" + flagNoAutoInit,
		tf.CommandNameValidate,
	})
	require.NoError(t, err)
}

func writeEmptyConfig(workingDir string) error {
	return os.WriteFile(filepath.Join(workingDir, options.DefaultConfigName), []byte{}, 0644)
}

package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/pkg/errors"
)

// RunTerraformCommand runs the given terraform command, streaming its output live.
func RunTerraformCommand(ctx context.Context, terragruntOptions *options.TerragruntOptions, args ...string) error {
	_, err := RunShellCommandWithOutput(ctx, terragruntOptions, "", false, terragruntOptions.TerraformPath, args...)
	return err
}

// RunTerraformCommandWithOutput runs the given terraform command, streaming its output live, and returns the
// captured stdout/stderr for later inspection (e.g. retryable-error classification).
func RunTerraformCommandWithOutput(ctx context.Context, terragruntOptions *options.TerragruntOptions, args ...string) (*util.CmdOutput, error) {
	return RunShellCommandWithOutput(ctx, terragruntOptions, "", false, terragruntOptions.TerraformPath, args...)
}

// RunShellCommand runs the given shell command in the module's working directory.
func RunShellCommand(ctx context.Context, terragruntOptions *options.TerragruntOptions, command string, args ...string) error {
	_, err := RunShellCommandWithOutput(ctx, terragruntOptions, "", false, command, args...)
	return err
}

// RunShellCommandWithOutput runs the specified shell command with the specified arguments. The command's stdout and
// stderr are streamed live to the writers configured on terragruntOptions while also being captured, so
// long-running provisioning operations remain observable. If workingDir is empty, the command runs in the module's
// working directory. Signals received by terragrunt are forwarded to the subprocess until it exits.
func RunShellCommandWithOutput(ctx context.Context, terragruntOptions *options.TerragruntOptions, workingDir string, suppressStdout bool, command string, args ...string) (*util.CmdOutput, error) {
	terragruntOptions.Logger.Debugf("Running command: %s %s", command, strings.Join(args, " "))

	if terragruntOptions.DryRun {
		terragruntOptions.Logger.Infof("DRY RUN: would have run: %s %s", command, strings.Join(args, " "))
		return &util.CmdOutput{}, nil
	}

	cmd := exec.CommandContext(ctx, command, args...)

	cmd.Env = toEnvVarsList(terragruntOptions.Env)
	cmd.Stdin = os.Stdin

	cmd.Dir = workingDir
	if cmd.Dir == "" {
		cmd.Dir = terragruntOptions.WorkingDir
	}

	output := util.CmdOutput{}

	var outWriter io.Writer = io.MultiWriter(terragruntOptions.Writer, &output.Stdout)
	if suppressStdout {
		terragruntOptions.Logger.Debugf("Command output will be suppressed.")
		outWriter = &output.Stdout
	}

	cmd.Stdout = outWriter
	cmd.Stderr = io.MultiWriter(terragruntOptions.ErrWriter, &output.Stderr)

	// Interrupt the subprocess instead of killing it outright so terraform can release its state lock
	// before exiting.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}

	if err := cmd.Start(); err != nil {
		// bad path, binary not executable, etc.
		return nil, errors.WithStack(ProcessExecutionError{
			Err:        err,
			Command:    command,
			Args:       args,
			WorkingDir: cmd.Dir,
		})
	}

	cmdChannel := make(chan error)
	signalForwarder := newSignalsForwarder(forwardSignals, cmd, terragruntOptions, cmdChannel)

	defer signalForwarder.Close()

	err := cmd.Wait()
	cmdChannel <- err

	if err != nil {
		return &output, errors.WithStack(ProcessExecutionError{
			Err:        err,
			Command:    command,
			Args:       args,
			WorkingDir: cmd.Dir,
			Output:     &output,
		})
	}

	return &output, nil
}

func toEnvVarsList(envVarsAsMap map[string]string) []string {
	envVarsAsList := []string{}
	for key, value := range envVarsAsMap {
		envVarsAsList = append(envVarsAsList, fmt.Sprintf("%s=%s", key, value))
	}

	return envVarsAsList
}

// GetExitCode returns the exit code of a command. If the error is not an exec.ExitError or a wrapped
// ProcessExecutionError, the error is returned unchanged.
func GetExitCode(err error) (int, error) {
	var processError ProcessExecutionError
	if errors.As(err, &processError) {
		return GetExitCode(processError.Err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return 0, err
}

// ProcessExecutionError is returned when a subprocess exits with an error. It preserves the captured output so
// callers can classify the failure (e.g. as retryable) and report it.
type ProcessExecutionError struct {
	Err        error
	Command    string
	Args       []string
	WorkingDir string
	Output     *util.CmdOutput
}

func (err ProcessExecutionError) Error() string {
	return fmt.Sprintf("Failed to execute \"%s %s\" in %s: %v", err.Command, strings.Join(err.Args, " "), err.WorkingDir, err.Err)
}

func (err ProcessExecutionError) Unwrap() error {
	return err.Err
}

type signalsForwarder struct {
	signals chan os.Signal
	once    sync.Once
}

// newSignalsForwarder forwards signals to a command, waiting for the command to finish.
func newSignalsForwarder(signals []os.Signal, c *exec.Cmd, terragruntOptions *options.TerragruntOptions, cmdChannel chan error) *signalsForwarder {
	forwarder := &signalsForwarder{signals: make(chan os.Signal, 1)}
	notifySignals(forwarder.signals, signals...)

	go func() {
		for {
			select {
			case s := <-forwarder.signals:
				if s == nil {
					return
				}

				terragruntOptions.Logger.Debugf("Forwarding signal %v to terraform.", s)

				if err := c.Process.Signal(s); err != nil {
					terragruntOptions.Logger.Errorf("Error forwarding signal: %v", err)
				}
			case <-cmdChannel:
				return
			}
		}
	}()

	return forwarder
}

func (forwarder *signalsForwarder) Close() error {
	forwarder.once.Do(func() {
		stopNotifySignals(forwarder.signals)
		forwarder.signals <- nil
		close(forwarder.signals)
	})

	return nil
}

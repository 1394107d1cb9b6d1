package tf

import (
	"context"

	"github.com/catherinevee/terragrunt-gcp-sub007/config"
	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/shell"
	"github.com/hashicorp/go-multierror"
)

// processHooks executes the given hooks, in declared order, for the current terraform command. A hook applies if
// its command list contains the command or the "all" wildcard. Hooks run in their configured working directory
// (default: the module's directory) with the run's environment. A failing hook aborts the remaining hooks for this
// stage unless it is marked run_on_error; previousExecErrors follows the same rule: once an error has happened,
// only run_on_error hooks still run.
func processHooks(ctx context.Context, hooks []config.Hook, terragruntOptions *options.TerragruntOptions, previousExecErrors *multierror.Error) error {
	if len(hooks) == 0 {
		return nil
	}

	var errorsOccurred *multierror.Error

	terragruntOptions.Logger.Debugf("Detected %d hooks", len(hooks))

	for _, curHook := range hooks {
		allPreviousErrors := multierror.Append(previousExecErrors, errorsOccurred)
		if shouldRunHook(curHook, terragruntOptions, allPreviousErrors) {
			if err := runHook(ctx, terragruntOptions, curHook); err != nil {
				errorsOccurred = multierror.Append(errorsOccurred, err)
			}
		}
	}

	return errorsOccurred.ErrorOrNil()
}

// processErrorHooks executes the configured error hooks if, and only if, earlier execution produced errors. Error
// hook failures are logged but never override the original command error.
func processErrorHooks(ctx context.Context, hooks []config.Hook, terragruntOptions *options.TerragruntOptions, previousExecErrors *multierror.Error) {
	if len(hooks) == 0 || previousExecErrors.ErrorOrNil() == nil {
		return
	}

	terragruntOptions.Logger.Debugf("Detected %d error hooks", len(hooks))

	for _, curHook := range hooks {
		if !curHook.AppliesToCommand(terragruntOptions.TerraformCommand) {
			continue
		}

		if err := runHook(ctx, terragruntOptions, curHook); err != nil {
			terragruntOptions.Logger.Errorf("Error running error hook %s: %v", curHook.Name, err)
		}
	}
}

// shouldRunHook returns true when the hook is bound to the current command and either no error has happened so far,
// or the hook is explicitly marked to run on error.
func shouldRunHook(hook config.Hook, terragruntOptions *options.TerragruntOptions, previousExecErrors *multierror.Error) bool {
	hasErrors := previousExecErrors.ErrorOrNil() != nil
	runOnError := hook.RunOnError != nil && *hook.RunOnError

	return hook.AppliesToCommand(terragruntOptions.TerraformCommand) && (!hasErrors || runOnError)
}

func runHook(ctx context.Context, terragruntOptions *options.TerragruntOptions, curHook config.Hook) error {
	terragruntOptions.Logger.Infof("Executing hook: %s", curHook.Name)

	if len(curHook.Execute) == 0 {
		terragruntOptions.Logger.Warnf("Hook %s has no command to execute, skipping.", curHook.Name)
		return nil
	}

	workingDir := ""
	if curHook.WorkingDir != nil {
		workingDir = *curHook.WorkingDir
	}

	actionToExecute := curHook.Execute[0]
	actionParams := curHook.Execute[1:]

	_, err := shell.RunShellCommandWithOutput(ctx, terragruntOptions, workingDir, false, actionToExecute, actionParams...)
	if err != nil {
		terragruntOptions.Logger.Errorf("Error running hook %s with message: %s", curHook.Name, err.Error())
		return HookExecutionError{HookName: curHook.Name, Underlying: err}
	}

	return nil
}

package tf

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/catherinevee/terragrunt-gcp-sub007/config"
	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/outputs"
	"github.com/catherinevee/terragrunt-gcp-sub007/shell"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// sharedOutputStore is consulted by every module pipeline in a run. It only holds in-memory state for the current
// process; the per-module cache files make it survive across runs.
var sharedOutputStore = outputs.NewStore()

// RunTerragrunt runs the current terraform command against the single module rooted at the working dir of the given
// options: parse the module config, check the version constraint, resolve dependency outputs, auto-init if needed,
// then run the command surrounded by the module's hooks with retries on transient failures.
func RunTerragrunt(ctx context.Context, terragruntOptions *options.TerragruntOptions) error {
	terragruntConfig, err := config.ReadTerragruntConfig(terragruntOptions.TerragruntConfigPath)
	if err != nil {
		return err
	}

	if err := applyRetrySettings(terragruntOptions, terragruntConfig); err != nil {
		return err
	}

	if constraint := requiredVersion(terragruntConfig); constraint != "" && !terragruntOptions.DryRun {
		if err := CheckTerraformVersion(ctx, terragruntOptions, constraint); err != nil {
			return err
		}
	}

	if ConsumesDependencyOutputs(terragruntOptions.TerraformCommand) {
		if err := setDependencyOutputsAsEnvVars(ctx, terragruntOptions, terragruntConfig); err != nil {
			return err
		}
	}

	if err := setInputsAsEnvVars(terragruntOptions, terragruntConfig); err != nil {
		return err
	}

	if terragruntOptions.AutoInit && terragruntOptions.TerraformCommand != CommandNameInit {
		if err := autoInit(ctx, terragruntOptions); err != nil {
			return err
		}
	}

	if err := runActionWithHooks(ctx, "terraform", terragruntOptions, terragruntConfig, func(ctx context.Context) error {
		return RunCommandWithRetry(ctx, terragruntOptions, terraformCliArgs(terragruntOptions, terragruntConfig)...)
	}); err != nil {
		return err
	}

	switch terragruntOptions.TerraformCommand {
	case CommandNameApply:
		// A failed capture does not fail the module; dependents fall back to the cache file or error out when
		// they actually need the values.
		if err := sharedOutputStore.CaptureOutputs(ctx, terragruntOptions); err != nil {
			terragruntOptions.Logger.Warnf("Failed to capture outputs for %s: %v", terragruntOptions.WorkingDir, err)
		}
	case CommandNameDestroy:
		if err := sharedOutputStore.Invalidate(terragruntOptions.WorkingDir); err != nil {
			terragruntOptions.Logger.Warnf("Failed to clean up cached outputs for %s: %v", terragruntOptions.WorkingDir, err)
		}
	}

	return nil
}

// runActionWithHooks runs the given action surrounded by hooks: before hooks first, then, only if they all
// succeeded, the action, and finally the after hooks. Error hooks fire whenever anything before them failed.
func runActionWithHooks(ctx context.Context, description string, terragruntOptions *options.TerragruntOptions, terragruntConfig *config.TerragruntConfig, action func(ctx context.Context) error) error {
	var allErrors *multierror.Error

	beforeHookErrors := processHooks(ctx, terragruntConfig.GetBeforeHooks(), terragruntOptions, allErrors)
	allErrors = multierror.Append(allErrors, beforeHookErrors)

	if beforeHookErrors == nil {
		allErrors = multierror.Append(allErrors, action(ctx))
	} else {
		terragruntOptions.Logger.Errorf("Errors encountered running before_hooks. Not running '%s'.", description)
	}

	afterHookErrors := processHooks(ctx, terragruntConfig.GetAfterHooks(), terragruntOptions, allErrors)
	allErrors = multierror.Append(allErrors, afterHookErrors)

	processErrorHooks(ctx, terragruntConfig.GetErrorHooks(), terragruntOptions, allErrors)

	return allErrors.ErrorOrNil()
}

// RunCommandWithRetry runs terraform with the given args, retrying failures whose output matches one of the
// configured retryable-error patterns. Retries wait RetrySleepInterval scaled linearly by the attempt number, so
// the delay between attempts grows. The sleep suspends only this module's pipeline, never the slot pool.
func RunCommandWithRetry(ctx context.Context, terragruntOptions *options.TerragruntOptions, args ...string) error {
	var lastErr error

	for attempt := 1; attempt <= terragruntOptions.RetryMaxAttempts; attempt++ {
		out, err := shell.RunTerraformCommandWithOutput(ctx, terragruntOptions, args...)
		if err == nil {
			return nil
		}

		lastErr = err

		if out == nil || !IsRetryable(terragruntOptions, out) {
			terragruntOptions.Logger.Errorf("Terraform invocation failed in %s", terragruntOptions.WorkingDir)
			return err
		}

		if attempt == terragruntOptions.RetryMaxAttempts {
			break
		}

		sleepInterval := terragruntOptions.RetrySleepInterval * time.Duration(attempt)
		terragruntOptions.Logger.Infof("Encountered an error eligible for retrying. Sleeping %v before retrying.", sleepInterval)

		select {
		case <-time.After(sleepInterval):
			// try again
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
	}

	return errors.WithStack(MaxRetriesExceededError{
		MaxAttempts: terragruntOptions.RetryMaxAttempts,
		WorkingDir:  terragruntOptions.WorkingDir,
		LastErr:     lastErr,
	})
}

// IsRetryable checks whether the captured output matches any of the configured retryable-error patterns.
func IsRetryable(terragruntOptions *options.TerragruntOptions, out *util.CmdOutput) bool {
	if !terragruntOptions.AutoRetry {
		return false
	}

	// Terraform will send errors to stdout when -json is enabled, so check both streams.
	return util.MatchesAny(terragruntOptions.RetryableErrors, out.Stderr.String()) ||
		util.MatchesAny(terragruntOptions.RetryableErrors, out.Stdout.String())
}

// autoInit runs `terraform init -input=false` when the module has no terraform data dir yet.
func autoInit(ctx context.Context, terragruntOptions *options.TerragruntOptions) error {
	if util.IsDir(terragruntOptions.DataDir()) {
		return nil
	}

	terragruntOptions.Logger.Infof("Running terraform init in %s (auto-init)", terragruntOptions.WorkingDir)

	return RunCommandWithRetry(ctx, terragruntOptions, CommandNameInit, "-input=false")
}

// terraformCliArgs builds the final terraform command line from the options plus any extra args declared in the
// module's terraform block.
func terraformCliArgs(terragruntOptions *options.TerragruntOptions, terragruntConfig *config.TerragruntConfig) []string {
	args := util.CloneStringList(terragruntOptions.TerraformCliArgs)

	if terragruntConfig.Terraform != nil && len(terragruntConfig.Terraform.ExtraArgs) > 0 {
		args = append(args, terragruntConfig.Terraform.ExtraArgs...)
	}

	return args
}

// applyRetrySettings overrides the run-level retry settings with the ones declared in the module's config.
func applyRetrySettings(terragruntOptions *options.TerragruntOptions, terragruntConfig *config.TerragruntConfig) error {
	if terragruntConfig.RetryableErrors != nil {
		terragruntOptions.RetryableErrors = terragruntConfig.RetryableErrors
	}

	if terragruntConfig.RetryMaxAttempts != nil {
		if *terragruntConfig.RetryMaxAttempts < 1 {
			return errors.Errorf("cannot have less than 1 max retry, but you specified %d", *terragruntConfig.RetryMaxAttempts)
		}

		terragruntOptions.RetryMaxAttempts = *terragruntConfig.RetryMaxAttempts
	}

	if terragruntConfig.RetrySleepIntervalSec != nil {
		if *terragruntConfig.RetrySleepIntervalSec < 0 {
			return errors.Errorf("cannot sleep for less than 0 seconds, but you specified %d", *terragruntConfig.RetrySleepIntervalSec)
		}

		terragruntOptions.RetrySleepInterval = time.Duration(*terragruntConfig.RetrySleepIntervalSec) * time.Second
	}

	return nil
}

func requiredVersion(terragruntConfig *config.TerragruntConfig) string {
	if terragruntConfig.Terraform == nil || terragruntConfig.Terraform.RequiredVersion == nil {
		return ""
	}

	return *terragruntConfig.Terraform.RequiredVersion
}

// setDependencyOutputsAsEnvVars resolves the outputs of every dependency of this module and exposes them to
// terraform as TF_VAR_<dependency name>_<output key> environment variables. A dependency that has neither captured
// outputs nor mocks is a hard error for this module.
func setDependencyOutputsAsEnvVars(ctx context.Context, terragruntOptions *options.TerragruntOptions, terragruntConfig *config.TerragruntConfig) error {
	resolved, err := sharedOutputStore.DependencyOutputs(ctx, terragruntOptions, terragruntConfig, terragruntOptions.WorkingDir)
	if err != nil {
		return err
	}

	if terragruntOptions.Env == nil {
		terragruntOptions.Env = map[string]string{}
	}

	for key, value := range resolved {
		envName := "TF_VAR_" + envVarSafeName(key)

		// Don't override any env vars the user has already set
		if _, alreadySet := terragruntOptions.Env[envName]; alreadySet {
			continue
		}

		envValue, err := asTerraformEnvVarValue(value)
		if err != nil {
			return err
		}

		terragruntOptions.Env[envName] = envValue
	}

	return nil
}

// setInputsAsEnvVars exposes the inputs attribute of the module's config to terraform as TF_VAR_ environment
// variables.
func setInputsAsEnvVars(terragruntOptions *options.TerragruntOptions, terragruntConfig *config.TerragruntConfig) error {
	if terragruntOptions.Env == nil {
		terragruntOptions.Env = map[string]string{}
	}

	for name, value := range terragruntConfig.Inputs {
		envName := "TF_VAR_" + envVarSafeName(name)
		if _, alreadySet := terragruntOptions.Env[envName]; alreadySet {
			continue
		}

		envValue, err := ctyValueAsEnvVarValue(value)
		if err != nil {
			return err
		}

		terragruntOptions.Env[envName] = envValue
	}

	return nil
}

var envVarUnsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

func envVarSafeName(name string) string {
	return envVarUnsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
}

// asTerraformEnvVarValue renders a Go value the way terraform expects a TF_VAR value: strings pass through
// verbatim, everything else is rendered as JSON.
func asTerraformEnvVarValue(value any) (string, error) {
	if asString, isString := value.(string); isString {
		return asString, nil
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return string(jsonBytes), nil
}

func ctyValueAsEnvVarValue(value cty.Value) (string, error) {
	if value.Type() == cty.String && !value.IsNull() {
		return value.AsString(), nil
	}

	jsonBytes, err := ctyjson.Marshal(value, value.Type())
	if err != nil {
		return "", errors.WithStack(err)
	}

	return string(jsonBytes), nil
}

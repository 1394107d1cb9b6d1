package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// TerragruntConfig represents a parsed terragrunt.hcl configuration file for one module.
type TerragruntConfig struct {
	Terraform             *TerraformConfig
	Dependencies          *ModuleDependencies
	TerragruntDependencies []Dependency
	RetryableErrors       []string
	RetryMaxAttempts      *int
	RetrySleepIntervalSec *int
	Inputs                map[string]cty.Value
}

// TerraformConfig specifies how to invoke terraform for this module, along with the hooks to run around it.
type TerraformConfig struct {
	RequiredVersion *string `hcl:"required_version,attr"`
	ExtraArgs       []string
	BeforeHooks     []Hook
	AfterHooks      []Hook
	ErrorHooks      []Hook
}

// GetBeforeHooks returns the before hooks of this config, or an empty list if there is no terraform block.
func (conf *TerragruntConfig) GetBeforeHooks() []Hook {
	if conf.Terraform == nil {
		return nil
	}

	return conf.Terraform.BeforeHooks
}

// GetAfterHooks returns the after hooks of this config, or an empty list if there is no terraform block.
func (conf *TerragruntConfig) GetAfterHooks() []Hook {
	if conf.Terraform == nil {
		return nil
	}

	return conf.Terraform.AfterHooks
}

// GetErrorHooks returns the error hooks of this config, or an empty list if there is no terraform block.
func (conf *TerragruntConfig) GetErrorHooks() []Hook {
	if conf.Terraform == nil {
		return nil
	}

	return conf.Terraform.ErrorHooks
}

// Hook specifies terraform commands (apply/plan/destroy, or the wildcard "all") and a command to execute around
// them.
type Hook struct {
	Name       string   `hcl:"name,label"`
	Commands   []string `hcl:"commands,attr"`
	Execute    []string `hcl:"execute,attr"`
	RunOnError *bool    `hcl:"run_on_error,attr"`
	WorkingDir *string  `hcl:"working_dir,attr"`
}

func (hook *Hook) String() string {
	return fmt.Sprintf("Hook{Name = %s, Commands = %v}", hook.Name, hook.Commands)
}

// AppliesToCommand returns true if this hook is bound to the given terraform command, either explicitly or via the
// "all" wildcard.
func (hook *Hook) AppliesToCommand(terraformCommand string) bool {
	return util.ListContainsElement(hook.Commands, terraformCommand) || util.ListContainsElement(hook.Commands, HookCommandAll)
}

// HookCommandAll is the wildcard hook command that matches every terraform command.
const HookCommandAll = "all"

// ModuleDependencies represents the bare dependencies block: a plain list of module paths this module depends on.
type ModuleDependencies struct {
	Paths []string `hcl:"paths,attr"`
}

// Dependency represents a named dependency block, pointing at another module whose outputs this module consumes.
type Dependency struct {
	Name        string     `hcl:"name,label"`
	ConfigPath  string     `hcl:"config_path,attr"`
	Enabled     *bool      `hcl:"enabled,attr"`
	SkipOutputs *bool      `hcl:"skip_outputs,attr"`
	MockOutputs *cty.Value `hcl:"mock_outputs,attr"`
}

// IsEnabled returns true unless the dependency was explicitly disabled.
func (dep *Dependency) IsEnabled() bool {
	return dep.Enabled == nil || *dep.Enabled
}

// DependencyPaths returns the canonical paths of every enabled dependency of this config, relative to modulePath:
// paths from the dependencies block plus the config_path of each dependency block, deduplicated.
func (conf *TerragruntConfig) DependencyPaths(modulePath string) ([]string, error) {
	paths := []string{}

	if conf.Dependencies != nil {
		paths = append(paths, conf.Dependencies.Paths...)
	}

	for _, dep := range conf.TerragruntDependencies {
		if dep.IsEnabled() {
			paths = append(paths, dep.ConfigPath)
		}
	}

	canonicalPaths, err := util.CanonicalPaths(paths, modulePath)
	if err != nil {
		return nil, err
	}

	return util.RemoveDuplicatesFromList(canonicalPaths), nil
}

// terragruntConfigFile is the raw HCL shape of terragrunt.hcl. It is decoded into this intermediate struct and then
// converted to TerragruntConfig.
type terragruntConfigFile struct {
	Terraform             *terraformConfigFile `hcl:"terraform,block"`
	Dependencies          *ModuleDependencies  `hcl:"dependencies,block"`
	TerragruntDependencies []Dependency        `hcl:"dependency,block"`
	RetryableErrors       []string             `hcl:"retryable_errors,optional"`
	RetryMaxAttempts      *int                 `hcl:"retry_max_attempts,attr"`
	RetrySleepIntervalSec *int                 `hcl:"retry_sleep_interval_sec,attr"`
	Inputs                *cty.Value           `hcl:"inputs,attr"`
}

type terraformConfigFile struct {
	RequiredVersion *string  `hcl:"required_version,attr"`
	ExtraArgs       []string `hcl:"extra_args,optional"`
	BeforeHooks     []Hook   `hcl:"before_hook,block"`
	AfterHooks      []Hook   `hcl:"after_hook,block"`
	ErrorHooks      []Hook   `hcl:"error_hook,block"`
}

// ReadTerragruntConfig parses the terragrunt.hcl file at the given path. The configuration language is treated as
// opaque beyond the blocks declared above: no functions or variable references are evaluated here, that is
// delegated to terraform at execution time.
func ReadTerragruntConfig(configPath string) (*TerragruntConfig, error) {
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return ParseConfigString(string(configBytes), configPath)
}

// ParseConfigString parses the given terragrunt configuration, using filename for diagnostics.
func ParseConfigString(configString string, filename string) (*TerragruntConfig, error) {
	parser := hclparse.NewParser()

	file, parseDiags := parser.ParseHCL([]byte(configString), filename)
	if parseDiags.HasErrors() {
		return nil, errors.WithStack(parseDiags)
	}

	raw := terragruntConfigFile{}
	if decodeDiags := gohcl.DecodeBody(file.Body, evalContext(), &raw); decodeDiags.HasErrors() {
		return nil, errors.WithStack(decodeDiags)
	}

	config := &TerragruntConfig{
		Dependencies:           raw.Dependencies,
		TerragruntDependencies: raw.TerragruntDependencies,
		RetryableErrors:        raw.RetryableErrors,
		RetryMaxAttempts:       raw.RetryMaxAttempts,
		RetrySleepIntervalSec:  raw.RetrySleepIntervalSec,
	}

	if raw.Terraform != nil {
		config.Terraform = &TerraformConfig{
			RequiredVersion: raw.Terraform.RequiredVersion,
			ExtraArgs:       raw.Terraform.ExtraArgs,
			BeforeHooks:     raw.Terraform.BeforeHooks,
			AfterHooks:      raw.Terraform.AfterHooks,
			ErrorHooks:      raw.Terraform.ErrorHooks,
		}
	}

	if raw.Inputs != nil && !raw.Inputs.IsNull() {
		if !raw.Inputs.Type().IsObjectType() && !raw.Inputs.Type().IsMapType() {
			return nil, errors.WithStack(InvalidInputsError{ConfigPath: filename})
		}

		config.Inputs = raw.Inputs.AsValueMap()
	}

	return config, nil
}

// evalContext returns the evaluation context used when decoding terragrunt.hcl. Only literal values are supported;
// expression evaluation beyond that is out of scope for the orchestrator.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}
}

// GetDefaultConfigPath returns the path of the terragrunt config file in the given directory.
func GetDefaultConfigPath(workingDir string) string {
	return filepath.Join(workingDir, options.DefaultConfigName)
}

// FindConfigFilesInPath returns a list of all terragrunt config files in the given path or any subfolder of the
// path. A directory is a module if it contains a file named terragrunt.hcl. Subtrees matching one of the configured
// exclude globs are skipped entirely, short-circuiting descent. Any filesystem error aborts the walk; partial
// results are never returned.
func FindConfigFilesInPath(rootPath string, terragruntOptions *options.TerragruntOptions) ([]string, error) {
	configFiles := []string{}

	excludeDirs, err := canonicalGlobDirs(terragruntOptions.ExcludeDirs, terragruntOptions.WorkingDir)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		// Never descend into terraform's data dir
		if info.Name() == options.TerraformDataDir {
			return filepath.SkipDir
		}

		canonicalPath, err := util.CanonicalPath(path, ".")
		if err != nil {
			return err
		}

		if util.ListContainsElement(excludeDirs, canonicalPath) {
			return filepath.SkipDir
		}

		if util.FileExists(GetDefaultConfigPath(path)) {
			configFiles = append(configFiles, GetDefaultConfigPath(path))
		}

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return util.RemoveDuplicatesFromList(configFiles), nil
}

// canonicalGlobDirs expands the given dir globs relative to basePath and canonicalizes every match.
func canonicalGlobDirs(globs []string, basePath string) ([]string, error) {
	matches, err := expandGlobs(globs, basePath)
	if err != nil {
		return nil, err
	}

	return util.CanonicalPaths(matches, basePath)
}

// InvalidInputsError is returned when the inputs attribute is not a map of values.
type InvalidInputsError struct {
	ConfigPath string
}

func (err InvalidInputsError) Error() string {
	return fmt.Sprintf("The inputs attribute in %s must be a map or object", err.ConfigPath)
}

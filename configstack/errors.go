package configstack

import (
	"fmt"
	"strings"
)

// UnrecognizedDependencyError is returned when a module declares a dependency path that does not resolve to any
// discovered module.
type UnrecognizedDependencyError struct {
	ModulePath            string
	DependencyPath        string
	TerragruntConfigPaths []string
}

func (err UnrecognizedDependencyError) Error() string {
	return fmt.Sprintf("Module %s specifies %s as a dependency, but that dependency was not one of the ones found while scanning subfolders: %v", err.ModulePath, err.DependencyPath, err.TerragruntConfigPaths)
}

// DependencyCycleError is returned when the dependency graph contains a cycle. The paths list the modules
// participating in the cycle, in traversal order.
type DependencyCycleError []string

func (err DependencyCycleError) Error() string {
	return "Found a dependency cycle between modules: " + strings.Join([]string(err), " -> ")
}

// ProcessingModuleError wraps an error that occurred while running a module, retaining which module failed.
type ProcessingModuleError struct {
	UnderlyingError       error
	ModulePath            string
	HowThisModuleWasFound string
}

func (err ProcessingModuleError) Error() string {
	return fmt.Sprintf("Error processing module at '%s'. How this module was found: %s. Underlying error: %v", err.ModulePath, err.HowThisModuleWasFound, err.UnderlyingError)
}

func (err ProcessingModuleError) Unwrap() error {
	return err.UnderlyingError
}

// DependencyFinishedWithError is propagated to a module's dependents when one of its dependencies fails, so the
// dependents are skipped rather than run against missing upstream state.
type DependencyFinishedWithError struct {
	Module     *TerraformModule
	Dependency *TerraformModule
	Err        error
}

func (err DependencyFinishedWithError) Error() string {
	return fmt.Sprintf("Cannot process module %s because one of its dependencies, %s, finished with an error: %v", err.Module, err.Dependency, err.Err)
}

func (err DependencyFinishedWithError) Unwrap() error {
	return err.Err
}

// NoTerraformModulesFound is returned when a recursive run discovers no modules under the working dir.
type NoTerraformModulesFound struct {
	WorkingDir string
}

func (err NoTerraformModulesFound) Error() string {
	return fmt.Sprintf("Could not find any subfolders with Terragrunt configuration files in %s", err.WorkingDir)
}

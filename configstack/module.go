// Package configstack discovers the terragrunt modules under a working dir, links them into a dependency graph,
// and runs a terraform command across all of them in dependency order with bounded concurrency.
package configstack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/catherinevee/terragrunt-gcp-sub007/config"
	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/hashicorp/go-multierror"
	zglob "github.com/mattn/go-zglob"
	"github.com/pkg/errors"
)

// TerraformModule represents a single module (a folder with a terragrunt.hcl file) plus the modules it depends on.
type TerraformModule struct {
	Path              string
	Dependencies      TerraformModules
	Config            config.TerragruntConfig
	TerragruntOptions *options.TerragruntOptions

	// FlagExcluded marks modules that are filtered out of the run by include/exclude dirs. Excluded modules stay
	// in the graph so their dependents still wait on nothing stale, but they are never executed.
	FlagExcluded bool
}

// TerraformModules is a list of modules with graph-level helpers.
type TerraformModules []*TerraformModule

// String renders the module path plus the paths of its dependencies, mostly for use in logs and error messages.
func (module *TerraformModule) String() string {
	dependencies := []string{}
	for _, dependency := range module.Dependencies {
		dependencies = append(dependencies, dependency.Path)
	}

	return fmt.Sprintf("Module %s (excluded: %v, dependencies: [%s])", module.Path, module.FlagExcluded, strings.Join(dependencies, ", "))
}

// ResolveTerraformModules parses the given config files into modules, crosslinks their dependency edges, and applies
// the include/exclude dir filters from the options.
func ResolveTerraformModules(terragruntConfigPaths []string, terragruntOptions *options.TerragruntOptions) (TerraformModules, error) {
	canonicalPaths, err := util.CanonicalPaths(terragruntConfigPaths, ".")
	if err != nil {
		return nil, err
	}

	modulesMap, err := resolveModules(canonicalPaths, terragruntOptions)
	if err != nil {
		return nil, err
	}

	crosslinkedModules, err := crosslinkDependencies(modulesMap, canonicalPaths)
	if err != nil {
		return nil, err
	}

	includedModules, err := flagIncludedDirs(crosslinkedModules, terragruntOptions)
	if err != nil {
		return nil, err
	}

	return flagExcludedDirs(includedModules, terragruntOptions)
}

// resolveModules parses each config file into a module keyed by its folder path. Each module gets its own clone of
// the options so the concurrent pipelines never share mutable state.
func resolveModules(canonicalConfigPaths []string, terragruntOptions *options.TerragruntOptions) (map[string]*TerraformModule, error) {
	modulesMap := map[string]*TerraformModule{}

	for _, configPath := range canonicalConfigPaths {
		modulePath, err := util.CanonicalPath(util.ParentDir(configPath), ".")
		if err != nil {
			return nil, err
		}

		terragruntConfig, err := config.ReadTerragruntConfig(configPath)
		if err != nil {
			return nil, errors.WithStack(ProcessingModuleError{
				UnderlyingError:       err,
				ModulePath:            modulePath,
				HowThisModuleWasFound: fmt.Sprintf("Scanning %s for Terragrunt config files", terragruntOptions.WorkingDir),
			})
		}

		moduleOptions := terragruntOptions.Clone(configPath)

		modulesMap[modulePath] = &TerraformModule{
			Path:              modulePath,
			Config:            *terragruntConfig,
			TerragruntOptions: moduleOptions,
		}
	}

	return modulesMap, nil
}

// crosslinkDependencies converts the dependency paths declared in each module's config into pointers to the
// corresponding modules, sorted by path so runs are deterministic.
func crosslinkDependencies(modulesMap map[string]*TerraformModule, canonicalConfigPaths []string) (TerraformModules, error) {
	modules := TerraformModules{}

	keys := make([]string, 0, len(modulesMap))
	for key := range modulesMap {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		module := modulesMap[key]

		dependencies, err := resolveDependenciesForModule(module, modulesMap, canonicalConfigPaths)
		if err != nil {
			return nil, err
		}

		module.Dependencies = dependencies
		modules = append(modules, module)
	}

	return modules, nil
}

// resolveDependenciesForModule looks up the module pointer for each dependency path of the given module. A path
// that does not resolve to a discovered module is a hard error: silently dropping the edge would let the dependent
// run before its dependency.
func resolveDependenciesForModule(module *TerraformModule, modulesMap map[string]*TerraformModule, canonicalConfigPaths []string) (TerraformModules, error) {
	dependencyPaths, err := module.Config.DependencyPaths(module.Path)
	if err != nil {
		return nil, err
	}

	dependencies := TerraformModules{}

	for _, dependencyPath := range dependencyPaths {
		dependencyModule, found := modulesMap[dependencyPath]
		if !found {
			return nil, errors.WithStack(UnrecognizedDependencyError{
				ModulePath:            module.Path,
				DependencyPath:        dependencyPath,
				TerragruntConfigPaths: canonicalConfigPaths,
			})
		}

		dependencies = append(dependencies, dependencyModule)
	}

	return dependencies, nil
}

// flagIncludedDirs marks every module outside the include-dirs globs as excluded. With no include dirs configured
// every module stays included.
func flagIncludedDirs(modules TerraformModules, terragruntOptions *options.TerragruntOptions) (TerraformModules, error) {
	if len(terragruntOptions.IncludeDirs) == 0 {
		return modules, nil
	}

	includedPaths, err := expandModuleGlobs(terragruntOptions.IncludeDirs, terragruntOptions)
	if err != nil {
		return nil, err
	}

	for _, module := range modules {
		if !util.ListContainsElement(includedPaths, module.Path) {
			module.FlagExcluded = true
		}
	}

	return modules, nil
}

// flagExcludedDirs marks every module matched by the exclude-dirs globs as excluded. Exclusion wins over inclusion.
func flagExcludedDirs(modules TerraformModules, terragruntOptions *options.TerragruntOptions) (TerraformModules, error) {
	if len(terragruntOptions.ExcludeDirs) == 0 {
		return modules, nil
	}

	excludedPaths, err := expandModuleGlobs(terragruntOptions.ExcludeDirs, terragruntOptions)
	if err != nil {
		return nil, err
	}

	for _, module := range modules {
		if util.ListContainsElement(excludedPaths, module.Path) {
			module.FlagExcluded = true
		}
	}

	return modules, nil
}

// expandModuleGlobs expands the given dir globs relative to the working dir and canonicalizes the matches so they
// compare equal to module paths. Globs that match nothing are kept as-is after canonicalization, so exact paths
// still work even when the folder holds no matches.
func expandModuleGlobs(dirGlobs []string, terragruntOptions *options.TerragruntOptions) ([]string, error) {
	expandedPaths := []string{}

	for _, dirGlob := range dirGlobs {
		canonicalGlob, err := util.CanonicalPath(dirGlob, terragruntOptions.WorkingDir)
		if err != nil {
			return nil, err
		}

		matches, err := zglob.Glob(canonicalGlob)
		if err != nil || len(matches) == 0 {
			expandedPaths = append(expandedPaths, canonicalGlob)
			continue
		}

		canonicalMatches, err := util.CanonicalPaths(matches, ".")
		if err != nil {
			return nil, err
		}

		expandedPaths = append(expandedPaths, canonicalMatches...)
	}

	return util.RemoveDuplicatesFromList(expandedPaths), nil
}

// CheckForCycles walks every module's dependency edges and returns a DependencyCycleError naming the participating
// modules when the graph is not acyclic.
func (modules TerraformModules) CheckForCycles() error {
	visitedPaths := []string{}
	currentTraversalPaths := []string{}

	for _, module := range modules {
		if err := checkForCyclesUsingDepthFirstSearch(module, &visitedPaths, &currentTraversalPaths); err != nil {
			return err
		}
	}

	return nil
}

// checkForCyclesUsingDepthFirstSearch does a depth-first traversal from the given module. A module found on the
// current traversal path is a cycle; modules already fully visited are skipped.
func checkForCyclesUsingDepthFirstSearch(module *TerraformModule, visitedPaths *[]string, currentTraversalPaths *[]string) error {
	if util.ListContainsElement(*visitedPaths, module.Path) {
		return nil
	}

	if util.ListContainsElement(*currentTraversalPaths, module.Path) {
		return errors.WithStack(DependencyCycleError(append(*currentTraversalPaths, module.Path)))
	}

	*currentTraversalPaths = append(*currentTraversalPaths, module.Path)
	for _, dependency := range module.Dependencies {
		if err := checkForCyclesUsingDepthFirstSearch(dependency, visitedPaths, currentTraversalPaths); err != nil {
			return err
		}
	}

	*visitedPaths = append(*visitedPaths, module.Path)
	*currentTraversalPaths = util.RemoveElementFromList(*currentTraversalPaths, module.Path)

	return nil
}

// collectErrors flattens the per-module errors of a finished run into one multierror, skipping the
// DependencyFinishedWithError markers of modules that were merely skipped because something upstream failed.
func collectErrors(doneModules map[string]*runningModule) error {
	var result *multierror.Error

	for _, module := range doneModules {
		if module.Err == nil {
			continue
		}

		var dependencyErr DependencyFinishedWithError
		if errors.As(module.Err, &dependencyErr) {
			continue
		}

		result = multierror.Append(result, module.Err)
	}

	return result.ErrorOrNil()
}

package configstack

import (
	"context"
	"fmt"
	"strings"

	"github.com/catherinevee/terragrunt-gcp-sub007/config"
	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/tf"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/pkg/errors"
)

// Stack is the full set of modules discovered under a working dir, linked into a dependency graph.
type Stack struct {
	Path    string
	Modules TerraformModules
}

// FindStackInSubfolders scans the working dir of the given options for terragrunt config files, resolves them into a
// dependency graph, and verifies the graph is acyclic.
func FindStackInSubfolders(terragruntOptions *options.TerragruntOptions) (*Stack, error) {
	terragruntConfigFiles, err := config.FindConfigFilesInPath(terragruntOptions.WorkingDir, terragruntOptions)
	if err != nil {
		return nil, err
	}

	if len(terragruntConfigFiles) == 0 {
		return nil, errors.WithStack(NoTerraformModulesFound{WorkingDir: terragruntOptions.WorkingDir})
	}

	modules, err := ResolveTerraformModules(terragruntConfigFiles, terragruntOptions)
	if err != nil {
		return nil, err
	}

	stack := &Stack{Path: terragruntOptions.WorkingDir, Modules: modules}
	if err := stack.Modules.CheckForCycles(); err != nil {
		return nil, err
	}

	return stack, nil
}

// String renders the stack as its module list, in topological order.
func (stack *Stack) String() string {
	modules := []string{}
	for _, module := range stack.TopologicalOrder() {
		modules = append(modules, "  => "+module.String())
	}

	return fmt.Sprintf("Stack at %s:\n%s", stack.Path, strings.Join(modules, "\n"))
}

// TopologicalOrder returns the stack's modules ordered so every module appears after all of its dependencies. The
// order comes straight out of a depth-first post-order traversal: a module is appended only once all modules
// reachable from it have been appended, so no reversal step is needed.
func (stack *Stack) TopologicalOrder() TerraformModules {
	ordered := TerraformModules{}
	visited := map[string]bool{}

	var visit func(module *TerraformModule)
	visit = func(module *TerraformModule) {
		if visited[module.Path] {
			return
		}

		visited[module.Path] = true

		for _, dependency := range module.Dependencies {
			visit(dependency)
		}

		ordered = append(ordered, module)
	}

	for _, module := range stack.Modules {
		visit(module)
	}

	return ordered
}

// Run executes the options' terraform command against every module in the stack. Destroys run in reverse dependency
// order so nothing is torn down while a dependent still needs it; everything else runs in forward order.
func (stack *Stack) Run(ctx context.Context, terragruntOptions *options.TerragruntOptions) error {
	stackCmd := terragruntOptions.TerraformCommand

	if util.ListContainsElement(options.TerraformCommandsNeedInput, stackCmd) {
		terragruntOptions.TerraformCliArgs = append(terragruntOptions.TerraformCliArgs, "-input=false")
		stack.syncTerraformCliArgs(terragruntOptions)
	}

	switch stackCmd {
	case tf.CommandNameApply, tf.CommandNameDestroy:
		if terragruntOptions.RunAllAutoApprove {
			terragruntOptions.TerraformCliArgs = append(terragruntOptions.TerraformCliArgs, "-auto-approve")
			stack.syncTerraformCliArgs(terragruntOptions)
		}
	}

	if stackCmd == tf.CommandNameDestroy {
		return RunModulesReverseOrder(ctx, stack.TopologicalOrder(), terragruntOptions.Parallelism)
	}

	if terragruntOptions.IgnoreDependencyOrder {
		return RunModulesIgnoreOrder(ctx, stack.TopologicalOrder(), terragruntOptions.Parallelism)
	}

	return RunModules(ctx, stack.TopologicalOrder(), terragruntOptions.Parallelism)
}

// LogModuleDeployOrder logs the ordered groups of modules the given command would process. Modules in the same
// group share no dependency edges and may run concurrently.
func (stack *Stack) LogModuleDeployOrder(terragruntOptions *options.TerragruntOptions, terraformCommand string) {
	outStr := fmt.Sprintf("The stack at %s will be processed in the following order for command %s:\n", stack.Path, terraformCommand)

	runGroups := stack.RunGroups()
	if terraformCommand == tf.CommandNameDestroy {
		reversed := make([]TerraformModules, 0, len(runGroups))
		for i := len(runGroups) - 1; i >= 0; i-- {
			reversed = append(reversed, runGroups[i])
		}

		runGroups = reversed
	}

	for i, group := range runGroups {
		outStr += fmt.Sprintf("Group %d\n", i+1)
		for _, module := range group {
			outStr += fmt.Sprintf("- Module %s\n", module.Path)
		}

		outStr += "\n"
	}

	terragruntOptions.Logger.Info(outStr)
}

// RunGroups partitions the stack into dependency levels: group N holds the modules whose dependencies all sit in
// groups 1..N-1.
func (stack *Stack) RunGroups() []TerraformModules {
	groups := []TerraformModules{}
	placed := map[string]bool{}
	remaining := stack.TopologicalOrder()

	for len(remaining) > 0 {
		group := TerraformModules{}
		rest := TerraformModules{}

		for _, module := range remaining {
			ready := true
			for _, dependency := range module.Dependencies {
				if !placed[dependency.Path] {
					ready = false
					break
				}
			}

			if ready {
				group = append(group, module)
			} else {
				rest = append(rest, module)
			}
		}

		for _, module := range group {
			placed[module.Path] = true
		}

		groups = append(groups, group)
		remaining = rest
	}

	return groups
}

// syncTerraformCliArgs propagates the stack-level cli args to each module's cloned options. Clones are made at
// resolve time, so args injected afterwards have to be copied over.
func (stack *Stack) syncTerraformCliArgs(terragruntOptions *options.TerragruntOptions) {
	for _, module := range stack.Modules {
		module.TerragruntOptions.TerraformCliArgs = util.CloneStringList(terragruntOptions.TerraformCliArgs)
	}
}

package configstack

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type moduleStatus int

const (
	waiting moduleStatus = iota
	running
	finished
)

// channelSize bounds the DependencyDone channels. A module receives at most one notification per dependency, so a
// sender can only block on a module with more dependencies than this.
const channelSize = 1000

// dependencyOrder controls which direction the dependency edges gate execution in.
type dependencyOrder int

const (
	// NormalOrder runs dependencies before their dependents.
	NormalOrder dependencyOrder = iota
	// ReverseOrder runs dependents before their dependencies, which is what destroy needs.
	ReverseOrder
	// IgnoreOrder runs everything as soon as a slot is free, with no gating at all.
	IgnoreOrder
)

// runningModule wraps a TerraformModule with the bookkeeping the dispatcher needs: the set of modules it is still
// waiting on, a channel those modules signal completion on, and the list of modules to notify when it finishes.
type runningModule struct {
	Module         *TerraformModule
	Status         moduleStatus
	Err            error
	DependencyDone chan *runningModule
	Dependencies   map[string]*runningModule
	NotifyWhenDone []*runningModule
}

func newRunningModule(module *TerraformModule) *runningModule {
	return &runningModule{
		Module:         module,
		Status:         waiting,
		DependencyDone: make(chan *runningModule, channelSize),
		Dependencies:   map[string]*runningModule{},
		NotifyWhenDone: []*runningModule{},
	}
}

// RunModules runs the terraform command of each module's options, gated so a module starts only after all of its
// dependencies finished successfully, with at most parallelism modules executing at once.
func RunModules(ctx context.Context, modules TerraformModules, parallelism int) error {
	runningModules, err := toRunningModules(modules, NormalOrder)
	if err != nil {
		return err
	}

	return runModules(ctx, runningModules, parallelism)
}

// RunModulesReverseOrder is RunModules with the dependency edges flipped, so dependents run before their
// dependencies.
func RunModulesReverseOrder(ctx context.Context, modules TerraformModules, parallelism int) error {
	runningModules, err := toRunningModules(modules, ReverseOrder)
	if err != nil {
		return err
	}

	return runModules(ctx, runningModules, parallelism)
}

// RunModulesIgnoreOrder runs every module without waiting on any dependency edges.
func RunModulesIgnoreOrder(ctx context.Context, modules TerraformModules, parallelism int) error {
	runningModules, err := toRunningModules(modules, IgnoreOrder)
	if err != nil {
		return err
	}

	return runModules(ctx, runningModules, parallelism)
}

// toRunningModules wraps each module for dispatch and wires the waiting/notification links according to the given
// order.
func toRunningModules(modules TerraformModules, order dependencyOrder) (map[string]*runningModule, error) {
	runningModules := map[string]*runningModule{}
	for _, module := range modules {
		runningModules[module.Path] = newRunningModule(module)
	}

	return crossLinkDependencies(runningModules, order)
}

// crossLinkDependencies fills in the Dependencies and NotifyWhenDone lists of each wrapped module. In NormalOrder a
// module waits on its dependencies; in ReverseOrder the dependencies wait on it; in IgnoreOrder nothing waits on
// anything.
func crossLinkDependencies(runningModules map[string]*runningModule, order dependencyOrder) (map[string]*runningModule, error) {
	for _, module := range runningModules {
		for _, dependency := range module.Module.Dependencies {
			runningDependency, found := runningModules[dependency.Path]
			if !found {
				return nil, errors.Errorf("could not find module %s in module list; this is almost certainly a bug", dependency.Path)
			}

			switch order {
			case NormalOrder:
				module.Dependencies[runningDependency.Module.Path] = runningDependency
				runningDependency.NotifyWhenDone = append(runningDependency.NotifyWhenDone, module)
			case ReverseOrder:
				runningDependency.Dependencies[module.Module.Path] = module
				module.NotifyWhenDone = append(module.NotifyWhenDone, runningDependency)
			case IgnoreOrder:
				// no gating
			}
		}
	}

	return runningModules, nil
}

// runModules starts a goroutine per module and waits for all of them. Slots are a buffered channel: a module
// acquires one only after its dependencies have finished, so waiting modules never hold a slot.
func runModules(ctx context.Context, runningModules map[string]*runningModule, parallelism int) error {
	var waitGroup sync.WaitGroup

	if parallelism < 1 {
		parallelism = 1
	}

	semaphore := make(chan struct{}, parallelism)

	for _, module := range runningModules {
		waitGroup.Add(1)

		go func(module *runningModule) {
			defer waitGroup.Done()

			module.runModuleWhenReady(ctx, semaphore)
		}(module)
	}

	waitGroup.Wait()

	return collectErrors(runningModules)
}

// runModuleWhenReady waits for the module's dependencies, acquires a slot, runs the module, and then notifies
// everything waiting on it. Notification happens for every outcome, success or failure, so dependents never hang.
func (module *runningModule) runModuleWhenReady(ctx context.Context, semaphore chan struct{}) {
	err := module.waitForDependencies(ctx)

	if err == nil {
		select {
		case semaphore <- struct{}{}:
			// The slot may have been granted after cancellation; never start a run on a dead context.
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = errors.WithStack(ctxErr)
			} else {
				err = module.runNow(ctx)
			}

			<-semaphore
		case <-ctx.Done():
			err = errors.WithStack(ctx.Err())
		}
	}

	module.moduleFinished(err)
}

// waitForDependencies blocks until every dependency of this module has finished. A failed dependency fails this
// module too, unless the module's options say to ignore dependency errors.
func (module *runningModule) waitForDependencies(ctx context.Context) error {
	for len(module.Dependencies) > 0 {
		select {
		case doneDependency := <-module.DependencyDone:
			delete(module.Dependencies, doneDependency.Module.Path)

			if doneDependency.Err != nil && !module.Module.TerragruntOptions.IgnoreDependencyErrors {
				return errors.WithStack(DependencyFinishedWithError{
					Module:     module.Module,
					Dependency: doneDependency.Module,
					Err:        doneDependency.Err,
				})
			}
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
	}

	return nil
}

// runNow executes the module's terraform command, unless the module is excluded, in which case it succeeds
// without doing anything.
func (module *runningModule) runNow(ctx context.Context) error {
	module.Status = running

	if module.Module.FlagExcluded {
		module.Module.TerragruntOptions.Logger.Infof("Module %s is excluded, skipping", module.Module.Path)
		return nil
	}

	module.Module.TerragruntOptions.Logger.Infof("Running module %s now", module.Module.Path)

	return module.Module.TerragruntOptions.RunTerragrunt(ctx, module.Module.TerragruntOptions)
}

// moduleFinished records the module's outcome and signals every module waiting on it.
func (module *runningModule) moduleFinished(moduleErr error) {
	if moduleErr == nil {
		module.Module.TerragruntOptions.Logger.Infof("Module %s has finished successfully!", module.Module.Path)
	} else {
		module.Module.TerragruntOptions.Logger.Errorf("Module %s has finished with an error: %v", module.Module.Path, moduleErr)
	}

	module.Status = finished
	module.Err = moduleErr

	for _, toNotify := range module.NotifyWhenDone {
		toNotify.DependencyDone <- module
	}
}

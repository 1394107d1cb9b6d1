package configstack

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphModule(t *testing.T, path string, dependencies ...*TerraformModule) *TerraformModule {
	t.Helper()

	opts, err := options.NewTerragruntOptionsForTest(filepath.Join(path, options.DefaultConfigName))
	require.NoError(t, err)

	opts.Writer = &bytes.Buffer{}
	opts.ErrWriter = &bytes.Buffer{}

	return &TerraformModule{
		Path:              path,
		Dependencies:      dependencies,
		TerragruntOptions: opts,
	}
}

func assertOrderRespectsDependencies(t *testing.T, ordered TerraformModules) {
	t.Helper()

	position := map[string]int{}
	for i, module := range ordered {
		position[module.Path] = i
	}

	for _, module := range ordered {
		for _, dependency := range module.Dependencies {
			assert.Less(t, position[dependency.Path], position[module.Path],
				"dependency %s must come before %s", dependency.Path, module.Path)
		}
	}
}

func TestTopologicalOrderChain(t *testing.T) {
	t.Parallel()

	net := graphModule(t, "/stacks/net")
	db := graphModule(t, "/stacks/db", net)
	app := graphModule(t, "/stacks/app", db)

	// Modules deliberately listed dependents-first: the order must come from the graph, not the input.
	stack := &Stack{Path: "/stacks", Modules: TerraformModules{app, db, net}}

	ordered := stack.TopologicalOrder()
	require.Len(t, ordered, 3)

	assert.Equal(t, "/stacks/net", ordered[0].Path)
	assert.Equal(t, "/stacks/db", ordered[1].Path)
	assert.Equal(t, "/stacks/app", ordered[2].Path)
}

func TestTopologicalOrderDiamond(t *testing.T) {
	t.Parallel()

	base := graphModule(t, "/stacks/base")
	left := graphModule(t, "/stacks/left", base)
	right := graphModule(t, "/stacks/right", base)
	top := graphModule(t, "/stacks/top", left, right)

	stack := &Stack{Path: "/stacks", Modules: TerraformModules{top, right, left, base}}

	ordered := stack.TopologicalOrder()
	require.Len(t, ordered, 4)
	assertOrderRespectsDependencies(t, ordered)
	assert.Equal(t, "/stacks/base", ordered[0].Path)
	assert.Equal(t, "/stacks/top", ordered[3].Path)
}

func TestTopologicalOrderIndependentModules(t *testing.T) {
	t.Parallel()

	a := graphModule(t, "/stacks/a")
	b := graphModule(t, "/stacks/b")

	stack := &Stack{Path: "/stacks", Modules: TerraformModules{a, b}}

	ordered := stack.TopologicalOrder()
	assert.Len(t, ordered, 2)
}

func TestCheckForCyclesAcyclic(t *testing.T) {
	t.Parallel()

	net := graphModule(t, "/stacks/net")
	db := graphModule(t, "/stacks/db", net)
	app := graphModule(t, "/stacks/app", db)

	require.NoError(t, TerraformModules{net, db, app}.CheckForCycles())
}

func TestCheckForCyclesDirectCycle(t *testing.T) {
	t.Parallel()

	a := graphModule(t, "/stacks/a")
	b := graphModule(t, "/stacks/b")
	a.Dependencies = TerraformModules{b}
	b.Dependencies = TerraformModules{a}

	done := make(chan error, 1)
	go func() {
		done <- TerraformModules{a, b}.CheckForCycles()
	}()

	// Cycle detection must terminate, not spin forever.
	select {
	case err := <-done:
		require.Error(t, err)

		var cycleErr DependencyCycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Contains(t, err.Error(), "/stacks/a")
		assert.Contains(t, err.Error(), "/stacks/b")
	case <-time.After(10 * time.Second):
		t.Fatal("cycle detection did not terminate")
	}
}

func TestCheckForCyclesSelfCycle(t *testing.T) {
	t.Parallel()

	a := graphModule(t, "/stacks/a")
	a.Dependencies = TerraformModules{a}

	err := TerraformModules{a}.CheckForCycles()
	require.Error(t, err)

	var cycleErr DependencyCycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestRunGroups(t *testing.T) {
	t.Parallel()

	base := graphModule(t, "/stacks/base")
	left := graphModule(t, "/stacks/left", base)
	right := graphModule(t, "/stacks/right", base)
	top := graphModule(t, "/stacks/top", left, right)

	stack := &Stack{Path: "/stacks", Modules: TerraformModules{base, left, right, top}}

	groups := stack.RunGroups()
	require.Len(t, groups, 3)

	assert.Equal(t, "/stacks/base", groups[0][0].Path)
	assert.Len(t, groups[1], 2)
	assert.Equal(t, "/stacks/top", groups[2][0].Path)
}

func TestStackRunDestroyUsesReverseOrder(t *testing.T) {
	t.Parallel()

	recorder := &runRecorder{}
	runner := recorder.runner(1 * time.Millisecond)

	net := testModule(t, "/stacks/net", runner)
	db := testModule(t, "/stacks/db", runner, net)

	stack := &Stack{Path: "/stacks", Modules: TerraformModules{net, db}}

	opts, err := options.NewTerragruntOptionsForTest("/stacks/terragrunt.hcl")
	require.NoError(t, err)

	opts.TerraformCommand = "destroy"
	opts.Parallelism = 2
	opts.RunAllAutoApprove = false

	require.NoError(t, stack.Run(context.Background(), opts))

	assert.Less(t, recorder.indexOf(t, "/stacks/db"), recorder.indexOf(t, "/stacks/net"))
}

func TestStackRunInjectsAutoApprove(t *testing.T) {
	t.Parallel()

	var seenArgs []string

	runner := func(ctx context.Context, opts *options.TerragruntOptions) error {
		seenArgs = append([]string{}, opts.TerraformCliArgs...)
		return nil
	}

	module := testModule(t, "/stacks/app", runner)
	stack := &Stack{Path: "/stacks", Modules: TerraformModules{module}}

	opts, err := options.NewTerragruntOptionsForTest("/stacks/terragrunt.hcl")
	require.NoError(t, err)

	opts.TerraformCommand = "apply"
	opts.TerraformCliArgs = []string{"apply"}
	opts.Parallelism = 1

	require.NoError(t, stack.Run(context.Background(), opts))

	assert.Contains(t, seenArgs, "-input=false")
	assert.Contains(t, seenArgs, "-auto-approve")
}

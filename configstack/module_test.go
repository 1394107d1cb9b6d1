package configstack

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModuleConfig(t *testing.T, baseDir, moduleDir, configBody string) string {
	t.Helper()

	fullDir := filepath.Join(baseDir, moduleDir)
	require.NoError(t, os.MkdirAll(fullDir, 0755))

	configPath := filepath.Join(fullDir, options.DefaultConfigName)
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0644))

	return configPath
}

func resolveOptions(t *testing.T, baseDir string) *options.TerragruntOptions {
	t.Helper()

	opts, err := options.NewTerragruntOptionsForTest(filepath.Join(baseDir, options.DefaultConfigName))
	require.NoError(t, err)

	opts.Writer = &bytes.Buffer{}
	opts.ErrWriter = &bytes.Buffer{}

	return opts
}

func modulesByPath(modules TerraformModules) map[string]*TerraformModule {
	byPath := map[string]*TerraformModule{}
	for _, module := range modules {
		byPath[module.Path] = module
	}

	return byPath
}

func TestResolveTerraformModulesCrosslinksDependencies(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()

	netConfig := writeModuleConfig(t, baseDir, "net", ``)
	dbConfig := writeModuleConfig(t, baseDir, "db", `
dependencies {
  paths = ["../net"]
}
`)
	appConfig := writeModuleConfig(t, baseDir, "app", `
dependency "db" {
  config_path = "../db"
}
`)

	opts := resolveOptions(t, baseDir)

	modules, err := ResolveTerraformModules([]string{netConfig, dbConfig, appConfig}, opts)
	require.NoError(t, err)
	require.Len(t, modules, 3)

	canonicalBase, err := util.CanonicalPath(baseDir, ".")
	require.NoError(t, err)

	byPath := modulesByPath(modules)

	net := byPath[canonicalBase+"/net"]
	db := byPath[canonicalBase+"/db"]
	app := byPath[canonicalBase+"/app"]

	require.NotNil(t, net)
	require.NotNil(t, db)
	require.NotNil(t, app)

	assert.Empty(t, net.Dependencies)
	require.Len(t, db.Dependencies, 1)
	assert.Same(t, net, db.Dependencies[0])
	require.Len(t, app.Dependencies, 1)
	assert.Same(t, db, app.Dependencies[0])

	// Each module got its own options rooted at its own directory.
	assert.Equal(t, canonicalBase+"/db", db.TerragruntOptions.WorkingDir)
	assert.NotSame(t, opts, db.TerragruntOptions)
}

func TestResolveTerraformModulesDanglingDependency(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()

	appConfig := writeModuleConfig(t, baseDir, "app", `
dependencies {
  paths = ["../missing"]
}
`)

	opts := resolveOptions(t, baseDir)

	_, err := ResolveTerraformModules([]string{appConfig}, opts)
	require.Error(t, err)

	var unrecognized UnrecognizedDependencyError
	require.ErrorAs(t, err, &unrecognized)
	assert.Contains(t, unrecognized.DependencyPath, "missing")
}

func TestResolveTerraformModulesMalformedConfig(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	badConfig := writeModuleConfig(t, baseDir, "bad", `dependencies {`)

	opts := resolveOptions(t, baseDir)

	_, err := ResolveTerraformModules([]string{badConfig}, opts)
	require.Error(t, err)

	var processingErr ProcessingModuleError
	assert.ErrorAs(t, err, &processingErr)
}

func TestResolveTerraformModulesExcludeDirs(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()

	netConfig := writeModuleConfig(t, baseDir, "net", ``)
	appConfig := writeModuleConfig(t, baseDir, "app", ``)

	opts := resolveOptions(t, baseDir)
	opts.ExcludeDirs = []string{filepath.Join(baseDir, "app")}

	modules, err := ResolveTerraformModules([]string{netConfig, appConfig}, opts)
	require.NoError(t, err)

	canonicalBase, err := util.CanonicalPath(baseDir, ".")
	require.NoError(t, err)

	byPath := modulesByPath(modules)
	assert.False(t, byPath[canonicalBase+"/net"].FlagExcluded)
	assert.True(t, byPath[canonicalBase+"/app"].FlagExcluded)
}

func TestResolveTerraformModulesIncludeDirs(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()

	netConfig := writeModuleConfig(t, baseDir, "net", ``)
	appConfig := writeModuleConfig(t, baseDir, "app", ``)

	opts := resolveOptions(t, baseDir)
	opts.IncludeDirs = []string{filepath.Join(baseDir, "net")}

	modules, err := ResolveTerraformModules([]string{netConfig, appConfig}, opts)
	require.NoError(t, err)

	canonicalBase, err := util.CanonicalPath(baseDir, ".")
	require.NoError(t, err)

	byPath := modulesByPath(modules)
	assert.False(t, byPath[canonicalBase+"/net"].FlagExcluded)
	assert.True(t, byPath[canonicalBase+"/app"].FlagExcluded)
}

func TestFindStackInSubfoldersBuildsGraph(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()

	writeModuleConfig(t, baseDir, "net", ``)
	writeModuleConfig(t, baseDir, "db", `
dependencies {
  paths = ["../net"]
}
`)

	opts := resolveOptions(t, baseDir)
	opts.WorkingDir, _ = util.CanonicalPath(baseDir, ".")

	stack, err := FindStackInSubfolders(opts)
	require.NoError(t, err)
	require.Len(t, stack.Modules, 2)

	ordered := stack.TopologicalOrder()
	assert.Equal(t, opts.WorkingDir+"/net", ordered[0].Path)
	assert.Equal(t, opts.WorkingDir+"/db", ordered[1].Path)
}

func TestFindStackInSubfoldersNoModules(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()

	opts := resolveOptions(t, baseDir)
	opts.WorkingDir, _ = util.CanonicalPath(baseDir, ".")

	_, err := FindStackInSubfolders(opts)
	require.Error(t, err)

	var notFound NoTerraformModulesFound
	assert.ErrorAs(t, err, &notFound)
}

func TestFindStackInSubfoldersRejectsCycle(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()

	writeModuleConfig(t, baseDir, "a", `
dependencies {
  paths = ["../b"]
}
`)
	writeModuleConfig(t, baseDir, "b", `
dependencies {
  paths = ["../a"]
}
`)

	opts := resolveOptions(t, baseDir)
	opts.WorkingDir, _ = util.CanonicalPath(baseDir, ".")

	_, err := FindStackInSubfolders(opts)
	require.Error(t, err)

	var cycleErr DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, err.Error(), "/a")
	assert.Contains(t, err.Error(), "/b")
}

func TestModuleStringRendering(t *testing.T) {
	t.Parallel()

	net := graphModule(t, "/stacks/net")
	db := graphModule(t, "/stacks/db", net)

	rendered := db.String()
	assert.Contains(t, rendered, "/stacks/db")
	assert.Contains(t, rendered, "/stacks/net")
}

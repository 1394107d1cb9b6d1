// Package outputs implements the dependency output store: after a module is applied successfully, its terraform
// output values are captured and made addressable to downstream modules under <dependency name>.<output key>.
// Captured values are cached to a per-module file so a later run in the same working tree can avoid invoking
// terraform again; mock outputs configured on a dependency block are used verbatim without ever invoking terraform.
package outputs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/catherinevee/terragrunt-gcp-sub007/config"
	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/shell"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// CacheFileName is the name of the per-module output cache file, written next to the module's terragrunt.hcl.
const CacheFileName = ".terragrunt-outputs.json"

// Store caches captured module outputs for the duration of one run and persists them per module. It is safe for
// concurrent use by multiple module pipelines.
type Store struct {
	outputs   *xsync.MapOf[string, map[string]any]
	fileLocks *util.KeyLocks
}

// NewStore returns an empty output store.
func NewStore() *Store {
	return &Store{
		outputs:   xsync.NewMapOf[string, map[string]any](),
		fileLocks: util.NewKeyLocks(),
	}
}

// CaptureOutputs records the output values of the module rooted at the working dir of the given options. It invokes
// `terraform output -json` in that module, stores the flattened values in memory, and persists them to the module's
// cache file. Failures here are surfaced to the caller, which treats them as non-fatal for the run.
func (store *Store) CaptureOutputs(ctx context.Context, terragruntOptions *options.TerragruntOptions) error {
	if terragruntOptions.DryRun {
		terragruntOptions.Logger.Debugf("DRY RUN: skipping output capture for %s", terragruntOptions.WorkingDir)
		return nil
	}

	moduleOutputs, err := store.fetchOutputs(ctx, terragruntOptions)
	if err != nil {
		return err
	}

	store.outputs.Store(terragruntOptions.WorkingDir, moduleOutputs)

	return store.writeCacheFile(terragruntOptions.WorkingDir, moduleOutputs)
}

// ModuleOutputs returns the output set of the module at modulePath. Values captured earlier in this run are
// preferred; otherwise the module's cache file is consulted; otherwise terraform is asked directly.
func (store *Store) ModuleOutputs(ctx context.Context, terragruntOptions *options.TerragruntOptions, modulePath string) (map[string]any, error) {
	if cached, ok := store.outputs.Load(modulePath); ok {
		return cached, nil
	}

	if fromFile, ok := store.readCacheFile(modulePath); ok {
		terragruntOptions.Logger.Debugf("Using cached outputs for %s", modulePath)
		store.outputs.Store(modulePath, fromFile)

		return fromFile, nil
	}

	targetOptions := terragruntOptions.Clone(config.GetDefaultConfigPath(modulePath))
	targetOptions.TerraformCommand = "output"

	moduleOutputs, err := store.fetchOutputs(ctx, targetOptions)
	if err != nil {
		return nil, err
	}

	store.outputs.Store(modulePath, moduleOutputs)

	return moduleOutputs, nil
}

// ResolveDependency returns the output values a dependency block contributes to its consumer, keyed by output name.
// Mock outputs, when configured, are used verbatim and terraform is never invoked for the dependency.
func (store *Store) ResolveDependency(ctx context.Context, terragruntOptions *options.TerragruntOptions, dep config.Dependency, modulePath string) (map[string]any, error) {
	if !dep.IsEnabled() || (dep.SkipOutputs != nil && *dep.SkipOutputs) {
		return map[string]any{}, nil
	}

	if dep.MockOutputs != nil && !dep.MockOutputs.IsNull() {
		terragruntOptions.Logger.Debugf("Using mock outputs for dependency %s of module %s", dep.Name, modulePath)
		return mockOutputsAsMap(*dep.MockOutputs)
	}

	dependencyPath, err := util.CanonicalPath(dep.ConfigPath, modulePath)
	if err != nil {
		return nil, err
	}

	return store.ModuleOutputs(ctx, terragruntOptions, dependencyPath)
}

// DependencyOutputs resolves the outputs of every dependency block of the given config and returns them addressable
// as <dependency name>.<output key>.
func (store *Store) DependencyOutputs(ctx context.Context, terragruntOptions *options.TerragruntOptions, terragruntConfig *config.TerragruntConfig, modulePath string) (map[string]any, error) {
	resolved := map[string]any{}

	for _, dep := range terragruntConfig.TerragruntDependencies {
		depOutputs, err := store.ResolveDependency(ctx, terragruntOptions, dep, modulePath)
		if err != nil {
			return nil, err
		}

		for key, value := range depOutputs {
			resolved[fmt.Sprintf("%s.%s", dep.Name, key)] = value
		}
	}

	return resolved, nil
}

// Invalidate removes the in-memory and on-disk cached outputs for the module at modulePath. Called after destroy.
func (store *Store) Invalidate(modulePath string) error {
	store.outputs.Delete(modulePath)

	cacheFile := filepath.Join(modulePath, CacheFileName)

	store.fileLocks.Lock(cacheFile)
	defer store.fileLocks.Unlock(cacheFile)

	if err := os.Remove(cacheFile); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}

	return nil
}

// fetchOutputs invokes `terraform output -json` in the module rooted at the given options and flattens the result
// to a map of output name to value.
func (store *Store) fetchOutputs(ctx context.Context, terragruntOptions *options.TerragruntOptions) (map[string]any, error) {
	out, err := shell.RunShellCommandWithOutput(ctx, terragruntOptions, "", true, terragruntOptions.TerraformPath, "output", "-json")
	if err != nil {
		return nil, err
	}

	return parseOutputJSON(out.Stdout.Bytes())
}

// parseOutputJSON converts the `terraform output -json` document ({"name": {"value": ..., "type": ..., ...}}) to a
// flat map of output name to value.
func parseOutputJSON(outputJSON []byte) (map[string]any, error) {
	if len(outputJSON) == 0 {
		return map[string]any{}, nil
	}

	outputMetas := map[string]struct {
		Value any `json:"value"`
	}{}

	if err := json.Unmarshal(outputJSON, &outputMetas); err != nil {
		return nil, errors.WithStack(err)
	}

	moduleOutputs := map[string]any{}
	for key, meta := range outputMetas {
		moduleOutputs[key] = meta.Value
	}

	return moduleOutputs, nil
}

// mockOutputsAsMap converts a mock_outputs cty object to plain Go values via its JSON form.
func mockOutputsAsMap(mockOutputs cty.Value) (map[string]any, error) {
	jsonBytes, err := ctyjson.Marshal(mockOutputs, mockOutputs.Type())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	asMap := map[string]any{}
	if err := json.Unmarshal(jsonBytes, &asMap); err != nil {
		return nil, errors.WithStack(err)
	}

	return asMap, nil
}

// writeCacheFile persists the given outputs next to the module's config file. The file is guarded by both an
// in-process key lock and a file lock so concurrent runs in the same working tree do not interleave writes.
func (store *Store) writeCacheFile(modulePath string, moduleOutputs map[string]any) error {
	cacheFile := filepath.Join(modulePath, CacheFileName)

	store.fileLocks.Lock(cacheFile)
	defer store.fileLocks.Unlock(cacheFile)

	fileLock := flock.New(cacheFile + ".lock")
	if err := fileLock.Lock(); err != nil {
		return errors.WithStack(err)
	}
	defer fileLock.Unlock() //nolint:errcheck

	jsonBytes, err := json.MarshalIndent(moduleOutputs, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.WriteFile(cacheFile, jsonBytes, 0644))
}

// readCacheFile loads the cached outputs of the module at modulePath, returning false when there is no usable
// cache. The cache is best-effort: unreadable or corrupt files are treated as absent.
func (store *Store) readCacheFile(modulePath string) (map[string]any, bool) {
	cacheFile := filepath.Join(modulePath, CacheFileName)

	store.fileLocks.Lock(cacheFile)
	defer store.fileLocks.Unlock(cacheFile)

	jsonBytes, err := os.ReadFile(cacheFile)
	if err != nil {
		return nil, false
	}

	moduleOutputs := map[string]any{}
	if err := json.Unmarshal(jsonBytes, &moduleOutputs); err != nil {
		return nil, false
	}

	return moduleOutputs, true
}

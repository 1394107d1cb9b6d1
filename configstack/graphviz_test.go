package configstack

import (
	"bytes"
	"testing"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphTestOptions(t *testing.T) *options.TerragruntOptions {
	t.Helper()

	opts, err := options.NewTerragruntOptionsForTest("/stacks/terragrunt.hcl")
	require.NoError(t, err)

	return opts
}

func TestWriteDot(t *testing.T) {
	t.Parallel()

	opts := graphTestOptions(t)

	net := graphModule(t, "/stacks/net")
	db := graphModule(t, "/stacks/db", net)
	db.FlagExcluded = true

	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, opts, TerraformModules{net, db}))

	rendered := buf.String()
	assert.Contains(t, rendered, "digraph {")
	assert.Contains(t, rendered, `"db" -> "net";`)
	assert.Contains(t, rendered, "[color=red]")
}

func TestWriteMermaid(t *testing.T) {
	t.Parallel()

	opts := graphTestOptions(t)

	net := graphModule(t, "/stacks/net")
	db := graphModule(t, "/stacks/db", net)

	var buf bytes.Buffer
	require.NoError(t, WriteMermaid(&buf, opts, TerraformModules{net, db}))

	rendered := buf.String()
	assert.Contains(t, rendered, "flowchart TD")
	assert.Contains(t, rendered, "db --> net")
}

func TestGraphNodeLabelsAreRelativeToWorkingDir(t *testing.T) {
	t.Parallel()

	opts := graphTestOptions(t)

	nested := graphModule(t, "/stacks/envs/prod/net")
	outside := graphModule(t, "/elsewhere/net")

	assert.Equal(t, "envs/prod/net", nodeLabel(nested, opts))
	assert.Equal(t, "/elsewhere/net", nodeLabel(outside, opts))
}

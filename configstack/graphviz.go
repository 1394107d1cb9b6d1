package configstack

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/pkg/errors"
)

// WriteDot renders the module dependency graph in DOT format. Each module is a node labeled by its path relative
// to the working dir; each dependency is an edge from dependent to dependency.
func WriteDot(w io.Writer, terragruntOptions *options.TerragruntOptions, modules TerraformModules) error {
	var buf bytes.Buffer

	buf.WriteString("digraph {\n")

	for _, source := range modules {
		// apply a different coloring for excluded nodes
		style := ""
		if source.FlagExcluded {
			style = "[color=red]"
		}

		nodeLine := fmt.Sprintf("\t\"%s\" %s;\n", nodeLabel(source, terragruntOptions), style)
		buf.WriteString(nodeLine)

		for _, target := range source.Dependencies {
			line := fmt.Sprintf("\t\"%s\" -> \"%s\";\n", nodeLabel(source, terragruntOptions), nodeLabel(target, terragruntOptions))
			buf.WriteString(line)
		}
	}

	buf.WriteString("}\n")

	_, err := w.Write(buf.Bytes())

	return errors.WithStack(err)
}

// WriteMermaid renders the module dependency graph as a mermaid flowchart.
func WriteMermaid(w io.Writer, terragruntOptions *options.TerragruntOptions, modules TerraformModules) error {
	var buf bytes.Buffer

	buf.WriteString("flowchart TD\n")

	for _, source := range modules {
		buf.WriteString(fmt.Sprintf("\t%s[\"%s\"]\n", mermaidID(source, terragruntOptions), nodeLabel(source, terragruntOptions)))

		for _, target := range source.Dependencies {
			buf.WriteString(fmt.Sprintf("\t%s --> %s\n", mermaidID(source, terragruntOptions), mermaidID(target, terragruntOptions)))
		}
	}

	_, err := w.Write(buf.Bytes())

	return errors.WithStack(err)
}

// nodeLabel returns the module's path relative to the working dir, falling back to the absolute path when the
// module sits outside it.
func nodeLabel(module *TerraformModule, terragruntOptions *options.TerragruntOptions) string {
	prefix := terragruntOptions.WorkingDir + "/"
	if strings.HasPrefix(module.Path, prefix) {
		return strings.TrimPrefix(module.Path, prefix)
	}

	return module.Path
}

var mermaidUnsafeReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_", " ", "_")

func mermaidID(module *TerraformModule, terragruntOptions *options.TerragruntOptions) string {
	return mermaidUnsafeReplacer.Replace(nodeLabel(module, terragruntOptions))
}

// Package tf knows how to run the terraform binary for a single module: building the command line, surrounding the
// invocation with the module's configured hooks, retrying failures that match the configured transient-error
// patterns, and wiring dependency outputs into the module's environment.
package tf

import (
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
)

// Terraform command names the orchestrator is aware of.
const (
	CommandNameInit     = "init"
	CommandNamePlan     = "plan"
	CommandNameApply    = "apply"
	CommandNameDestroy  = "destroy"
	CommandNameValidate = "validate"
	CommandNameOutput   = "output"
	CommandNameVersion  = "version"
)

// CommandsWithDependencyOutputs is the set of commands that consume the outputs of the module's dependencies.
var CommandsWithDependencyOutputs = []string{
	CommandNamePlan,
	CommandNameApply,
}

// ConsumesDependencyOutputs returns true if the given terraform command needs dependency outputs resolved before it
// runs.
func ConsumesDependencyOutputs(terraformCommand string) bool {
	return util.ListContainsElement(CommandsWithDependencyOutputs, terraformCommand)
}

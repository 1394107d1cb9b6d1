package tf

import (
	"context"
	"regexp"

	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/shell"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

// terraformVersionRegex matches the first line of `terraform version` output, e.g. "Terraform v1.5.7" or
// "OpenTofu v1.6.0".
var terraformVersionRegex = regexp.MustCompile(`(?:Terraform|OpenTofu) v?(\d+(\.\d+)*)`)

// CheckTerraformVersion verifies that the installed terraform satisfies the given version constraint (e.g.
// ">= 1.0, < 2.0"). A constraint that cannot be parsed is a configuration error.
func CheckTerraformVersion(ctx context.Context, terragruntOptions *options.TerragruntOptions, constraint string) error {
	actualVersion, err := TerraformVersion(ctx, terragruntOptions)
	if err != nil {
		return err
	}

	versionConstraint, err := version.NewConstraint(constraint)
	if err != nil {
		return errors.WithStack(err)
	}

	if !versionConstraint.Check(actualVersion) {
		return errors.WithStack(TerraformVersionError{Constraint: constraint, Actual: actualVersion.String()})
	}

	return nil
}

// TerraformVersion runs `terraform version` and parses the version out of its first line.
func TerraformVersion(ctx context.Context, terragruntOptions *options.TerragruntOptions) (*version.Version, error) {
	out, err := shell.RunShellCommandWithOutput(ctx, terragruntOptions, "", true, terragruntOptions.TerraformPath, CommandNameVersion)
	if err != nil {
		return nil, err
	}

	return parseTerraformVersion(out.Stdout.String())
}

func parseTerraformVersion(versionOutput string) (*version.Version, error) {
	matches := terraformVersionRegex.FindStringSubmatch(versionOutput)

	if len(matches) < 2 {
		return nil, errors.Errorf("unable to parse terraform version from output: %q", versionOutput)
	}

	return version.NewVersion(matches[1])
}

package cli

import (
	"github.com/catherinevee/terragrunt-gcp-sub007/configstack"
	"github.com/catherinevee/terragrunt-gcp-sub007/options"
	"github.com/catherinevee/terragrunt-gcp-sub007/tf"
	"github.com/catherinevee/terragrunt-gcp-sub007/util"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const flagGraphOutput = "output"

// runAllCommand defines `run-all plan|apply|destroy`, which runs the given terraform command against every module
// under the working dir in dependency order.
func runAllCommand() []*cli.Command {
	subcommands := []*cli.Command{}

	for _, terraformCommand := range []string{tf.CommandNamePlan, tf.CommandNameApply, tf.CommandNameDestroy} {
		terraformCommand := terraformCommand

		subcommands = append(subcommands, &cli.Command{
			Name:  terraformCommand,
			Usage: "Run 'terraform " + terraformCommand + "' against every module under the working dir, in dependency order.",
			Action: func(cliCtx *cli.Context) error {
				return runAll(cliCtx, terraformCommand)
			},
		})
	}

	return []*cli.Command{{
		Name:        "run-all",
		Usage:       "Run a terraform command against every module under the working dir.",
		Subcommands: subcommands,
	}}
}

func runAll(cliCtx *cli.Context, terraformCommand string) error {
	opts, err := parseTerragruntOptions(cliCtx)
	if err != nil {
		return err
	}

	opts.TerraformCommand = terraformCommand
	opts.TerraformCliArgs = append([]string{terraformCommand}, append(opts.TerraformCliArgs, cliCtx.Args().Slice()...)...)

	stack, err := configstack.FindStackInSubfolders(opts)
	if err != nil {
		return err
	}

	opts.Logger.Debugf("%s", stack.String())
	stack.LogModuleDeployOrder(opts, terraformCommand)

	return stack.Run(cliCtx.Context, opts)
}

// graphDependenciesCommand defines `graph-dependencies`, which renders the module dependency graph without running
// anything.
func graphDependenciesCommand() []*cli.Command {
	return []*cli.Command{{
		Name:  "graph-dependencies",
		Usage: "Render the dependency graph of the modules under the working dir.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagGraphOutput, Value: "dot", Usage: "Graph format: dot or mermaid."},
		},
		Action: graphDependencies,
	}}
}

func graphDependencies(cliCtx *cli.Context) error {
	opts, err := parseTerragruntOptions(cliCtx)
	if err != nil {
		return err
	}

	stack, err := configstack.FindStackInSubfolders(opts)
	if err != nil {
		return err
	}

	switch format := cliCtx.String(flagGraphOutput); format {
	case "dot":
		return configstack.WriteDot(opts.Writer, opts, stack.Modules)
	case "mermaid":
		return configstack.WriteMermaid(opts.Writer, opts, stack.Modules)
	default:
		return errors.Errorf("unsupported graph format %q: must be dot or mermaid", format)
	}
}

// singleModuleCommands defines the terraform passthrough subcommands that operate on the current working dir only.
func singleModuleCommands() []*cli.Command {
	commands := []*cli.Command{}

	for _, terraformCommand := range []string{
		tf.CommandNameInit,
		tf.CommandNamePlan,
		tf.CommandNameApply,
		tf.CommandNameDestroy,
		tf.CommandNameValidate,
		tf.CommandNameOutput,
	} {
		terraformCommand := terraformCommand

		commands = append(commands, &cli.Command{
			Name:            terraformCommand,
			Usage:           "Run 'terraform " + terraformCommand + "' in the working dir.",
			SkipFlagParsing: true,
			Action: func(cliCtx *cli.Context) error {
				return runSingleModule(cliCtx, terraformCommand)
			},
		})
	}

	return commands
}

func runSingleModule(cliCtx *cli.Context, terraformCommand string) error {
	opts, err := parseTerragruntOptions(cliCtx)
	if err != nil {
		return err
	}

	opts.TerraformCommand = terraformCommand
	opts.TerraformCliArgs = append([]string{terraformCommand}, append(opts.TerraformCliArgs, cliCtx.Args().Slice()...)...)

	if opts.NonInteractive {
		if util.ListContainsElement(options.TerraformCommandsNeedInput, terraformCommand) {
			opts.TerraformCliArgs = append(opts.TerraformCliArgs, "-input=false")
		}

		switch terraformCommand {
		case tf.CommandNameApply, tf.CommandNameDestroy:
			opts.TerraformCliArgs = append(opts.TerraformCliArgs, "-auto-approve")
		}
	}

	return tf.RunTerragrunt(cliCtx.Context, opts)
}

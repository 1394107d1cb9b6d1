package main

import (
	"context"
	"os"

	"github.com/catherinevee/terragrunt-gcp-sub007/cli"
	"github.com/catherinevee/terragrunt-gcp-sub007/shell"
)

// The main entrypoint for terragrunt.
func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first interrupt cancels the run context so no new module pipelines launch; in-flight subprocesses get
	// the signal forwarded to them by their pipelines.
	shell.RegisterSignalHandler(func(signal os.Signal) {
		cancel()
	}, shell.InterruptSignals...)

	err := app.RunContext(ctx, os.Args)

	os.Exit(cli.ExitStatus(err, os.Stderr))
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/pipyaml/internal/cli"
)

// version is set by ldflags during build
var version = "dev"
var commit = "none"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	if err := cmd.Execute(); err != nil {
		// Commands print their own errors; only report exit errors they did not format.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}

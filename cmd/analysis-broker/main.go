package main

import (
	"fmt"
	"os"

	"analysis-broker/src/cli"
	"analysis-broker/internal/errors"
)

// runMain executes the CLI with args and returns the process exit code
func runMain(args []string) int {
	if err := cli.ExecuteArgs(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.IsProcessError(err) {
			return 2
		}
		return 1
	}
	return 0
}

func main() {
	exitCode := runMain(os.Args[1:])
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/rdmolony/backup-and-restore-a-github-org/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the org-restore command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}

// ABOUTME: Main entry point for the Cenly CLI
// ABOUTME: Sets up the Cobra root command and prints errors with a troubleshooting hint
package main

import (
	"fmt"
	"os"

	"github.com/harper/cenly/cmd/cenly/commands"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := commands.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", hint)
		}
		os.Exit(1)
	}
}

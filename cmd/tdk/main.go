// tdk is the terminal client for the TableDesk data-analysis assistant.
package main

import (
	"fmt"
	"os"

	"github.com/tabledesk/tdk/internal/commands"
)

// Populated by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	err := commands.Execute()
	commands.PrintNotices(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

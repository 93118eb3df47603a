// cmd/csx is the entry point for the csx CLI: it resolves a C# script's
// inline package directives into a flat set of runtime binaries.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/willibrandon/csx/cmd/csx/commands"
	"github.com/willibrandon/csx/cmd/csx/output"
)

// Build metadata, set via ldflags.
var (
	version = "0.0.0-dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	console := output.DefaultConsole()
	root := commands.NewRootCommand(console, version, commit, date)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		os.Exit(130)
	}()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

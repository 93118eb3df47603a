// Package commands wires cobra commands for the csx CLI to the library
// packages that implement package resolution (directive, registry,
// manifest, resolve, cachefetch, artifacts, frameworks).
package commands

import (
	"github.com/spf13/cobra"

	"github.com/willibrandon/csx/cmd/csx/output"
)

// NewRootCommand builds the csx root command and registers its
// subcommands. version/commit/date mirror the ldflags-populated build
// metadata the teacher's cmd/gonuget/main.go threads through.
func NewRootCommand(console *output.Console, version, commit, date string) *cobra.Command {
	root := &cobra.Command{
		Use:   "csx",
		Short: "Resolve and fetch NuGet package dependencies for C# scripts",
		Long: `csx resolves the #nuget/#package/#r directives in a C# script into a
flat list of runtime-compatible binaries, downloading and caching
packages from nuget.org as needed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	root.SetVersionTemplate("csx version {{.Version}}\n")

	root.AddCommand(newRunCommand(console))
	root.AddCommand(newCacheCommand(console))

	return root
}

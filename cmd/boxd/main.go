// Boxd hosts page modules bound to an HTML document and exposes them over
// HTTP.
//
// Configuration is loaded from an optional YAML or TOML file and BOXD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon against a document
//	boxd serve --document page.html
//
//	# Use a config file and override the port
//	BOXD_SERVER_PORT=9292 boxd serve --config boxd.yaml
//
//	# List the module elements a document declares
//	boxd modules --document page.html
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "boxd",
		Short: "Module host for HTML documents",
		Long: `boxd binds modules to the [data-module] elements of an HTML document,
gives each one a context bridge to the application, and serves the
application over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newModulesCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "boxd by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

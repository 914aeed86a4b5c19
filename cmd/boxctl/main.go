// Package main implements the boxctl CLI for manual operations against the
// boxd HTTP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &client{}

	root := &cobra.Command{
		Use:   "boxctl",
		Short: "CLI for boxd HTTP server operations",
		Long: `boxctl is a command-line interface for interacting with the boxd HTTP server.
It inspects running modules and configuration, broadcasts messages and
requests navigation.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.baseURL, "server", "http://localhost:9191", "boxd server URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", defaultTimeout, "request timeout")

	root.AddCommand(newHealthCmd(c))
	root.AddCommand(newModulesCmd(c))
	root.AddCommand(newConfigCmd(c))
	root.AddCommand(newBroadcastCmd(c))
	root.AddCommand(newNavigateCmd(c))
	return root
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/boxd/internal/http"
)

func newHealthCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check boxd server health",
		Long: `Check the health status of the boxd HTTP server.

Examples:
  # Check health
  boxctl health

  # Check health on a different server
  boxctl health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var health httpserver.HealthResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/health", nil, &health); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", health.Status)
			fmt.Fprintf(out, "Modules:       %d\n", health.Modules)
			fmt.Fprintf(out, "Server URL:    %s\n", c.baseURL)
			return nil
		},
	}
}

func newModulesCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List module types and running instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.ModulesResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/modules", nil, &resp); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODULE\tMESSAGES")
			for _, inst := range resp.Instances {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", inst.ID, inst.Module, len(inst.Messages))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTypes: %v\n", resp.Types)
			return nil
		},
	}
}

func newConfigCmd(c *client) *cobra.Command {
	var moduleID string

	cmd := &cobra.Command{
		Use:   "config [name]",
		Short: "Read global or module configuration",
		Long: `Read configuration from the server. Without a name the whole object is
printed; with a name only that entry is.

Examples:
  # Whole global config
  boxctl config

  # One global value
  boxctl config theme

  # A module's inline config
  boxctl config greeting --module hello`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/config"
			if moduleID != "" {
				path = "/api/v1/modules/" + url.PathEscape(moduleID) + "/config"
			}
			if len(args) == 1 {
				path += "?name=" + url.QueryEscape(args[0])
			}

			var resp httpserver.ConfigResponse
			if err := c.do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&moduleID, "module", "", "read the config of the module element with this id")
	return cmd
}

func printConfig(w io.Writer, resp httpserver.ConfigResponse) error {
	if resp.Kind == "absent" {
		_, err := fmt.Fprintln(w, "(absent)")
		return err
	}
	out, err := json.MarshalIndent(resp.Value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format value: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func newBroadcastCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <name> [json-data]",
		Short: "Broadcast a message to every listening module",
		Long: `Broadcast a message through the application. The optional data argument
is parsed as JSON.

Examples:
  boxctl broadcast refresh
  boxctl broadcast link:clicked '{"href": "/docs"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httpserver.BroadcastRequest{Name: args[0]}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &req.Data); err != nil {
					return fmt.Errorf("data is not valid JSON: %w", err)
				}
			}

			var resp httpserver.StatusResponse
			if err := c.do(cmd.Context(), http.MethodPost, "/api/v1/broadcast", req, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", resp.Status, req.Name)
			return nil
		},
	}
}

func newNavigateCmd(c *client) *cobra.Command {
	var state, params string

	cmd := &cobra.Command{
		Use:   "navigate [url]",
		Short: "Ask the application to navigate",
		Long: `Navigate the application. Without a URL the current location is kept
and only state and params change.

Examples:
  boxctl navigate /docs
  boxctl navigate --state '{"tab": 2}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req httpserver.NavigateRequest
			if len(args) == 1 {
				req.URL = args[0]
			}
			if err := parseObject(state, &req.State); err != nil {
				return fmt.Errorf("--state: %w", err)
			}
			if err := parseObject(params, &req.Params); err != nil {
				return fmt.Errorf("--params: %w", err)
			}

			var resp httpserver.StatusResponse
			if err := c.do(cmd.Context(), http.MethodPost, "/api/v1/navigate", req, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "history state as a JSON object")
	cmd.Flags().StringVar(&params, "params", "", "navigation params as a JSON object")
	return cmd
}

// parseObject decodes a JSON object flag. An empty flag leaves out nil.
func parseObject(raw string, out *map[string]any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("not a JSON object: %w", err)
	}
	return nil
}

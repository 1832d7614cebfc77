package cmd

import (
	"context"
	"fmt"

	"mcpstudio/internal/app"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	// debug enables verbose logging across the application.
	debug bool

	// configPath names the YAML configuration file.
	configPath string

	// listen overrides server.listen from the configuration.
	listen string
}

// newServeCmd creates the serve command, the main command of mcpstudio.
func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mcpstudio HTTP server",
		Long: `Starts the HTTP server that manages MCP server connections.

Global servers from the configuration are connected in the background and
shared by every user. Servers configured per user in the server store are
connected when that user first makes a request and disconnected once they
disappear from the store.

Configuration:
  mcpstudio reads mcpstudio.yaml from the current directory unless --config
  names another file. The environment variables MCPSTUDIO_LISTEN,
  DATABASE_URL and MCP_SERVERS override the file.

The server shuts down gracefully on SIGINT or SIGTERM, stopping every MCP
server process it started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to the configuration file (default: ./mcpstudio.yaml)")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Address to listen on, overrides server.listen")
	return cmd
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg := app.NewConfig(opts.debug, opts.configPath, opts.listen, GetVersion())
	cfg.LogOutput = cmd.ErrOrStderr()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(ctx)
}

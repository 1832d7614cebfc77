package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

var rootCmd = &cobra.Command{
	Use:   "mcpstudio",
	Short: "Connect users to their MCP servers over HTTP",
	Long: `mcpstudio manages connections to Model Context Protocol servers on
behalf of many users and exposes their aggregated tools and resources
through a small HTTP API.`,
	SilenceUsage: true,
}

// SetVersion injects the build version, normally from main.
func SetVersion(v string) {
	rootCmd.Version = v
}

func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with ExitCodeError on failure.
func Execute() {
	rootCmd.SetVersionTemplate(versionTemplate())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

// versionTemplate renders --version the same way as the version command.
func versionTemplate() string {
	return `mcpstudio {{.Version}} (` + buildInfo() + ")\n"
}

func init() {
	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newServersCmd(),
	)
}

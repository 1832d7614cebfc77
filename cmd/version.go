package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// buildInfo describes the toolchain and platform the binary was built for.
func buildInfo() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// versionLine is printed by both `mcpstudio version` and `mcpstudio --version`.
func versionLine(v string) string {
	return fmt.Sprintf("mcpstudio %s (%s)\n", v, buildInfo())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mcpstudio version",
		Long:  `Prints the mcpstudio version together with the Go toolchain and platform it was built for.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionLine(rootCmd.Version))
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"io"

	"mcpstudio/internal/aggregator"
	"mcpstudio/internal/api"
	"mcpstudio/internal/config"
	"mcpstudio/internal/mcpserver"
	"mcpstudio/pkg/logging"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serversOptions struct {
	configPath string
	debug      bool
}

// newServersCmd groups commands that inspect the global server list.
func newServersCmd() *cobra.Command {
	opts := &serversOptions{}

	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Inspect the configured global MCP servers",
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the configuration file (default: ./mcpstudio.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the global MCP servers",
		Long: `Lists the global MCP servers defined in the mcpServers section of the
configuration file and in the MCP_SERVERS environment variable. Invalid
entries are reported after the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServersList(cmd, opts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Connect to every global MCP server and report its tools",
		Long: `Connects to each global MCP server, counts the tools and resources it
advertises and disconnects again. Stdio servers are started and stopped.

The command fails if any server could not be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServersCheck(cmd, opts)
		},
	})

	return cmd
}

func loadGlobals(cmd *cobra.Command, opts *serversOptions) (config.Config, []api.ServerDescriptor, *config.ConfigurationErrorCollection, error) {
	level := logging.LevelWarn
	if opts.debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	globals, errs := config.GlobalServers(cfg)
	return cfg, globals, errs, nil
}

func runServersList(cmd *cobra.Command, opts *serversOptions) error {
	_, globals, errs, err := loadGlobals(cmd, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(globals) == 0 {
		fmt.Fprintf(out, "%s\n", text.FgYellow.Sprint("No global MCP servers configured"))
	} else {
		t := newTable(out)
		t.AppendHeader(table.Row{"NAME", "TYPE", "ENDPOINT"})
		for _, desc := range globals {
			t.AppendRow(table.Row{desc.Name, desc.Transport, truncate(desc.Endpoint(), 80)})
		}
		t.Render()
	}

	printConfigErrors(out, errs)
	return nil
}

// checkResult is the outcome of probing one server.
type checkResult struct {
	desc      api.ServerDescriptor
	tools     int
	resources int
	err       error
}

func runServersCheck(cmd *cobra.Command, opts *serversOptions) error {
	cfg, globals, errs, err := loadGlobals(cmd, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(globals) == 0 {
		fmt.Fprintf(out, "%s\n", text.FgYellow.Sprint("No global MCP servers configured"))
		printConfigErrors(out, errs)
		return nil
	}

	manager := aggregator.NewConnectionManager(aggregator.ManagerOptions{
		Client: mcpserver.ClientOptions{
			ConnectTimeout:   cfg.MCP.ConnectTimeout,
			CloseGracePeriod: cfg.MCP.CloseGracePeriod,
			ClientName:       cfg.MCP.ClientName,
			ClientVersion:    GetVersion(),
		},
		CallTimeout: cfg.MCP.CallTimeout,
		MaxParallel: cfg.MCP.MaxParallel,
	})
	defer func() { _ = manager.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results := checkServers(ctx, manager, globals, cfg.MCP.MaxParallel)

	t := newTable(out)
	t.AppendHeader(table.Row{"NAME", "TYPE", "STATUS", "TOOLS", "RESOURCES", "ERROR"})
	failed := 0
	for _, r := range results {
		status := text.FgGreen.Sprint(api.StatusConnected)
		errMsg := ""
		if r.err != nil {
			failed++
			status = text.FgRed.Sprint(api.StatusDisconnected)
			errMsg = truncate(r.err.Error(), 80)
		}
		t.AppendRow(table.Row{r.desc.Name, r.desc.Transport, status, r.tools, r.resources, errMsg})
	}
	t.Render()
	printConfigErrors(out, errs)

	if failed > 0 {
		return fmt.Errorf("%d of %d servers failed", failed, len(results))
	}
	return nil
}

// checkServers connects each server, lists its catalog and returns results in
// the order of descs.
func checkServers(ctx context.Context, manager *aggregator.ConnectionManager, descs []api.ServerDescriptor, limit int) []checkResult {
	results := make([]checkResult, len(descs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, desc := range descs {
		g.Go(func() error {
			r := checkResult{desc: desc}
			if conn, err := manager.ConnectToServer(ctx, desc); err != nil {
				r.err = err
			} else {
				tools, err := conn.Tools(ctx)
				if err != nil {
					r.err = err
				}
				resources, _ := conn.Resources(ctx)
				r.tools, r.resources = len(tools), len(resources)
			}
			_ = manager.DisconnectServer(desc.Name)

			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

func printConfigErrors(out io.Writer, errs *config.ConfigurationErrorCollection) {
	if errs == nil || !errs.HasErrors() {
		return
	}
	fmt.Fprintf(out, "\n%s\n%s", text.FgYellow.Sprintf("%d invalid server entries skipped:", errs.Count()), errs.GetDetailedReport())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

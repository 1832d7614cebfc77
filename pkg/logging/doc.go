// Package logging provides the process-wide structured logger for mcpstudio.
//
// It is a thin layer over log/slog that tags every entry with a subsystem so
// that output from the connection manager, the transports and the HTTP layer
// can be told apart:
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//	logging.Info("Aggregator", "Connected to %s", name)
//	logging.Error("StdioClient", err, "Handshake failed for %s", name)
//
// Subsystems used in this repository:
//
//   - Bootstrap: application wiring and shutdown
//   - Config: configuration and global server loading
//   - Aggregator: connection registry and manager
//   - StdioClient, SSEClient, StreamableHTTPClient: transport adapters
//   - Reconciler: global and per-user reconciliation
//   - Store: user server configuration sources
//   - HTTP: route layer
//
// MCPLogger bridges mcp-go's transport logger interface onto the same output.
package logging

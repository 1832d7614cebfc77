// Package app wires mcpstudio together and runs it.
//
// NewApplication loads the YAML configuration (see internal/config), sets up
// logging and builds the Services: a Prometheus registry, the optional
// per-user server store, the aggregator.ConnectionManager, the
// reconciler.Coordinator holding the global server list, and the HTTP
// router from internal/server.
//
// Run listens on server.listen and blocks until the context is cancelled or
// the process receives SIGINT or SIGTERM. Shutdown drains in-flight HTTP
// requests, then disconnects every MCP server so no child process outlives
// the service.
package app

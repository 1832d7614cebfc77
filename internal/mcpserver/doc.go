// Package mcpserver provides the MCP client side of mcpstudio: one MCPClient
// per server, over stdio, SSE or streamable HTTP.
//
// # Overview
//
// NewMCPClient validates a descriptor and returns an uninitialized client for
// its transport. Initialize performs the protocol handshake, spawning the
// server process first for stdio. After that the client lists and calls tools,
// lists and reads resources, and pings. Done closes when the connection ends,
// and Err reports why.
//
// # Stdio Servers
//
// The child runs in its own process group with the parent environment plus
// the descriptor's env entries. Its stderr is drained into a bounded tail so
// that an unexpected exit can be reported with context. Close shuts stdin,
// sends SIGTERM to the group and escalates to SIGKILL after the grace period.
// A child that fails the handshake is killed at once.
//
// # Errors
//
// Every failure is mapped onto the api error types: UpstreamError for
// JSON-RPC errors returned by the server, TransportError for I/O and
// timeouts, ProcessExitError when a stdio child dies, and NotConnectedError
// once the client is closed.
package mcpserver

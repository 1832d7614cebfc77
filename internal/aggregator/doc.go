// Package aggregator manages the connections from mcpstudio to its MCP
// servers and merges their capabilities into one catalog.
//
// # Core Components
//
// ## ConnectionManager
//
// The ConnectionManager is the entry point. It connects to servers described
// by api.ServerDescriptor values, tracks which user owns which server, lists
// tools and resources across all ready connections and routes tool calls and
// resource reads to the right connection.
//
// Usage:
//
//	manager := aggregator.NewConnectionManager(aggregator.ManagerOptions{
//		Client:      mcpserver.ClientOptions{ConnectTimeout: 10 * time.Second},
//		CallTimeout: time.Minute,
//		Metrics:     aggregator.NewMetrics(prometheus.DefaultRegisterer),
//	})
//	defer manager.Close()
//
//	conn, err := manager.ConnectToServer(ctx, desc, aggregator.WithOwner("42"))
//	tools := manager.GetToolsForUser(ctx, "42")
//	result, err := manager.CallTool(ctx, desc.Name, "search", args)
//
// ## ServerRegistry
//
// The ServerRegistry maps server names to their current Connection and keeps
// an owner index from user IDs to server names. Its lock is never held across
// I/O.
//
// ## Connection
//
// A Connection is one generation of a connection to a server. It moves from
// connecting to ready or failed, from ready to failed when the process exits
// or the stream is lost, and to closed when disconnected. Tools and resources
// are listed on first use and cached for the lifetime of the Connection; a
// reconnect creates a new Connection with empty caches.
//
// # Concurrency
//
// Concurrent connects for the same name share one attempt through a
// singleflight group keyed by server name. The attempt runs on a detached
// context bounded by the connect timeout, so a caller whose request is
// cancelled simply stops waiting. A disconnect that lands while an attempt is
// in flight wins: the attempt closes its own client and reports
// api.NotConnectedError instead of re-registering the server.
//
// Catalog queries fan out over ready connections with bounded parallelism.
// A server that fails to answer is logged and omitted; the others are still
// returned, ordered by server name then item name.
//
// # Metrics
//
// NewMetrics registers Prometheus collectors for connect attempts and
// latency, the number of ready connections, and routed calls.
package aggregator

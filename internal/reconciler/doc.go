// Package reconciler decides which MCP servers should be connected.
//
// The Coordinator sits between the request path and the
// aggregator.ConnectionManager. It knows two sources of desired state:
//
//   - Global servers come from configuration. They are connected once per
//     process, the first time any request needs them, and shared by all
//     users. Globals that fail are retried in the background.
//   - User servers come from a store.ServerStore. Each request from an
//     identified user reconciles that user's entries: new or changed servers
//     are connected and servers that disappeared from the store are
//     disconnected.
//
// A server that fails to connect is never fatal to the request that
// triggered it. It keeps a failed registry entry, and is not re-spawned until
// the retry interval has passed or its configuration changes.
//
// Example usage:
//
//	coord := reconciler.New(reconciler.Options{
//	    Manager: manager,
//	    Store:   pgStore,
//	    Globals: globals,
//	})
//	if err := coord.EnsureForRequest(ctx, userID); err != nil {
//	    return err
//	}
//	tools := manager.GetToolsForUser(ctx, userID)
package reconciler

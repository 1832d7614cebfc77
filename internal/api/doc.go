// Package api holds the types shared by every mcpstudio package: server
// descriptors, the tool and resource descriptors that make up the aggregated
// catalog, connection states, and the error taxonomy.
//
// # Error taxonomy
//
// Every failure surfaced by the connection manager is one of:
//
//   - ConfigError: a descriptor is malformed; nothing was spawned
//   - TransportError: the server could not be reached or the stream broke
//   - NotConnectedError: no ready connection exists for the name
//   - UpstreamError: the server answered with a JSON-RPC error
//   - ProcessExitError: a stdio child exited
//
// Use the Is* helpers rather than type assertions; they see through wrapping:
//
//	if api.IsUpstreamError(err) {
//	    var up *api.UpstreamError
//	    errors.As(err, &up)
//	    log.Printf("code %d", up.Code)
//	}
//
// The package has no dependencies on other internal packages.
package api

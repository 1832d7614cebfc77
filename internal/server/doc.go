// Package server exposes the connection manager over HTTP.
//
// Routes:
//
//	GET  /api/mcp/servers         server statuses visible to the caller
//	GET  /api/mcp/tools           aggregated tool catalog
//	GET  /api/mcp/resources       aggregated resource catalog
//	POST /api/mcp/tools/call      {serverName, toolName, arguments}
//	POST /api/mcp/resources/read  {serverName, uri}
//	GET  /healthz
//	GET  /metrics
//
// The caller is identified by a trusted header set by an upstream
// authenticating proxy (X-User-Id by default). Requests without it are
// anonymous and see global servers only. Every /api/mcp request first asks
// the reconciler.Coordinator to bring the caller's connections up to date.
//
// Errors are returned as {"error": "..."} with 400 for malformed requests,
// 404 for servers that are not connected, 500 for errors reported by the
// server itself and 502 for transport failures.
package server

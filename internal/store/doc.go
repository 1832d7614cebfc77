// Package store reads the MCP servers each user has configured.
//
// Two implementations of ServerStore exist: PostgresStore, which queries the
// mcp_servers table through a pgx pool, and FileStore, which reads a YAML
// file and reloads it on change. Both return raw ServerRow values; ToDescriptor
// normalizes a row into an api.ServerDescriptor, tolerating a config column
// that arrives as an object, JSON text or bytes.
//
// User servers are registered under UserServerName(userID, name) so they
// never collide with global servers or with another user's servers.
package store

// Package config provides configuration management for mcpstudio.
//
// Configuration is read from a single YAML file, mcpstudio.yaml in the working
// directory unless --config names another one, and then overridden from the
// environment. A missing default file is not an error; defaults apply.
//
// # File Format
//
//	server:
//	  listen: ":8080"
//	  userHeader: X-User-Id
//	store:
//	  type: postgres        # none, postgres or file
//	  databaseURL: postgres://mcpstudio@localhost/mcpstudio
//	mcp:
//	  connectTimeout: 10s
//	  closeGracePeriod: 3s
//	  callTimeout: 60s
//	  retryInterval: 30s
//	  maxParallel: 8
//	logging:
//	  level: info
//	  format: text
//	mcpServers:
//	  filesystem:
//	    command: npx -y @modelcontextprotocol/server-filesystem /srv
//	  search:
//	    url: https://search.example.com/mcp
//	    headers:
//	      Authorization: Bearer abc
//
// # Environment
//
//   - MCPSTUDIO_LISTEN overrides server.listen
//   - DATABASE_URL overrides store.databaseURL and selects the postgres store
//   - MCP_SERVERS holds a JSON server blob merged over mcpServers
//
// # Global Servers
//
// GlobalServers combines both sources. Each blob may take one of three
// shapes: {"mcpServers": {name: entry}}, {name: entry} or a list of entries
// carrying a name. Entries that fail to parse or validate are skipped and
// reported as ConfigurationError values; one bad entry never prevents the
// others from loading.
package config

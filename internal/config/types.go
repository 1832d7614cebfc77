package config

import "time"

// Config is the top-level configuration structure for mcpstudio.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	MCP     MCPConfig     `yaml:"mcp"`
	Logging LoggingConfig `yaml:"logging"`

	// MCPServers holds the global server definitions in any of the shapes
	// accepted by ParseServers.
	MCPServers interface{} `yaml:"mcpServers,omitempty"`

	// ServersJSON is the raw MCP_SERVERS environment blob. It is never read
	// from the file.
	ServersJSON string `yaml:"-"`

	// path is the file the configuration was read from, if any.
	path string
}

// Path returns the file the configuration was loaded from, or "".
func (c Config) Path() string {
	return c.path
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen     string `yaml:"listen"`     // Address to listen on (default: ":8080")
	UserHeader string `yaml:"userHeader"` // Trusted header carrying the authenticated user id (default: "X-User-Id")
}

// StoreType selects where per-user server configurations are read from.
type StoreType string

const (
	StoreNone     StoreType = "none"
	StorePostgres StoreType = "postgres"
	StoreFile     StoreType = "file"
)

// StoreConfig configures the per-user server store.
type StoreConfig struct {
	Type        StoreType `yaml:"type"`                  // none, postgres or file (default: none)
	DatabaseURL string    `yaml:"databaseURL,omitempty"` // Postgres connection string
	Path        string    `yaml:"path,omitempty"`        // YAML file for the file store
}

// MCPConfig tunes connection handling.
type MCPConfig struct {
	ConnectTimeout   time.Duration `yaml:"connectTimeout"`   // Spawn/dial plus handshake (default: 10s)
	CloseGracePeriod time.Duration `yaml:"closeGracePeriod"` // SIGTERM to SIGKILL (default: 3s)
	CallTimeout      time.Duration `yaml:"callTimeout"`      // Applied when a request has no deadline (default: 60s)
	RetryInterval    time.Duration `yaml:"retryInterval"`    // Minimum time between attempts for a failed server (default: 30s)
	MaxParallel      int           `yaml:"maxParallel"`      // Catalog fan-out (default: 8)
	ClientName       string        `yaml:"clientName"`       // Announced in the handshake (default: "mcpstudio")
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error (default: info)
	Format string `yaml:"format"` // text or json (default: text)
}

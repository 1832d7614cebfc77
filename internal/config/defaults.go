package config

import "time"

const (
	DefaultListen           = ":8080"
	DefaultUserHeader       = "X-User-Id"
	DefaultConnectTimeout   = 10 * time.Second
	DefaultCloseGracePeriod = 3 * time.Second
	DefaultCallTimeout      = 60 * time.Second
	DefaultRetryInterval    = 30 * time.Second
	DefaultMaxParallel      = 8
	DefaultClientName       = "mcpstudio"
)

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:     DefaultListen,
			UserHeader: DefaultUserHeader,
		},
		Store: StoreConfig{
			Type: StoreNone,
		},
		MCP: MCPConfig{
			ConnectTimeout:   DefaultConnectTimeout,
			CloseGracePeriod: DefaultCloseGracePeriod,
			CallTimeout:      DefaultCallTimeout,
			RetryInterval:    DefaultRetryInterval,
			MaxParallel:      DefaultMaxParallel,
			ClientName:       DefaultClientName,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

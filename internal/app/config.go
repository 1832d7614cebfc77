package app

import (
	"io"

	"mcpstudio/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath is the YAML file to load. Empty means config.DefaultConfigFile
	// in the working directory, which may be absent.
	ConfigPath string

	// Listen overrides server.listen when set.
	Listen string

	// Version is announced to MCP servers in the handshake.
	Version string

	// LogOutput receives log output. Defaults to stderr.
	LogOutput io.Writer

	// AppConfig is populated during bootstrap.
	AppConfig *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath, listen, version string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Listen:     listen,
		Version:    version,
	}
}

package config

import (
	"errors"
	"fmt"
	"os"

	"mcpstudio/pkg/logging"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "mcpstudio.yaml"

// Environment variables that override the file.
const (
	EnvListen      = "MCPSTUDIO_LISTEN"
	EnvDatabaseURL = "DATABASE_URL"
	EnvServers     = "MCP_SERVERS"
)

// getenv is swapped out in tests.
var getenv = os.Getenv

// LoadConfig loads the configuration from path, applies environment
// overrides and validates the result.
//
// An empty path means DefaultConfigFile in the working directory, which may
// be missing; an explicitly named file must exist.
func LoadConfig(path string) (Config, error) {
	config := GetDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			// config malformed
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		config.path = path
		logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	case errors.Is(err, os.ErrNotExist) && !explicit:
		logging.Debug("ConfigLoader", "No %s found, using defaults", path)
	default:
		return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	applyEnv(&config)

	if err := Validate(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	if listen := getenv(EnvListen); listen != "" {
		config.Server.Listen = listen
	}
	if dsn := getenv(EnvDatabaseURL); dsn != "" {
		config.Store.DatabaseURL = dsn
		if config.Store.Type == "" || config.Store.Type == StoreNone {
			config.Store.Type = StorePostgres
		}
	}
	if servers := getenv(EnvServers); servers != "" {
		config.ServersJSON = servers
	}
}

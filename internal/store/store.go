package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"mcpstudio/internal/api"
	"mcpstudio/internal/config"
)

// ServerRow is one user-configured server as stored.
type ServerRow struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`

	// Config holds command, args, env, url and headers. It may arrive as a
	// decoded object, as JSON text or as raw JSON bytes.
	Config interface{} `yaml:"config" json:"config"`

	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ServerStore reads the servers users have configured. mcpstudio never
// writes to it.
type ServerStore interface {
	// ListEnabledServers returns the enabled rows of userID, ordered by name.
	ListEnabledServers(ctx context.Context, userID string) ([]ServerRow, error)
}

// UserServerName returns the registry key of a user's server. The prefix
// keeps user servers from colliding with global servers and with each other.
func UserServerName(userID, name string) string {
	return "user:" + userID + ":" + name
}

// DecodeServerConfig normalizes the config column into an object.
// JSON text that itself contains a JSON string is decoded twice.
func DecodeServerConfig(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	case []byte:
		return decodeConfigText(v)
	case string:
		return decodeConfigText([]byte(v))
	case json.RawMessage:
		return decodeConfigText(v)
	default:
		// Round trip anything else, such as typed structs.
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported config value %T: %w", raw, err)
		}
		return decodeConfigText(data)
	}
}

func decodeConfigText(data []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]interface{}{}, nil
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("config is not valid JSON: %w", err)
	}
	switch v := decoded.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	case string:
		return decodeConfigText([]byte(v))
	default:
		return nil, fmt.Errorf("config must be a JSON object, got %T", decoded)
	}
}

// ToDescriptor converts a row of userID into a validated descriptor named
// UserServerName(userID, row.Name). The row's type takes precedence over a
// type inside the config.
func ToDescriptor(userID string, row ServerRow) (api.ServerDescriptor, error) {
	name := UserServerName(userID, row.Name)
	if row.Name == "" {
		return api.ServerDescriptor{}, api.NewConfigError(name, "name", "server name is required")
	}

	fields, err := DecodeServerConfig(row.Config)
	if err != nil {
		return api.ServerDescriptor{}, api.NewConfigError(name, "config", err.Error())
	}

	if row.Type != "" {
		merged := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["type"] = row.Type
		fields = merged
	}

	return config.DescriptorFromEntry(name, fields)
}

package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"mcpstudio/internal/api"
	"mcpstudio/pkg/logging"
)

// SourceEnv is the ConfigurationError source for entries read from MCP_SERVERS.
const SourceEnv = "MCP_SERVERS"

// GlobalServers returns the global server descriptors defined in the
// mcpServers section of the file and in the MCP_SERVERS blob. Entries from
// the environment replace file entries of the same name. Invalid entries are
// skipped and reported in the returned collection.
func GlobalServers(cfg Config) ([]api.ServerDescriptor, *ConfigurationErrorCollection) {
	errs := NewConfigurationErrorCollection()
	byName := make(map[string]api.ServerDescriptor)

	if cfg.MCPServers != nil {
		source := cfg.path
		if source == "" {
			source = "config"
		}
		descs, fileErrs := ParseServers(cfg.MCPServers, source)
		errs.Merge(fileErrs)
		for _, desc := range descs {
			byName[desc.Name] = desc
		}
	}

	if strings.TrimSpace(cfg.ServersJSON) != "" {
		descs, envErrs := ParseServersJSON([]byte(cfg.ServersJSON), SourceEnv)
		errs.Merge(envErrs)
		for _, desc := range descs {
			if _, ok := byName[desc.Name]; ok {
				logging.Debug("Config", "MCP_SERVERS overrides server %s", desc.Name)
			}
			byName[desc.Name] = desc
		}
	}

	result := make([]api.ServerDescriptor, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		result = append(result, byName[name])
	}
	return result, errs
}

// ParseServersJSON decodes a JSON server blob and parses it like ParseServers.
func ParseServersJSON(data []byte, source string) ([]api.ServerDescriptor, *ConfigurationErrorCollection) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		errs := NewConfigurationErrorCollection()
		errs.Add(ConfigurationError{
			Source:      source,
			ErrorType:   ErrorTypeParse,
			Message:     fmt.Sprintf("invalid JSON: %v", err),
			Suggestions: []string{`Use {"mcpServers": {"name": {"command": "..."}}}`},
		})
		return nil, errs
	}
	return ParseServers(raw, source)
}

// ParseServers turns decoded JSON or YAML into server descriptors. Three
// shapes are accepted:
//
//	{"mcpServers": {"name": {...}}}
//	{"name": {...}}
//	[{"name": "name", ...}]
//
// Each entry has the keys command, args, env, url, type and headers. The
// result is sorted by name.
func ParseServers(raw interface{}, source string) ([]api.ServerDescriptor, *ConfigurationErrorCollection) {
	errs := NewConfigurationErrorCollection()
	var descs []api.ServerDescriptor

	add := func(name string, entry interface{}) {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			errs.AddError(source, name, ErrorTypeParse, fmt.Sprintf("entry must be an object, got %T", entry))
			return
		}
		desc, err := DescriptorFromEntry(name, fields)
		if err != nil {
			errs.AddError(source, name, ErrorTypeValidation, err.Error())
			return
		}
		descs = append(descs, desc)
	}

	switch v := raw.(type) {
	case nil:
	case map[string]interface{}:
		if inner, ok := v["mcpServers"]; ok {
			innerMap, ok := inner.(map[string]interface{})
			if !ok {
				errs.AddError(source, "", ErrorTypeParse, fmt.Sprintf("mcpServers must be an object, got %T", inner))
				return nil, errs
			}
			v = innerMap
		}
		for _, name := range slices.Sorted(maps.Keys(v)) {
			add(name, v[name])
		}
	case []interface{}:
		seen := make(map[string]bool)
		for i, item := range v {
			fields, ok := item.(map[string]interface{})
			if !ok {
				errs.AddError(source, "", ErrorTypeParse, fmt.Sprintf("entry %d must be an object, got %T", i, item))
				continue
			}
			name, _ := fields["name"].(string)
			if name == "" {
				errs.AddError(source, "", ErrorTypeValidation, fmt.Sprintf("entry %d has no name", i))
				continue
			}
			if seen[name] {
				errs.AddError(source, name, ErrorTypeValidation, "duplicate server name")
				continue
			}
			seen[name] = true
			add(name, fields)
		}
		slices.SortFunc(descs, func(a, b api.ServerDescriptor) int {
			return strings.Compare(a.Name, b.Name)
		})
	default:
		errs.AddError(source, "", ErrorTypeParse, fmt.Sprintf("servers must be an object or a list, got %T", raw))
	}

	for _, err := range errs.Errors {
		logging.Warn("Config", "Skipping MCP server: %s", err.Error())
	}
	return descs, errs
}

// DescriptorFromEntry builds and validates a descriptor from one decoded
// entry. command may be a list or a string. A string is the executable itself
// when args is present, so paths with spaces survive; without args it is
// split on whitespace. args are appended to the command. When type is missing it is inferred: a command means
// stdio, a URL ending in /sse means SSE, any other URL streamable HTTP.
func DescriptorFromEntry(name string, entry map[string]interface{}) (api.ServerDescriptor, error) {
	desc := api.ServerDescriptor{Name: name}

	typ, err := stringField(name, entry, "type")
	if err != nil {
		return desc, err
	}
	if typ == "" {
		if typ, err = stringField(name, entry, "transport"); err != nil {
			return desc, err
		}
	}
	kind, err := api.ParseTransportKind(typ)
	if err != nil {
		return desc, api.NewConfigError(name, "type", err.Error())
	}

	switch command := entry["command"].(type) {
	case nil:
	case string:
		if rawArgs, ok := entry["args"]; ok && rawArgs != nil {
			if command = strings.TrimSpace(command); command != "" {
				desc.Command = []string{command}
			}
		} else {
			desc.Command = strings.Fields(command)
		}
	case []interface{}:
		if desc.Command, err = toStrings(name, "command", command); err != nil {
			return desc, err
		}
	default:
		return desc, api.NewConfigError(name, "command", fmt.Sprintf("must be a string or a list, got %T", command))
	}

	if rawArgs, ok := entry["args"]; ok && rawArgs != nil {
		list, ok := rawArgs.([]interface{})
		if !ok {
			return desc, api.NewConfigError(name, "args", fmt.Sprintf("must be a list, got %T", rawArgs))
		}
		args, err := toStrings(name, "args", list)
		if err != nil {
			return desc, err
		}
		desc.Command = append(desc.Command, args...)
	}
	if len(desc.Command) == 0 {
		desc.Command = nil
	}

	if desc.URL, err = stringField(name, entry, "url"); err != nil {
		return desc, err
	}
	if desc.Env, err = stringMapField(name, entry, "env"); err != nil {
		return desc, err
	}
	if desc.Headers, err = stringMapField(name, entry, "headers"); err != nil {
		return desc, err
	}

	if kind == "" {
		kind = inferTransport(desc)
	}
	desc.Transport = kind

	return desc, desc.Validate()
}

func inferTransport(desc api.ServerDescriptor) api.TransportKind {
	switch {
	case len(desc.Command) > 0:
		return api.TransportStdio
	case strings.HasSuffix(strings.TrimRight(desc.URL, "/"), "/sse"):
		return api.TransportSSE
	case desc.URL != "":
		return api.TransportHTTP
	default:
		return ""
	}
}

func stringField(server string, entry map[string]interface{}, key string) (string, error) {
	switch v := entry[key].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", api.NewConfigError(server, key, fmt.Sprintf("must be a string, got %T", v))
	}
}

func toStrings(server, field string, list []interface{}) ([]string, error) {
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, api.NewConfigError(server, field, fmt.Sprintf("must contain only strings, got %T", item))
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMapField(server string, entry map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := entry[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, api.NewConfigError(server, key, fmt.Sprintf("must be an object, got %T", raw))
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool, int, int64, float64:
			out[k] = fmt.Sprint(val)
		default:
			return nil, api.NewConfigError(server, key, fmt.Sprintf("value of %s must be a scalar, got %T", k, v))
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

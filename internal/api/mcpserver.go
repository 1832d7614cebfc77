package api

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// TransportKind defines how an MCP server is reached.
type TransportKind string

const (
	// TransportStdio runs the server as a child process speaking
	// line-delimited JSON-RPC over stdin/stdout.
	TransportStdio TransportKind = "stdio"
	// TransportSSE connects to a remote server over Server-Sent Events.
	TransportSSE TransportKind = "sse"
	// TransportHTTP connects to a remote server over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// ParseTransportKind maps the spellings accepted in configuration onto a
// TransportKind. An empty value yields "" so callers can infer the kind.
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "stdio", "local", "localcommand":
		return TransportStdio, nil
	case "sse":
		return TransportSSE, nil
	case "http", "streamable-http", "streamablehttp", "streamable_http":
		return TransportHTTP, nil
	default:
		return "", fmt.Errorf("unsupported transport %q", s)
	}
}

// ServerDescriptor is the immutable description of one MCP server: how to
// reach it and what to call it in the registry.
type ServerDescriptor struct {
	// Name is the registry key. It is unique across the process.
	Name string `yaml:"name" json:"name"`

	Transport TransportKind `yaml:"type" json:"type"`

	// Command holds the executable followed by its arguments. Stdio only.
	Command []string `yaml:"command,omitempty" json:"command,omitempty"`

	// Env is merged over the parent environment when spawning. Stdio only.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// URL is the remote endpoint. SSE and HTTP only.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Headers are sent with every request. SSE and HTTP only.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Validate checks that exactly one of Command or URL is populated and that it
// matches the transport kind.
func (d ServerDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return NewConfigError(d.Name, "name", "server name is required")
	}

	switch d.Transport {
	case TransportStdio:
		if len(d.Command) == 0 || strings.TrimSpace(d.Command[0]) == "" {
			return NewConfigError(d.Name, "command", "stdio server requires a command")
		}
		if d.URL != "" {
			return NewConfigError(d.Name, "url", "stdio server must not set a url")
		}
	case TransportSSE, TransportHTTP:
		if d.URL == "" {
			return NewConfigError(d.Name, "url", fmt.Sprintf("%s server requires a url", d.Transport))
		}
		if len(d.Command) > 0 {
			return NewConfigError(d.Name, "command", fmt.Sprintf("%s server must not set a command", d.Transport))
		}
		u, err := url.Parse(d.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewConfigError(d.Name, "url", fmt.Sprintf("invalid url %q", d.URL))
		}
	case "":
		return NewConfigError(d.Name, "type", "transport type is required")
	default:
		return NewConfigError(d.Name, "type", fmt.Sprintf("unsupported transport %q", d.Transport))
	}

	return nil
}

// Equal reports whether two descriptors describe the same server. Map order
// is irrelevant.
func (d ServerDescriptor) Equal(other ServerDescriptor) bool {
	return d.Name == other.Name &&
		d.Transport == other.Transport &&
		d.URL == other.URL &&
		slices.Equal(d.Command, other.Command) &&
		maps.Equal(d.Env, other.Env) &&
		maps.Equal(d.Headers, other.Headers)
}

// Endpoint returns a short human readable target: the command line for stdio,
// the URL otherwise.
func (d ServerDescriptor) Endpoint() string {
	if d.Transport == TransportStdio {
		return strings.Join(d.Command, " ")
	}
	return d.URL
}

// ToolDescriptor is a tool as advertised by one server. Its identity is the
// pair (ServerName, Name).
type ToolDescriptor struct {
	ServerName  string `json:"serverName"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// InputSchema is passed through verbatim.
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ResourceDescriptor is a resource as advertised by one server.
type ResourceDescriptor struct {
	ServerName  string `json:"serverName"`
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// ConnectionState is the lifecycle state of a registry entry.
type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateReady      ConnectionState = "ready"
	StateFailed     ConnectionState = "failed"
	StateClosed     ConnectionState = "closed"
)

// ServerStatus is the externally visible summary of one registry entry.
type ServerStatus struct {
	Name string `json:"name"`
	// Status is "connected" when the entry is ready and "disconnected" otherwise.
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Transport TransportKind `json:"transport,omitempty"`
	Owner     string        `json:"owner,omitempty"`
}

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

package mcpserver

import (
	"fmt"
	"net/http"
	"time"

	"mcpstudio/internal/api"
)

// ClientOptions holds the knobs shared by every transport.
type ClientOptions struct {
	// ConnectTimeout bounds the spawn and handshake when the caller's context
	// carries no deadline.
	ConnectTimeout time.Duration
	// CloseGracePeriod is the time between SIGTERM and SIGKILL. Stdio only.
	CloseGracePeriod time.Duration
	// ClientName and ClientVersion are announced in the handshake.
	ClientName    string
	ClientVersion string
	// HTTPClient replaces the default client for remote transports.
	HTTPClient *http.Client
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultStdioInitTimeout
	}
	if o.CloseGracePeriod <= 0 {
		o.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if o.ClientName == "" {
		o.ClientName = "mcpstudio"
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "dev"
	}
	return o
}

// NewMCPClient creates the appropriate MCP client for desc.
// The descriptor is validated first; nothing is spawned or dialed until
// Initialize is called on the returned client.
//
// Supported transports:
//   - "stdio": a StdioClient owning a child process
//   - "sse": an SSEClient
//   - "http": a StreamableHTTPClient
func NewMCPClient(desc api.ServerDescriptor, opts ClientOptions) (MCPClient, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	switch desc.Transport {
	case api.TransportStdio:
		return NewStdioClient(desc.Name, desc.Command, desc.Env, opts), nil
	case api.TransportSSE:
		return NewSSEClient(desc.Name, desc.URL, desc.Headers, opts), nil
	case api.TransportHTTP:
		return NewStreamableHTTPClient(desc.Name, desc.URL, desc.Headers, opts), nil
	default:
		return nil, fmt.Errorf("unsupported MCP server type: %s (supported: %s, %s, %s)",
			desc.Transport, api.TransportStdio, api.TransportSSE, api.TransportHTTP)
	}
}

// Factory creates clients. The connection manager takes one so tests can
// substitute fakes.
type Factory func(desc api.ServerDescriptor, opts ClientOptions) (MCPClient, error)

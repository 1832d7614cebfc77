package mcpserver

import (
	"context"
	"fmt"

	"mcpstudio/internal/api"
	"mcpstudio/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// StreamableHTTPClient implements the MCPClient interface using StreamableHTTP transport.
// It connects to remote MCP servers using HTTP with streaming support.
type StreamableHTTPClient struct {
	baseMCPClient
	url     string
	headers map[string]string
	opts    ClientOptions
}

// NewStreamableHTTPClient creates a new StreamableHTTP-based MCP client
func NewStreamableHTTPClient(name, url string, headers map[string]string, opts ClientOptions) *StreamableHTTPClient {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &StreamableHTTPClient{
		baseMCPClient: newBaseMCPClient(name),
		url:           url,
		headers:       headers,
		opts:          opts.withDefaults(),
	}
}

// Initialize establishes the connection and performs protocol handshake
func (c *StreamableHTTPClient) Initialize(ctx context.Context) error {
	if done, err := c.beginInitialize(); done || err != nil {
		return err
	}

	logging.Debug("StreamableHTTPClient", "Creating StreamableHTTP client for %s at %s", c.name, c.url)

	opts := []transport.StreamableHTTPCOption{
		transport.WithHTTPLogger(logging.NewMCPLogger("StreamableHTTPClient")),
	}
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(c.headers))
		logging.Debug("StreamableHTTPClient", "Configured %d custom headers", len(c.headers))
	}
	if c.opts.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPBasicClient(c.opts.HTTPClient))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return api.NewConfigError(c.name, "url", fmt.Sprintf("failed to create StreamableHTTP client: %v", err))
	}

	initCtx, cancel := handshakeContext(ctx, c.opts.ConnectTimeout)
	defer cancel()

	if err := mcpClient.Start(context.Background()); err != nil {
		return api.NewTransportError(c.name, "connect", err)
	}

	initResult, err := mcpClient.Initialize(initCtx, initializeRequest(c.opts))
	if err != nil {
		_ = mcpClient.Close()
		return api.NewTransportError(c.name, "initialize", handshakeErr(initCtx, err))
	}

	if err := c.setConnected(mcpClient); err != nil {
		_ = mcpClient.Close()
		return err
	}

	logging.Debug("StreamableHTTPClient", "StreamableHTTP client initialized for %s. Server: %s, Version: %s",
		c.name, initResult.ServerInfo.Name, initResult.ServerInfo.Version)

	return nil
}

// Close cleanly shuts down the client connection
func (c *StreamableHTTPClient) Close() error {
	return c.closeClient()
}

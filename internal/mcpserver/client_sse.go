package mcpserver

import (
	"context"
	"fmt"

	"mcpstudio/internal/api"
	"mcpstudio/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// SSEClient implements the MCPClient interface using SSE transport.
// It connects to remote MCP servers using Server-Sent Events for communication.
type SSEClient struct {
	baseMCPClient
	url     string
	headers map[string]string
	opts    ClientOptions

	cancelStream context.CancelFunc
}

// NewSSEClient creates a new SSE-based MCP client
func NewSSEClient(name, url string, headers map[string]string, opts ClientOptions) *SSEClient {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &SSEClient{
		baseMCPClient: newBaseMCPClient(name),
		url:           url,
		headers:       headers,
		opts:          opts.withDefaults(),
	}
}

// Initialize opens the event stream and performs the protocol handshake.
// The stream lives on its own context so that it outlives ctx.
func (c *SSEClient) Initialize(ctx context.Context) error {
	if done, err := c.beginInitialize(); done || err != nil {
		return err
	}

	logging.Debug("SSEClient", "Creating SSE client for %s at %s", c.name, c.url)

	opts := []transport.ClientOption{
		transport.WithSSELogger(logging.NewMCPLogger("SSEClient")),
	}
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHeaders(c.headers))
		logging.Debug("SSEClient", "Configured %d custom headers", len(c.headers))
	}
	if c.opts.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPClient(c.opts.HTTPClient))
	}

	mcpClient, err := client.NewSSEMCPClient(c.url, opts...)
	if err != nil {
		return api.NewConfigError(c.name, "url", fmt.Sprintf("failed to create SSE client: %v", err))
	}

	initCtx, cancel := handshakeContext(ctx, c.opts.ConnectTimeout)
	defer cancel()

	streamCtx, cancelStream := context.WithCancel(context.Background())
	// Abort the stream if the handshake is abandoned before it completes.
	stop := context.AfterFunc(initCtx, cancelStream)
	defer stop()

	if err := mcpClient.Start(streamCtx); err != nil {
		cancelStream()
		return api.NewTransportError(c.name, "connect", handshakeErr(initCtx, err))
	}

	mcpClient.OnConnectionLost(func(err error) {
		logging.Warn("SSEClient", "Event stream for %s lost: %v", c.name, err)
		c.markDone(api.NewTransportError(c.name, "stream", err))
	})

	initResult, err := mcpClient.Initialize(initCtx, initializeRequest(c.opts))
	if err != nil {
		_ = mcpClient.Close()
		cancelStream()
		return api.NewTransportError(c.name, "initialize", handshakeErr(initCtx, err))
	}

	if !stop() {
		// initCtx ended between the handshake and here.
		_ = mcpClient.Close()
		return api.NewTransportError(c.name, "initialize", handshakeErr(initCtx, context.Canceled))
	}

	if err := c.setConnected(mcpClient); err != nil {
		_ = mcpClient.Close()
		cancelStream()
		return err
	}

	c.mu.Lock()
	c.cancelStream = cancelStream
	c.mu.Unlock()

	logging.Debug("SSEClient", "SSE client initialized for %s. Server: %s, Version: %s",
		c.name, initResult.ServerInfo.Name, initResult.ServerInfo.Version)

	return nil
}

// Close cleanly shuts down the client connection
func (c *SSEClient) Close() error {
	c.mu.Lock()
	cancelStream := c.cancelStream
	c.cancelStream = nil
	c.mu.Unlock()

	err := c.closeClient()
	if cancelStream != nil {
		cancelStream()
	}
	return err
}

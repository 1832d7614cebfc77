package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mcpstudio/internal/api"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient is one connection to an MCP server, whatever its transport.
type MCPClient interface {
	// Initialize establishes the connection and performs protocol handshake
	Initialize(ctx context.Context) error
	// Close cleanly shuts down the client connection. It is idempotent.
	Close() error
	// ListTools returns all available tools from the server
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	// CallTool executes a specific tool and returns the result
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	// ListResources returns all available resources from the server
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	// ReadResource retrieves a specific resource
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	// Ping checks if the server is responsive
	Ping(ctx context.Context) error
	// Done is closed when the connection ends for any reason
	Done() <-chan struct{}
	// Err reports why Done was closed. It is nil after an explicit Close.
	Err() error
}

// Compile-time interface compliance checks
var (
	_ MCPClient = (*StdioClient)(nil)
	_ MCPClient = (*SSEClient)(nil)
	_ MCPClient = (*StreamableHTTPClient)(nil)
)

// errConnectionEnded is the cancellation cause used when an in-flight request
// is aborted because the connection went away underneath it.
var errConnectionEnded = errors.New("connection ended")

// baseMCPClient holds the connection state shared by every transport and
// implements the request methods of MCPClient on top of an initialized
// mcp-go client. Transports embed it and supply Initialize and Close.
//
// The lock only guards state; it is never held across a request.
type baseMCPClient struct {
	name string

	client    client.MCPClient
	mu        sync.RWMutex
	connected bool
	closed    bool

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

func newBaseMCPClient(name string) baseMCPClient {
	return baseMCPClient{
		name: name,
		done: make(chan struct{}),
	}
}

// beginInitialize reports whether Initialize has nothing left to do, or an
// error if the client was already closed.
func (b *baseMCPClient) beginInitialize() (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false, api.NewNotConnectedError(b.name)
	}
	return b.connected, nil
}

// Done is closed when the connection ends.
func (b *baseMCPClient) Done() <-chan struct{} {
	return b.done
}

// Err reports why the connection ended.
func (b *baseMCPClient) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// markDone records cause (if it is the first) and closes the done channel.
func (b *baseMCPClient) markDone(cause error) {
	b.doneOnce.Do(func() {
		b.mu.Lock()
		b.err = cause
		b.connected = false
		b.mu.Unlock()
		close(b.done)
	})
}

// acquire returns the live client or a NotConnectedError.
func (b *baseMCPClient) acquire() (client.MCPClient, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.connected || b.client == nil {
		err := api.NewNotConnectedError(b.name)
		if b.err != nil {
			err.Reason = b.err.Error()
		}
		return nil, err
	}
	return b.client, nil
}

// requestContext derives a context for one request that is also cancelled
// when the connection ends.
func (b *baseMCPClient) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	go func() {
		select {
		case <-b.done:
			cancel(errConnectionEnded)
		case <-stop:
		case <-reqCtx.Done():
		}
	}()
	return reqCtx, func() {
		close(stop)
		cancel(context.Canceled)
	}
}

// classify maps an mcp-go error onto the api error taxonomy.
func (b *baseMCPClient) classify(ctx, reqCtx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(context.Cause(reqCtx), errConnectionEnded) {
		if cause := b.Err(); cause != nil {
			return cause
		}
		return api.NewNotConnectedError(b.name)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return api.NewTransportError(b.name, op, ctxErr)
	}

	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		select {
		case <-b.done:
			if cause := b.Err(); cause != nil {
				return cause
			}
		default:
		}
		return api.NewTransportError(b.name, op, transportErr.Err)
	}

	return upstreamError(b.name, err)
}

// upstreamError recovers the JSON-RPC error code from the sentinel errors
// mcp-go produces for server error responses.
func upstreamError(server string, err error) *api.UpstreamError {
	codes := []struct {
		sentinel error
		code     int
	}{
		{mcp.ErrParseError, mcp.PARSE_ERROR},
		{mcp.ErrInvalidRequest, mcp.INVALID_REQUEST},
		{mcp.ErrMethodNotFound, mcp.METHOD_NOT_FOUND},
		{mcp.ErrInvalidParams, mcp.INVALID_PARAMS},
		{mcp.ErrInternalError, mcp.INTERNAL_ERROR},
		{mcp.ErrRequestInterrupted, mcp.REQUEST_INTERRUPTED},
		{mcp.ErrResourceNotFound, mcp.RESOURCE_NOT_FOUND},
	}
	for _, c := range codes {
		if errors.Is(err, c.sentinel) {
			return api.NewUpstreamError(server, c.code, err.Error())
		}
	}
	// mcp-go drops codes it does not know about.
	return api.NewUpstreamError(server, mcp.INTERNAL_ERROR, err.Error())
}

// closeClient performs the common close logic
func (b *baseMCPClient) closeClient() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	c := b.client
	b.client = nil
	b.connected = false
	b.mu.Unlock()

	b.markDone(nil)

	if c == nil {
		return nil
	}
	return c.Close()
}

// setConnected publishes the initialized client.
func (b *baseMCPClient) setConnected(c client.MCPClient) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return api.NewNotConnectedError(b.name)
	}
	b.client = c
	b.connected = true
	return nil
}

// ListTools returns all available tools from the server
func (b *baseMCPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c, err := b.acquire()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := b.requestContext(ctx)
	defer cancel()

	var tools []mcp.Tool
	req := mcp.ListToolsRequest{}
	for {
		result, err := c.ListTools(reqCtx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", b.classify(ctx, reqCtx, "tools/list", err))
		}
		tools = append(tools, result.Tools...)
		if result.NextCursor == "" {
			return tools, nil
		}
		req.Params.Cursor = result.NextCursor
	}
}

// CallTool executes a specific tool and returns the result
func (b *baseMCPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c, err := b.acquire()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := b.requestContext(ctx)
	defer cancel()

	result, err := c.CallTool(reqCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s: %w", name, b.classify(ctx, reqCtx, "tools/call", err))
	}

	return result, nil
}

// ListResources returns all available resources from the server
func (b *baseMCPClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	c, err := b.acquire()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := b.requestContext(ctx)
	defer cancel()

	var resources []mcp.Resource
	req := mcp.ListResourcesRequest{}
	for {
		result, err := c.ListResources(reqCtx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to list resources: %w", b.classify(ctx, reqCtx, "resources/list", err))
		}
		resources = append(resources, result.Resources...)
		if result.NextCursor == "" {
			return resources, nil
		}
		req.Params.Cursor = result.NextCursor
	}
}

// ReadResource retrieves a specific resource
func (b *baseMCPClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	c, err := b.acquire()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := b.requestContext(ctx)
	defer cancel()

	result, err := c.ReadResource(reqCtx, mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", uri, b.classify(ctx, reqCtx, "resources/read", err))
	}

	return result, nil
}

// Ping checks if the server is responsive
func (b *baseMCPClient) Ping(ctx context.Context) error {
	c, err := b.acquire()
	if err != nil {
		return err
	}

	reqCtx, cancel := b.requestContext(ctx)
	defer cancel()

	if err := c.Ping(reqCtx); err != nil {
		return b.classify(ctx, reqCtx, "ping", err)
	}
	return nil
}

// initializeRequest builds the handshake request sent by every transport.
func initializeRequest(opts ClientOptions) mcp.InitializeRequest {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    opts.ClientName,
		Version: opts.ClientVersion,
	}
	req.Params.Capabilities = mcp.ClientCapabilities{}
	return req
}

// handshakeContext bounds the handshake by timeout unless ctx already
// carries a deadline.
func handshakeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// handshakeErr prefers the handshake context's error when it explains the failure.
func handshakeErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// Package fake provides an in-memory MCP client and a client factory for
// tests that exercise the connection manager without spawning processes.
//
//	factory := fake.NewFactory()
//	factory.Configure("flaky", func(c *fake.Client) { c.InitErr = errors.New("refused") })
//	manager := aggregator.NewConnectionManager(aggregator.ManagerOptions{Factory: factory.New})
package fake

import (
	"context"
	"sync"
	"sync/atomic"

	"mcpstudio/internal/api"
	"mcpstudio/internal/mcpserver"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tools with built-in behaviour on every Client.
const (
	// ToolFail returns an UpstreamError with code INVALID_PARAMS.
	ToolFail = "fail"
	// ToolSleep blocks until the call's context ends.
	ToolSleep = "sleep"
)

// Client is an in-memory mcpserver.MCPClient. Calling any tool other than
// the built-in ones returns the text "<tool> from <server>".
type Client struct {
	Name      string
	Tools     []mcp.Tool
	Resources []mcp.Resource

	// Block, when set, holds Initialize until it is closed.
	Block chan struct{}
	// ListBlock, when set, holds ListTools and ListResources until it is
	// closed or the request's context ends.
	ListBlock chan struct{}
	InitErr   error
	ListErr   error

	ListCalls  atomic.Int32
	CloseCalls atomic.Int32

	mu       sync.Mutex
	ready    bool
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
	err      error
}

var _ mcpserver.MCPClient = (*Client)(nil)

// NewClient creates a client for server name exposing one tool, "echo",
// and one resource, "fake://<name>/readme".
func NewClient(name string) *Client {
	return &Client{
		Name:      name,
		Tools:     []mcp.Tool{mcp.NewTool("echo", mcp.WithDescription("echo of "+name))},
		Resources: []mcp.Resource{mcp.NewResource(ResourceURI(name), name+" readme")},
		done:      make(chan struct{}),
	}
}

// ResourceURI is the URI of the resource a Client exposes.
func ResourceURI(name string) string {
	return "fake://" + name + "/readme"
}

func (c *Client) Initialize(ctx context.Context) error {
	if c.Block != nil {
		select {
		case <-c.Block:
		case <-ctx.Done():
			return api.NewTransportError(c.Name, "initialize", ctx.Err())
		}
	}
	if c.InitErr != nil {
		return c.InitErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return api.NewNotConnectedError(c.Name)
	}
	c.ready = true
	return nil
}

func (c *Client) Close() error {
	c.CloseCalls.Add(1)
	c.mu.Lock()
	c.closed = true
	c.ready = false
	c.mu.Unlock()
	c.finish(nil)
	return nil
}

// Exit simulates the connection ending on its own with cause.
func (c *Client) Exit(cause error) {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	c.finish(cause)
}

func (c *Client) finish(cause error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()
		close(c.done)
	})
}

// IsClosed reports whether Close was called.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return api.NewNotConnectedError(c.Name)
	}
	return nil
}

func (c *Client) waitList(ctx context.Context) error {
	if c.ListBlock != nil {
		select {
		case <-c.ListBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.check()
}

func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.ListCalls.Add(1)
	if err := c.waitList(ctx); err != nil {
		return nil, err
	}
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	return c.Tools, nil
}

func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	switch name {
	case ToolFail:
		return nil, api.NewUpstreamError(c.Name, mcp.INVALID_PARAMS, "bad arguments")
	case ToolSleep:
		<-ctx.Done()
		return nil, api.NewTransportError(c.Name, "tools/call", ctx.Err())
	}
	return mcp.NewToolResultText(name + " from " + c.Name), nil
}

func (c *Client) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	c.ListCalls.Add(1)
	if err := c.waitList(ctx); err != nil {
		return nil, err
	}
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	return c.Resources, nil
}

func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{
			mcp.TextResourceContents{URI: uri, Text: "contents of " + uri},
		},
	}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.check()
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Factory builds Clients and remembers every one it built.
type Factory struct {
	mu      sync.Mutex
	setup   map[string]func(*Client)
	created map[string][]*Client
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		setup:   make(map[string]func(*Client)),
		created: make(map[string][]*Client),
	}
}

// Configure registers fn to run on every client built for server name.
func (f *Factory) Configure(name string, fn func(*Client)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setup[name] = fn
}

// New satisfies mcpserver.Factory.
func (f *Factory) New(desc api.ServerDescriptor, _ mcpserver.ClientOptions) (mcpserver.MCPClient, error) {
	c := NewClient(desc.Name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn := f.setup[desc.Name]; fn != nil {
		fn(c)
	}
	f.created[desc.Name] = append(f.created[desc.Name], c)
	return c, nil
}

// Count returns how many clients were built for name.
func (f *Factory) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created[name])
}

// Last returns the most recent client built for name, or nil.
func (f *Factory) Last(name string) *Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	clients := f.created[name]
	if len(clients) == 0 {
		return nil
	}
	return clients[len(clients)-1]
}

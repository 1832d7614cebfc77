package aggregator

import (
	"context"
	"sync"
	"time"

	"mcpstudio/internal/api"
	"mcpstudio/internal/mcpserver"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/singleflight"
)

// Connection is one generation of a connection to an MCP server.
//
// A reconnect always creates a fresh Connection, so the cached tools and
// resources never outlive the client that produced them. Closed connections
// are removed from the registry and never reused.
type Connection struct {
	// ID identifies this generation of the connection.
	ID string

	Descriptor api.ServerDescriptor

	// OwnerUserID is the user that owns the server, or "" for global servers.
	OwnerUserID string

	Client mcpserver.MCPClient

	mu          sync.RWMutex
	state       api.ConnectionState
	lastError   error
	connectedAt time.Time

	// Cached capabilities, filled on first use
	tools       []mcp.Tool
	toolsOK     bool
	resources   []mcp.Resource
	resourcesOK bool
	fill        singleflight.Group
	// listTimeout bounds a shared fill, which outlives any single caller
	listTimeout time.Duration
}

func newConnection(desc api.ServerDescriptor, owner string, client mcpserver.MCPClient) *Connection {
	return &Connection{
		ID:          uuid.NewString(),
		Descriptor:  desc,
		OwnerUserID: owner,
		Client:      client,
		state:       api.StateConnecting,
		listTimeout: DefaultCallTimeout,
	}
}

// Name returns the registry key of the connection.
func (c *Connection) Name() string {
	return c.Descriptor.Name
}

// State returns the current lifecycle state.
func (c *Connection) State() api.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsReady reports whether the connection can serve requests.
func (c *Connection) IsReady() bool {
	return c.State() == api.StateReady
}

// LastError returns the error that moved the connection to failed, if any.
func (c *Connection) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// ConnectedAt returns when the handshake completed. Zero until ready.
func (c *Connection) ConnectedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectedAt
}

// promote moves a connecting connection to ready.
func (c *Connection) promote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != api.StateConnecting {
		return false
	}
	c.state = api.StateReady
	c.connectedAt = time.Now()
	return true
}

// fail records err and moves the connection to failed. It returns the
// previous state and false when the connection was already closed.
func (c *Connection) fail(err error) (api.ConnectionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	if prev == api.StateClosed {
		return prev, false
	}
	c.state = api.StateFailed
	c.lastError = err
	return prev, true
}

// markClosed moves the connection to closed and returns the previous state.
func (c *Connection) markClosed() api.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = api.StateClosed
	return prev
}

// Status summarizes the connection for status listings.
func (c *Connection) Status() api.ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := api.ServerStatus{
		Name:      c.Descriptor.Name,
		Status:    api.StatusDisconnected,
		Transport: c.Descriptor.Transport,
		Owner:     c.OwnerUserID,
	}
	if c.state == api.StateReady {
		status.Status = api.StatusConnected
	}
	if c.lastError != nil {
		status.Error = c.lastError.Error()
	}
	return status
}

// Tools returns the server's tools, listing them on first use. Concurrent
// first callers share a single tools/list request. Failures are not cached.
func (c *Connection) Tools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.RLock()
	if c.toolsOK {
		tools := c.tools
		c.mu.RUnlock()
		return tools, nil
	}
	c.mu.RUnlock()

	v, err := c.shared(ctx, "tools", func(fillCtx context.Context) (interface{}, error) {
		tools, err := c.Client.ListTools(fillCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tools = tools
		c.toolsOK = true
		c.mu.Unlock()
		return tools, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]mcp.Tool), nil
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from ctx and bounded by listTimeout, so one caller giving up does
// not fail the others; that caller alone returns ctx.Err().
func (c *Connection) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.fill.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.listTimeout)
		defer cancel()
		return fn(fillCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resources returns the server's resources, listing them on first use.
func (c *Connection) Resources(ctx context.Context) ([]mcp.Resource, error) {
	c.mu.RLock()
	if c.resourcesOK {
		resources := c.resources
		c.mu.RUnlock()
		return resources, nil
	}
	c.mu.RUnlock()

	v, err := c.shared(ctx, "resources", func(fillCtx context.Context) (interface{}, error) {
		resources, err := c.Client.ListResources(fillCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.resources = resources
		c.resourcesOK = true
		c.mu.Unlock()
		return resources, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]mcp.Resource), nil
}

package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mcpstudio/internal/api"
	"mcpstudio/internal/mcpserver"
	"mcpstudio/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCallTimeout bounds tool calls and resource reads whose context
	// carries no deadline.
	DefaultCallTimeout = 60 * time.Second

	// DefaultMaxParallel bounds how many servers are listed at once.
	DefaultMaxParallel = 8
)

// ManagerOptions configures a ConnectionManager.
type ManagerOptions struct {
	// Client is passed to the factory for every new client.
	Client mcpserver.ClientOptions

	// CallTimeout applies to CallTool and ReadResource when the caller's
	// context has no deadline. The server is not told to stop working when
	// it fires.
	CallTimeout time.Duration

	// MaxParallel bounds the fan-out of GetAllTools and GetAllResources.
	MaxParallel int

	// Factory creates clients. Defaults to mcpserver.NewMCPClient.
	Factory mcpserver.Factory

	// Metrics is optional.
	Metrics *Metrics
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.Client.ConnectTimeout <= 0 {
		o.Client.ConnectTimeout = mcpserver.DefaultStdioInitTimeout
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = DefaultMaxParallel
	}
	if o.Factory == nil {
		o.Factory = mcpserver.NewMCPClient
	}
	return o
}

// ConnectOption adjusts a single ConnectToServer call.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	owner string
}

// WithOwner records userID as the owner of the server. Servers without an
// owner are global.
func WithOwner(userID string) ConnectOption {
	return func(o *connectOptions) {
		o.owner = userID
	}
}

// ConnectionManager establishes, tracks and tears down connections to MCP
// servers, aggregates their catalogs and routes calls to them.
//
// Concurrent ConnectToServer calls for the same name share one attempt, so a
// burst of requests spawns a single process. The attempt runs on its own
// context bounded by the connect timeout: a caller that gives up stops
// waiting but does not abort the attempt for everybody else.
type ConnectionManager struct {
	opts     ManagerOptions
	registry *ServerRegistry
	flights  singleflight.Group
	closed   atomic.Bool
}

// NewConnectionManager creates a manager with an empty registry.
func NewConnectionManager(opts ManagerOptions) *ConnectionManager {
	return &ConnectionManager{
		opts:     opts.withDefaults(),
		registry: NewServerRegistry(),
	}
}

// Registry exposes the underlying registry for inspection.
func (m *ConnectionManager) Registry() *ServerRegistry {
	return m.registry
}

// ConnectToServer returns a ready connection for desc, connecting if needed.
//
// A ready entry with an identical descriptor is returned as is. A ready
// entry whose descriptor changed is disconnected and replaced. Failed
// entries are replaced by a fresh attempt.
//
// Args:
//   - ctx: Bounds how long this caller waits; it does not cancel the shared attempt
//   - desc: The server to connect to
//   - opts: Optional settings such as WithOwner
//
// Returns:
//   - *Connection: The ready connection, shared by all concurrent callers
//   - error: ConfigError, TransportError, or NotConnectedError when the
//     entry was disconnected while connecting
func (m *ConnectionManager) ConnectToServer(ctx context.Context, desc api.ServerDescriptor, opts ...ConnectOption) (*Connection, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		return nil, &api.NotConnectedError{Server: desc.Name, Reason: "connection manager is closed"}
	}

	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}

	if conn := m.registry.Get(desc.Name); conn != nil && conn.IsReady() && conn.Descriptor.Equal(desc) {
		return conn, nil
	}

	ch := m.flights.DoChan(desc.Name, func() (interface{}, error) {
		return m.connect(desc, o.owner)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Connection), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for connection to %s: %w", desc.Name, ctx.Err())
	}
}

// connect runs one connection attempt. It is only ever called from inside
// the flight for desc.Name.
func (m *ConnectionManager) connect(desc api.ServerDescriptor, owner string) (*Connection, error) {
	if existing := m.registry.Get(desc.Name); existing != nil {
		if existing.IsReady() && existing.Descriptor.Equal(desc) {
			return existing, nil
		}
		if m.registry.removeIf(existing) {
			if existing.IsReady() {
				logging.Info("Aggregator", "Configuration of %s changed, reconnecting", desc.Name)
			}
			m.closeConnection(existing)
		}
	}

	start := time.Now()
	transport := string(desc.Transport)

	client, err := m.opts.Factory(desc, m.opts.Client)
	if err != nil {
		m.opts.Metrics.observeConnect(transport, time.Since(start).Seconds(), err)
		return nil, err
	}

	conn := newConnection(desc, owner, client)
	conn.listTimeout = m.opts.CallTimeout
	m.registry.put(conn)

	logging.Debug("Aggregator", "Connecting to %s (%s %s)", desc.Name, desc.Transport, desc.Endpoint())

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Client.ConnectTimeout)
	defer cancel()

	err = client.Initialize(ctx)
	m.opts.Metrics.observeConnect(transport, time.Since(start).Seconds(), err)
	if err != nil {
		_ = client.Close()
		if _, ok := conn.fail(err); !ok || m.registry.Get(desc.Name) != conn {
			return nil, &api.NotConnectedError{Server: desc.Name, Reason: "disconnected while connecting"}
		}
		logging.Error("Aggregator", err, "Failed to connect to MCP server %s", desc.Name)
		return nil, fmt.Errorf("failed to connect to %s: %w", desc.Name, err)
	}

	if m.closed.Load() || !m.registry.promote(conn) {
		m.registry.removeIf(conn)
		conn.markClosed()
		_ = client.Close()
		return nil, &api.NotConnectedError{Server: desc.Name, Reason: "disconnected while connecting"}
	}
	m.opts.Metrics.readyInc()

	go m.watch(conn)

	logging.Info("Aggregator", "Connected to MCP server %s in %s", desc.Name, time.Since(start).Round(time.Millisecond))
	return conn, nil
}

// watch moves conn to failed when its client ends on its own.
func (m *ConnectionManager) watch(conn *Connection) {
	<-conn.Client.Done()

	cause := conn.Client.Err()
	if cause == nil {
		return
	}
	prev, ok := conn.fail(cause)
	if !ok {
		return
	}
	if prev == api.StateReady {
		m.opts.Metrics.readyDec()
	}
	logging.Warn("Aggregator", "Connection to %s lost: %v", conn.Name(), cause)
}

func (m *ConnectionManager) closeConnection(conn *Connection) {
	if prev := conn.markClosed(); prev == api.StateReady {
		m.opts.Metrics.readyDec()
	}
	if err := conn.Client.Close(); err != nil {
		logging.Warn("Aggregator", "Error closing client for %s: %v", conn.Name(), err)
	}
}

// DisconnectServer closes the connection registered under name and removes
// it. Disconnecting an unknown name is a no-op.
func (m *ConnectionManager) DisconnectServer(name string) error {
	conn := m.registry.remove(name)
	if conn == nil {
		return nil
	}
	m.closeConnection(conn)
	logging.Info("Aggregator", "Disconnected MCP server %s", name)
	return nil
}

// IsConnected reports whether name has a ready connection.
func (m *ConnectionManager) IsConnected(name string) bool {
	conn := m.registry.Get(name)
	return conn != nil && conn.IsReady()
}

// GetConnectedServers returns the names of all ready connections, sorted.
func (m *ConnectionManager) GetConnectedServers() []string {
	var names []string
	for _, conn := range m.registry.Snapshot() {
		if conn.IsReady() {
			names = append(names, conn.Name())
		}
	}
	return names
}

// GetServerStatuses returns the status of every registry entry, sorted by name.
func (m *ConnectionManager) GetServerStatuses() []api.ServerStatus {
	conns := m.registry.Snapshot()
	statuses := make([]api.ServerStatus, 0, len(conns))
	for _, conn := range conns {
		statuses = append(statuses, conn.Status())
	}
	return statuses
}

// GetServerStatusesForUser returns the statuses of global servers and of
// servers owned by userID.
func (m *ConnectionManager) GetServerStatusesForUser(userID string) []api.ServerStatus {
	var statuses []api.ServerStatus
	for _, conn := range m.registry.Snapshot() {
		if visibleTo(conn, userID) {
			statuses = append(statuses, conn.Status())
		}
	}
	return statuses
}

func visibleTo(conn *Connection, userID string) bool {
	return conn.OwnerUserID == "" || conn.OwnerUserID == userID
}

func (m *ConnectionManager) readyConnections(filter func(*Connection) bool) []*Connection {
	var conns []*Connection
	for _, conn := range m.registry.Snapshot() {
		if conn.IsReady() && (filter == nil || filter(conn)) {
			conns = append(conns, conn)
		}
	}
	return conns
}

// GetAllTools lists the tools of every ready server. A server that fails to
// answer is logged and left out.
func (m *ConnectionManager) GetAllTools(ctx context.Context) []api.ToolDescriptor {
	return m.collectTools(ctx, m.readyConnections(nil))
}

// GetToolsForUser lists the tools of global servers and of servers owned by
// userID.
func (m *ConnectionManager) GetToolsForUser(ctx context.Context, userID string) []api.ToolDescriptor {
	return m.collectTools(ctx, m.readyConnections(func(c *Connection) bool { return visibleTo(c, userID) }))
}

// GetAllResources lists the resources of every ready server, fail-soft.
func (m *ConnectionManager) GetAllResources(ctx context.Context) []api.ResourceDescriptor {
	return m.collectResources(ctx, m.readyConnections(nil))
}

// GetResourcesForUser lists the resources of global servers and of servers
// owned by userID.
func (m *ConnectionManager) GetResourcesForUser(ctx context.Context, userID string) []api.ResourceDescriptor {
	return m.collectResources(ctx, m.readyConnections(func(c *Connection) bool { return visibleTo(c, userID) }))
}

func (m *ConnectionManager) collectTools(ctx context.Context, conns []*Connection) []api.ToolDescriptor {
	perServer := make([][]api.ToolDescriptor, len(conns))

	var g errgroup.Group
	g.SetLimit(m.opts.MaxParallel)
	for i, conn := range conns {
		g.Go(func() error {
			tools, err := conn.Tools(ctx)
			if err != nil {
				logging.Warn("Aggregator", "Failed to list tools of %s: %v", conn.Name(), err)
				return nil
			}
			descs := make([]api.ToolDescriptor, 0, len(tools))
			for _, tool := range tools {
				descs = append(descs, toolDescriptor(conn.Name(), tool))
			}
			perServer[i] = descs
			return nil
		})
	}
	_ = g.Wait()

	all := slices.Concat(perServer...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ServerName != all[j].ServerName {
			return all[i].ServerName < all[j].ServerName
		}
		return all[i].Name < all[j].Name
	})
	return all
}

func (m *ConnectionManager) collectResources(ctx context.Context, conns []*Connection) []api.ResourceDescriptor {
	perServer := make([][]api.ResourceDescriptor, len(conns))

	var g errgroup.Group
	g.SetLimit(m.opts.MaxParallel)
	for i, conn := range conns {
		g.Go(func() error {
			resources, err := conn.Resources(ctx)
			if err != nil {
				logging.Warn("Aggregator", "Failed to list resources of %s: %v", conn.Name(), err)
				return nil
			}
			descs := make([]api.ResourceDescriptor, 0, len(resources))
			for _, r := range resources {
				descs = append(descs, api.ResourceDescriptor{
					ServerName:  conn.Name(),
					URI:         r.URI,
					Name:        r.Name,
					Description: r.Description,
					MIMEType:    r.MIMEType,
				})
			}
			perServer[i] = descs
			return nil
		})
	}
	_ = g.Wait()

	all := slices.Concat(perServer...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ServerName != all[j].ServerName {
			return all[i].ServerName < all[j].ServerName
		}
		return all[i].Name < all[j].Name
	})
	return all
}

func toolDescriptor(server string, tool mcp.Tool) api.ToolDescriptor {
	schema := tool.RawInputSchema
	if len(schema) == 0 {
		if raw, err := json.Marshal(tool.InputSchema); err == nil {
			schema = raw
		}
	}
	return api.ToolDescriptor{
		ServerName:  server,
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schema,
	}
}

func (m *ConnectionManager) readyConnection(name string) (*Connection, error) {
	conn := m.registry.Get(name)
	if conn == nil {
		return nil, api.NewNotConnectedError(name)
	}
	if !conn.IsReady() {
		err := &api.NotConnectedError{Server: name, Reason: string(conn.State())}
		if last := conn.LastError(); last != nil {
			err.Reason = last.Error()
		}
		return nil, err
	}
	return conn, nil
}

func (m *ConnectionManager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.opts.CallTimeout)
}

// CallTool routes a tool call to the named server. Errors returned by the
// server itself come back as *api.UpstreamError.
func (m *ConnectionManager) CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	conn, err := m.readyConnection(serverName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.callContext(ctx)
	defer cancel()

	logging.Debug("Aggregator", "Calling tool %s on %s", toolName, serverName)
	result, err := conn.Client.CallTool(ctx, toolName, args)
	m.opts.Metrics.observeToolCall(err)
	return result, err
}

// ReadResource reads uri from the named server.
func (m *ConnectionManager) ReadResource(ctx context.Context, serverName, uri string) (*mcp.ReadResourceResult, error) {
	conn, err := m.readyConnection(serverName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.callContext(ctx)
	defer cancel()

	result, err := conn.Client.ReadResource(ctx, uri)
	m.opts.Metrics.observeResourceRead(err)
	return result, err
}

// TrackUserServer records that userID owns the server called name.
func (m *ConnectionManager) TrackUserServer(userID, name string) {
	m.registry.Track(userID, name)
}

// CleanupUserServers disconnects the servers tracked for userID that are not
// in current and returns their names, sorted.
func (m *ConnectionManager) CleanupUserServers(userID string, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, name := range current {
		keep[name] = struct{}{}
	}

	var stale []string
	for _, name := range m.registry.Owned(userID) {
		if _, ok := keep[name]; ok {
			continue
		}
		stale = append(stale, name)
		m.registry.Untrack(userID, name)
		_ = m.DisconnectServer(name)
	}

	if len(stale) > 0 {
		logging.Info("Aggregator", "Removed %d stale servers of user %s: %v", len(stale), userID, stale)
	}
	return stale
}

// Close disconnects every server. Connects attempted afterwards fail.
func (m *ConnectionManager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	var wg sync.WaitGroup
	for _, conn := range m.registry.Snapshot() {
		if m.registry.remove(conn.Name()) != conn {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.closeConnection(conn)
		}()
	}
	wg.Wait()

	logging.Info("Aggregator", "Connection manager closed")
	return nil
}

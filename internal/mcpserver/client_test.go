package mcpserver

import (
	"errors"
	"testing"
	"time"

	"mcpstudio/internal/api"

	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMCPClient tests the factory function for creating MCP clients
func TestNewMCPClient(t *testing.T) {
	tests := []struct {
		name     string
		desc     api.ServerDescriptor
		wantType interface{}
		wantErr  bool
	}{
		{
			name:     "stdio",
			desc:     api.ServerDescriptor{Name: "a", Transport: api.TransportStdio, Command: []string{"echo", "hello"}},
			wantType: &StdioClient{},
		},
		{
			name:     "sse",
			desc:     api.ServerDescriptor{Name: "b", Transport: api.TransportSSE, URL: "http://localhost:8080/sse"},
			wantType: &SSEClient{},
		},
		{
			name:     "http",
			desc:     api.ServerDescriptor{Name: "c", Transport: api.TransportHTTP, URL: "http://localhost:8080/mcp"},
			wantType: &StreamableHTTPClient{},
		},
		{
			name:    "stdio missing command",
			desc:    api.ServerDescriptor{Name: "d", Transport: api.TransportStdio},
			wantErr: true,
		},
		{
			name:    "unknown transport",
			desc:    api.ServerDescriptor{Name: "e", Transport: "carrier-pigeon", URL: "http://x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewMCPClient(tt.desc, ClientOptions{})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, api.IsConfigError(err))
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, c)
		})
	}
}

func TestClientOptionsDefaults(t *testing.T) {
	opts := ClientOptions{}.withDefaults()
	assert.Equal(t, DefaultStdioInitTimeout, opts.ConnectTimeout)
	assert.Equal(t, DefaultCloseGracePeriod, opts.CloseGracePeriod)
	assert.Equal(t, "mcpstudio", opts.ClientName)

	custom := ClientOptions{ConnectTimeout: time.Second, ClientName: "x"}.withDefaults()
	assert.Equal(t, time.Second, custom.ConnectTimeout)
	assert.Equal(t, "x", custom.ClientName)
}

// TestClientOperationsWithoutConnection tests that all operations fail with
// NotConnectedError before Initialize
func TestClientOperationsWithoutConnection(t *testing.T) {
	clients := map[string]MCPClient{
		"StdioClient":          NewStdioClient("s", []string{"echo"}, nil, ClientOptions{}),
		"StreamableHTTPClient": NewStreamableHTTPClient("h", "http://example.com/mcp", nil, ClientOptions{}),
		"SSEClient":            NewSSEClient("e", "http://example.com/sse", nil, ClientOptions{}),
	}

	for name, c := range clients {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, err := c.ListTools(ctx)
			assert.True(t, api.IsNotConnected(err))

			_, err = c.CallTool(ctx, "test", nil)
			assert.True(t, api.IsNotConnected(err))

			_, err = c.ListResources(ctx)
			assert.True(t, api.IsNotConnected(err))

			_, err = c.ReadResource(ctx, "test://resource")
			assert.True(t, api.IsNotConnected(err))

			assert.True(t, api.IsNotConnected(c.Ping(ctx)))
		})
	}
}

// TestCloseBeforeInitialize verifies Close is idempotent and that a closed
// client cannot be initialized afterwards
func TestCloseBeforeInitialize(t *testing.T) {
	c := NewSSEClient("e", "http://example.com/sse", nil, ClientOptions{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
	assert.NoError(t, c.Err())
	assert.True(t, api.IsNotConnected(c.Initialize(t.Context())))
}

func TestUpstreamErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid params", (&mcp.JSONRPCErrorDetails{Code: mcp.INVALID_PARAMS, Message: "missing path"}).AsError(), mcp.INVALID_PARAMS},
		{"method not found", (&mcp.JSONRPCErrorDetails{Code: mcp.METHOD_NOT_FOUND, Message: "nope"}).AsError(), mcp.METHOD_NOT_FOUND},
		{"resource not found", (&mcp.JSONRPCErrorDetails{Code: mcp.RESOURCE_NOT_FOUND, Message: "gone"}).AsError(), mcp.RESOURCE_NOT_FOUND},
		{"internal", (&mcp.JSONRPCErrorDetails{Code: mcp.INTERNAL_ERROR, Message: "boom"}).AsError(), mcp.INTERNAL_ERROR},
		{"unknown code", (&mcp.JSONRPCErrorDetails{Code: -32099, Message: "custom"}).AsError(), mcp.INTERNAL_ERROR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := upstreamError("srv", tt.err)
			assert.Equal(t, tt.wantCode, up.Code)
			assert.Equal(t, "srv", up.Server)
			assert.NotEmpty(t, up.Message)
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	b := newBaseMCPClient("srv")
	ctx := t.Context()
	reqCtx, cancel := b.requestContext(ctx)
	defer cancel()

	err := b.classify(ctx, reqCtx, "tools/call", transport.NewError(errors.New("connection refused")))
	assert.True(t, api.IsTransportError(err))
	assert.False(t, api.IsUpstreamError(err))
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root", "TOKEN=old"}
	got := mergeEnv(base, map[string]string{"TOKEN": "new", "DEBUG": "1"})

	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "DEBUG=1", "TOKEN=new"}, got)
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(2)
	tb.add("one")
	tb.add("two")
	tb.add("three")
	assert.Equal(t, "two\nthree", tb.String())
}

package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"mcpstudio/internal/api"
	"mcpstudio/internal/mcpserver"
	"mcpstudio/internal/testing/mock"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run real child processes through the default factory.

func newStdioManager(t *testing.T) *ConnectionManager {
	t.Helper()
	m := NewConnectionManager(ManagerOptions{
		Client: mcpserver.ClientOptions{ConnectTimeout: 10 * time.Second},
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func stdioPID(t *testing.T, conn *Connection) int {
	t.Helper()
	client, ok := conn.Client.(*mcpserver.StdioClient)
	require.True(t, ok)
	return client.PID()
}

func TestStdio_ConcurrentConnectSpawnsOneProcess(t *testing.T) {
	m := newStdioManager(t)
	desc := mock.StdioDescriptor("fs", mock.ModeServe, "read_file")

	var wg sync.WaitGroup
	conns := make([]*Connection, 5)
	for i := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := m.ConnectToServer(context.Background(), desc)
			assert.NoError(t, err)
			conns[i] = conn
		}()
	}
	wg.Wait()

	require.NotNil(t, conns[0])
	pid := stdioPID(t, conns[0])
	for _, conn := range conns {
		assert.Same(t, conns[0], conn)
		assert.Equal(t, pid, stdioPID(t, conn))
	}
}

func TestStdio_CatalogAndRouting(t *testing.T) {
	m := newStdioManager(t)

	_, err := m.ConnectToServer(t.Context(), mock.StdioDescriptor("alpha", mock.ModeServe, "ping"))
	require.NoError(t, err)
	_, err = m.ConnectToServer(t.Context(), mock.StdioDescriptor("beta", mock.ModeServe, "pong"))
	require.NoError(t, err)

	var names []string
	for _, tool := range m.GetAllTools(t.Context()) {
		names = append(names, tool.ServerName+"/"+tool.Name)
	}
	assert.Contains(t, names, "alpha/ping")
	assert.Contains(t, names, "beta/pong")
	assert.NotContains(t, names, "alpha/pong")

	result, err := m.CallTool(t.Context(), "beta", "pong", map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "pong from beta: hi", mcp.GetTextFromContent(result.Content[0]))

	resources := m.GetAllResources(t.Context())
	require.Len(t, resources, 2)
	assert.Equal(t, mock.ResourceURI("alpha"), resources[0].URI)
}

func TestStdio_ProcessExitFailsConnection(t *testing.T) {
	m := newStdioManager(t)
	desc := mock.StdioDescriptor("crashy", mock.ModeServe)

	conn, err := m.ConnectToServer(t.Context(), desc)
	require.NoError(t, err)
	firstPID := stdioPID(t, conn)

	_, err = m.CallTool(t.Context(), "crashy", mock.ToolCrash, nil)
	require.Error(t, err)
	assert.True(t, api.IsProcessExit(err), "got %v", err)

	require.Eventually(t, func() bool { return !m.IsConnected("crashy") }, 5*time.Second, 10*time.Millisecond)

	_, err = m.CallTool(t.Context(), "crashy", "anything", nil)
	assert.True(t, api.IsNotConnected(err))

	fresh, err := m.ConnectToServer(t.Context(), desc)
	require.NoError(t, err)
	assert.NotEqual(t, firstPID, stdioPID(t, fresh))
}

func TestStdio_DisconnectReapsProcess(t *testing.T) {
	m := newStdioManager(t)

	conn, err := m.ConnectToServer(t.Context(), mock.StdioDescriptor("fs", mock.ModeServe))
	require.NoError(t, err)
	client := conn.Client.(*mcpserver.StdioClient)

	require.NoError(t, m.DisconnectServer("fs"))

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client still running after disconnect")
	}
	assert.NoError(t, client.Err())
}

func TestStdio_HandshakeTimeoutReturnsPromptly(t *testing.T) {
	m := NewConnectionManager(ManagerOptions{
		Client: mcpserver.ClientOptions{
			ConnectTimeout:   300 * time.Millisecond,
			CloseGracePeriod: 10 * time.Second,
		},
	})
	t.Cleanup(func() { _ = m.Close() })

	start := time.Now()
	_, err := m.ConnectToServer(t.Context(), mock.StdioDescriptor("stubborn", mock.ModeHangIgnoreTerm))
	elapsed := time.Since(start)
	require.Error(t, err)
	assert.True(t, api.IsTransportError(err), "got %v", err)
	assert.Less(t, elapsed, 300*time.Millisecond+2*time.Second)
	assert.False(t, m.IsConnected("stubborn"))
}

package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mcpstudio/internal/config"
	"mcpstudio/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvListen, "")
	t.Setenv(config.EnvDatabaseURL, "")
	t.Setenv(config.EnvServers, "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcpstudio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestConfig(path string) *Config {
	cfg := NewConfig(false, path, "", "test")
	cfg.LogOutput = io.Discard
	return cfg
}

func TestNewApplication(t *testing.T) {
	clearEnv(t)
	usersPath := filepath.Join(t.TempDir(), "users.yaml")
	path := writeConfig(t, `
server:
  listen: 127.0.0.1:9999
store:
  type: file
  path: `+usersPath+`
mcp:
  connectTimeout: 5s
mcpServers:
  filesystem:
    command: npx -y @modelcontextprotocol/server-filesystem /tmp
  broken:
    type: stdio
`)

	application, err := NewApplication(t.Context(), newTestConfig(path))
	require.NoError(t, err)
	services := application.Services()
	t.Cleanup(func() { _ = services.Close() })

	assert.Equal(t, "127.0.0.1:9999", services.Config.Server.Listen)
	assert.Equal(t, 5*time.Second, services.Config.MCP.ConnectTimeout)

	globals := services.Coordinator.Globals()
	require.Len(t, globals, 1)
	assert.Equal(t, "filesystem", globals[0].Name)

	_, ok := services.Store.(*store.FileStore)
	assert.True(t, ok)
	assert.NotNil(t, services.Server)
}

func TestNewApplication_ListenOverride(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  listen: :7000\n")

	cfg := newTestConfig(path)
	cfg.Listen = "127.0.0.1:7001"
	application, err := NewApplication(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Services().Close() })

	assert.Equal(t, "127.0.0.1:7001", application.Services().Config.Server.Listen)
	assert.Nil(t, application.Services().Store)
}

func TestNewApplication_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "missing explicit file", path: filepath.Join(t.TempDir(), "absent.yaml")},
		{name: "malformed yaml", path: writeConfig(t, "server: [")},
		{name: "invalid setting", path: writeConfig(t, "store:\n  type: redis\n")},
		{name: "unreadable store", path: writeConfig(t, "store:\n  type: file\n  path: "+writeConfig(t, "users: [")+"\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewApplication(t.Context(), newTestConfig(tt.path))
			require.Error(t, err)
		})
	}
}

func TestInitializeServices_RequiresConfig(t *testing.T) {
	_, err := InitializeServices(t.Context(), &Config{})
	require.Error(t, err)
}

func TestInitializeServices_BadDatabaseURL(t *testing.T) {
	appCfg := config.GetDefaultConfig()
	appCfg.Store = config.StoreConfig{Type: config.StorePostgres, DatabaseURL: "postgres://%zz"}

	_, err := InitializeServices(t.Context(), &Config{AppConfig: &appCfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server store")
}

func TestServe_GracefulShutdown(t *testing.T) {
	appCfg := config.GetDefaultConfig()
	services, err := InitializeServices(t.Context(), &Config{AppConfig: &appCfg, Version: "test"})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, services, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mcpstudio/internal/aggregator"
	"mcpstudio/internal/api"
	"mcpstudio/internal/reconciler"
	"mcpstudio/internal/store"
	"mcpstudio/internal/testing/fake"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStore map[string][]store.ServerRow

func (s staticStore) ListEnabledServers(_ context.Context, userID string) ([]store.ServerRow, error) {
	return s[userID], nil
}

func newTestServer(t *testing.T, opts ...func(*Options)) *httptest.Server {
	t.Helper()

	factory := fake.NewFactory()
	factory.Configure("G", func(c *fake.Client) { c.Tools = []mcp.Tool{mcp.NewTool("ping")} })
	factory.Configure("user:42:U1", func(c *fake.Client) { c.Tools = []mcp.Tool{mcp.NewTool("pong")} })

	reg := prometheus.NewRegistry()
	manager := aggregator.NewConnectionManager(aggregator.ManagerOptions{
		Factory:     factory.New,
		CallTimeout: 50 * time.Millisecond,
		Metrics:     aggregator.NewMetrics(reg),
	})
	t.Cleanup(func() { _ = manager.Close() })

	coord := reconciler.New(reconciler.Options{
		Manager: manager,
		Store: staticStore{
			"42": {{Name: "U1", Type: "stdio", Config: `{"command": "mcp-u1"}`, Enabled: true}},
			"7":  {{Name: "secret", Type: "stdio", Config: `{"command": "mcp-secret"}`, Enabled: true}},
		},
		Globals: []api.ServerDescriptor{{Name: "G", Transport: api.TransportStdio, Command: []string{"mcp-g"}}},
	})

	o := Options{Manager: manager, Coordinator: coord, Gatherer: reg}
	for _, fn := range opts {
		fn(&o)
	}

	ts := httptest.NewServer(New(o).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, user, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(DefaultUserHeader, user)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestListServers(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		user string
		want []string
	}{
		{name: "anonymous sees globals", user: "", want: []string{"G"}},
		{name: "user sees own servers", user: "42", want: []string{"G", "user:42:U1"}},
		{name: "other user", user: "7", want: []string{"G", "user:7:secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, ts, http.MethodGet, "/api/mcp/servers", tt.user, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var statuses []api.ServerStatus
			require.NoError(t, json.Unmarshal(body, &statuses))
			var names []string
			for _, s := range statuses {
				names = append(names, s.Name)
				assert.Equal(t, api.StatusConnected, s.Status)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestListTools(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/api/mcp/tools", "42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tools []api.ToolDescriptor
	require.NoError(t, json.Unmarshal(body, &tools))
	require.Len(t, tools, 2)
	assert.Equal(t, "G", tools[0].ServerName)
	assert.Equal(t, "ping", tools[0].Name)
	assert.Equal(t, "user:42:U1", tools[1].ServerName)
	assert.Equal(t, "pong", tools[1].Name)
	assert.JSONEq(t, `{"type": "object"}`, string(tools[0].InputSchema))
}

func TestListResources(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/api/mcp/resources", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var resources []api.ResourceDescriptor
	require.NoError(t, json.Unmarshal(body, &resources))
	require.Len(t, resources, 1)
	assert.Equal(t, fake.ResourceURI("G"), resources[0].URI)
}

func TestCallTool(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		user       string
		body       string
		wantStatus int
		wantText   string
		wantError  string
		wantCode   int
	}{
		{
			name:       "user server by short name",
			user:       "42",
			body:       `{"serverName": "U1", "toolName": "pong", "arguments": {"n": 1}}`,
			wantStatus: http.StatusOK,
			wantText:   "pong from user:42:U1",
		},
		{
			name:       "global server anonymously",
			body:       `{"serverName": "G", "toolName": "ping"}`,
			wantStatus: http.StatusOK,
			wantText:   "ping from G",
		},
		{
			name:       "malformed body",
			body:       `{"serverName": `,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "missing tool name",
			body:       `{"serverName": "G"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "required",
		},
		{
			name:       "unknown server",
			body:       `{"serverName": "nope", "toolName": "ping"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "not connected",
		},
		{
			name:       "server of another user",
			user:       "42",
			body:       `{"serverName": "user:7:secret", "toolName": "echo"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "not connected",
		},
		{
			name:       "error from the server",
			body:       fmt.Sprintf(`{"serverName": "G", "toolName": %q}`, fake.ToolFail),
			wantStatus: http.StatusInternalServerError,
			wantError:  "bad arguments",
			wantCode:   mcp.INVALID_PARAMS,
		},
		{
			name:       "call timeout",
			body:       fmt.Sprintf(`{"serverName": "G", "toolName": %q}`, fake.ToolSleep),
			wantStatus: http.StatusBadGateway,
			wantError:  "deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, ts, http.MethodPost, "/api/mcp/tools/call", tt.user, tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode, string(body))

			if tt.wantText != "" {
				var result struct {
					Content []struct {
						Type string `json:"type"`
						Text string `json:"text"`
					} `json:"content"`
				}
				require.NoError(t, json.Unmarshal(body, &result))
				require.Len(t, result.Content, 1)
				assert.Equal(t, tt.wantText, result.Content[0].Text)
				return
			}

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.Contains(t, errResp.Error, tt.wantError)
			assert.Equal(t, tt.wantCode, errResp.Code)
		})
	}
}

func TestReadResource(t *testing.T) {
	ts := newTestServer(t)

	body := fmt.Sprintf(`{"serverName": "U1", "uri": %q}`, fake.ResourceURI("user:42:U1"))
	resp, data := do(t, ts, http.MethodPost, "/api/mcp/resources/read", "42", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Contains(t, string(data), "contents of "+fake.ResourceURI("user:42:U1"))

	resp, _ = do(t, ts, http.MethodPost, "/api/mcp/resources/read", "42", `{"serverName": "U1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPost, "/api/mcp/resources/read", "", body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "anonymous callers cannot reach user servers")
}

func TestCustomUserHeader(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.UserHeader = "X-Forwarded-User" })

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/api/mcp/servers", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-User", "42")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var statuses []api.ServerStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	assert.Len(t, statuses, 2)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "ok", "connected": 0}`, string(body))

	// Any /api/mcp request connects the globals.
	resp, _ = do(t, ts, http.MethodGet, "/api/mcp/tools", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, ts, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mcpstudio_mcp_connect_attempts_total")
	assert.Contains(t, string(body), "mcpstudio_mcp_ready_connections 1")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "config", err: api.NewConfigError("x", "url", "bad"), want: http.StatusBadRequest},
		{name: "not connected", err: api.NewNotConnectedError("x"), want: http.StatusNotFound},
		{name: "wrapped not connected", err: fmt.Errorf("call: %w", api.NewNotConnectedError("x")), want: http.StatusNotFound},
		{name: "upstream", err: api.NewUpstreamError("x", mcp.METHOD_NOT_FOUND, "no such tool"), want: http.StatusInternalServerError},
		{name: "transport", err: api.NewTransportError("x", "tools/call", errors.New("broken pipe")), want: http.StatusBadGateway},
		{name: "process exit", err: &api.ProcessExitError{Server: "x", ExitCode: 1}, want: http.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name      string
		desc      ServerDescriptor
		wantField string
	}{
		{
			name: "valid stdio",
			desc: ServerDescriptor{Name: "fs", Transport: TransportStdio, Command: []string{"npx", "server-fs"}},
		},
		{
			name: "valid sse",
			desc: ServerDescriptor{Name: "remote", Transport: TransportSSE, URL: "https://example.com/sse"},
		},
		{
			name: "valid http",
			desc: ServerDescriptor{Name: "remote", Transport: TransportHTTP, URL: "http://localhost:9000/mcp"},
		},
		{
			name:      "missing name",
			desc:      ServerDescriptor{Transport: TransportStdio, Command: []string{"x"}},
			wantField: "name",
		},
		{
			name:      "stdio without command",
			desc:      ServerDescriptor{Name: "fs", Transport: TransportStdio},
			wantField: "command",
		},
		{
			name:      "stdio with blank executable",
			desc:      ServerDescriptor{Name: "fs", Transport: TransportStdio, Command: []string{"  "}},
			wantField: "command",
		},
		{
			name:      "stdio with url",
			desc:      ServerDescriptor{Name: "fs", Transport: TransportStdio, Command: []string{"x"}, URL: "http://a"},
			wantField: "url",
		},
		{
			name:      "sse without url",
			desc:      ServerDescriptor{Name: "r", Transport: TransportSSE},
			wantField: "url",
		},
		{
			name:      "http with command",
			desc:      ServerDescriptor{Name: "r", Transport: TransportHTTP, URL: "http://a/mcp", Command: []string{"x"}},
			wantField: "command",
		},
		{
			name:      "http with bad scheme",
			desc:      ServerDescriptor{Name: "r", Transport: TransportHTTP, URL: "ftp://host/mcp"},
			wantField: "url",
		},
		{
			name:      "missing transport",
			desc:      ServerDescriptor{Name: "r", URL: "http://a"},
			wantField: "type",
		},
		{
			name:      "unknown transport",
			desc:      ServerDescriptor{Name: "r", Transport: "websocket", URL: "http://a"},
			wantField: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestServerDescriptor_Equal(t *testing.T) {
	base := ServerDescriptor{
		Name:      "fs",
		Transport: TransportStdio,
		Command:   []string{"node", "server.js"},
		Env:       map[string]string{"A": "1", "B": "2"},
	}

	same := base
	same.Env = map[string]string{"B": "2", "A": "1"}
	assert.True(t, base.Equal(same))

	changedArgs := base
	changedArgs.Command = []string{"node", "other.js"}
	assert.False(t, base.Equal(changedArgs))

	changedEnv := base
	changedEnv.Env = map[string]string{"A": "1"}
	assert.False(t, base.Equal(changedEnv))

	var nilEnv ServerDescriptor = base
	nilEnv.Env = nil
	empty := base
	empty.Env = map[string]string{}
	assert.True(t, nilEnv.Equal(empty))
}

func TestParseTransportKind(t *testing.T) {
	tests := []struct {
		in      string
		want    TransportKind
		wantErr bool
	}{
		{"", "", false},
		{"stdio", TransportStdio, false},
		{"SSE", TransportSSE, false},
		{"http", TransportHTTP, false},
		{"streamable-http", TransportHTTP, false},
		{"ws", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTransportKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorHelpersSeeThroughWrapping(t *testing.T) {
	cause := errors.New("broken pipe")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"transport", NewTransportError("fs", "initialize", cause), IsTransportError},
		{"not connected", NewNotConnectedError("fs"), IsNotConnected},
		{"upstream", NewUpstreamError("fs", -32602, "bad params"), IsUpstreamError},
		{"process exit", &ProcessExitError{Server: "fs", ExitCode: 1}, IsProcessExit},
		{"config", NewConfigError("fs", "url", "missing"), IsConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("calling server: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(cause))
		})
	}

	assert.ErrorIs(t, NewTransportError("fs", "spawn", cause), cause)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "server fs is not connected", NewNotConnectedError("fs").Error())
	assert.Equal(t,
		"server fs returned error -32602: bad params",
		NewUpstreamError("fs", -32602, "bad params").Error())

	te := NewTransportError("fs", "initialize", errors.New("eof"))
	te.Stderr = "module not found"
	assert.Contains(t, te.Error(), "module not found")
	assert.Contains(t, te.Error(), "initialize")
}

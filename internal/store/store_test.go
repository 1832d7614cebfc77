package store

import (
	"testing"

	"mcpstudio/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServerConfig(t *testing.T) {
	want := map[string]interface{}{"command": "mcp-notes", "args": []interface{}{"--db", "notes.db"}}

	tests := []struct {
		name    string
		raw     interface{}
		want    map[string]interface{}
		wantErr bool
	}{
		{name: "object", raw: map[string]interface{}{"command": "mcp-notes", "args": []interface{}{"--db", "notes.db"}}, want: want},
		{name: "json text", raw: `{"command": "mcp-notes", "args": ["--db", "notes.db"]}`, want: want},
		{name: "json bytes", raw: []byte(`{"command": "mcp-notes", "args": ["--db", "notes.db"]}`), want: want},
		{name: "double encoded", raw: `"{\"command\": \"mcp-notes\", \"args\": [\"--db\", \"notes.db\"]}"`, want: want},
		{name: "nil", raw: nil, want: map[string]interface{}{}},
		{name: "empty bytes", raw: []byte{}, want: map[string]interface{}{}},
		{name: "json null", raw: "null", want: map[string]interface{}{}},
		{name: "not json", raw: "command=mcp-notes", wantErr: true},
		{name: "json array", raw: `["mcp-notes"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeServerConfig(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		row     ServerRow
		want    api.ServerDescriptor
		wantErr string
	}{
		{
			name: "stdio with command string and args",
			row:  ServerRow{Name: "notes", Type: "stdio", Config: `{"command": "npx -y mcp-notes", "args": ["--db", "n.db"], "env": {"TOKEN": "t"}}`, Enabled: true},
			want: api.ServerDescriptor{
				Name:      "user:42:notes",
				Transport: api.TransportStdio,
				Command:   []string{"npx", "-y", "mcp-notes", "--db", "n.db"},
				Env:       map[string]string{"TOKEN": "t"},
			},
		},
		{
			name: "sse from object",
			row:  ServerRow{Name: "web", Type: "sse", Config: map[string]interface{}{"url": "https://web.example.com/sse"}},
			want: api.ServerDescriptor{Name: "user:42:web", Transport: api.TransportSSE, URL: "https://web.example.com/sse"},
		},
		{
			name: "row type wins over config type",
			row:  ServerRow{Name: "web", Type: "http", Config: []byte(`{"type": "sse", "url": "https://web.example.com/mcp"}`)},
			want: api.ServerDescriptor{Name: "user:42:web", Transport: api.TransportHTTP, URL: "https://web.example.com/mcp"},
		},
		{
			name:    "broken config",
			row:     ServerRow{Name: "bad", Type: "stdio", Config: "{"},
			wantErr: "config",
		},
		{
			name:    "missing command",
			row:     ServerRow{Name: "bad", Type: "stdio", Config: `{}`},
			wantErr: "command",
		},
		{
			name:    "missing name",
			row:     ServerRow{Type: "stdio", Config: `{"command": "x"}`},
			wantErr: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDescriptor("42", tt.row)
			if tt.wantErr != "" {
				require.Error(t, err)
				var cfgErr *api.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.wantErr, cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserServerName(t *testing.T) {
	assert.Equal(t, "user:42:notes", UserServerName("42", "notes"))
	assert.NotEqual(t, UserServerName("4", "2:notes"), UserServerName("42", "notes"))
}

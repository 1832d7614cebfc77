// Package mock provides MCP servers for tests.
//
// Stdio servers are the test binary itself, re-executed with an environment
// variable that makes TestMain serve MCP instead of running tests:
//
//	func TestMain(m *testing.M) {
//	    mock.MaybeServe()
//	    os.Exit(m.Run())
//	}
//
//	desc := mock.StdioDescriptor("fs", mock.ModeServe, "read_file", "write_file")
//
// Remote servers are built with NewServer and handed to mcp-go's
// server.NewTestServer or server.NewTestStreamableHTTPServer.
package mock

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mcpstudio/internal/api"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Environment variables read by MaybeServe.
const (
	EnvMode  = "MCPSTUDIO_MOCK_MODE"
	EnvName  = "MCPSTUDIO_MOCK_NAME"
	EnvTools = "MCPSTUDIO_MOCK_TOOLS"
)

// Mode selects how a re-executed stdio server behaves.
type Mode string

const (
	// ModeServe answers the handshake and serves the configured tools.
	ModeServe Mode = "serve"
	// ModeHang reads stdin but never answers.
	ModeHang Mode = "hang"
	// ModeHangIgnoreTerm never answers and ignores SIGTERM, so only SIGKILL
	// stops it.
	ModeHangIgnoreTerm Mode = "hang-ignore-term"
	// ModeExit writes to stderr and exits with code 3 before the handshake.
	ModeExit Mode = "exit"
	// ModeIgnoreTerm serves normally but ignores SIGTERM and keeps running
	// after stdin closes, so only SIGKILL stops it.
	ModeIgnoreTerm Mode = "ignore-term"
)

// Tools with built-in behaviour, available on every mock server in addition
// to the configured ones.
const (
	// ToolFail returns a JSON-RPC internal error.
	ToolFail = "fail"
	// ToolCrash makes a stdio server exit with code 2 mid-call.
	ToolCrash = "crash"
	// ToolSleep blocks until the request is cancelled.
	ToolSleep = "sleep"
)

// ExitStderr is what ModeExit prints before exiting.
const ExitStderr = "mock: fatal: cannot load configuration"

// NewServer builds an MCP server named name exposing tools (each replies with
// "<tool> from <name>") and one text resource at ResourceURI(name).
func NewServer(name string, tools ...string) *server.MCPServer {
	s := server.NewMCPServer(name, "1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	for _, tool := range tools {
		toolName := tool
		s.AddTool(
			mcp.NewTool(toolName,
				mcp.WithDescription(fmt.Sprintf("%s tool of %s", toolName, name)),
				mcp.WithString("message", mcp.Description("optional text echoed back")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				text := fmt.Sprintf("%s from %s", toolName, name)
				if msg := req.GetString("message", ""); msg != "" {
					text += ": " + msg
				}
				return mcp.NewToolResultText(text), nil
			},
		)
	}

	s.AddTool(mcp.NewTool(ToolFail, mcp.WithDescription("always fails")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, fmt.Errorf("tool %s failed on purpose", ToolFail)
		},
	)
	s.AddTool(mcp.NewTool(ToolCrash, mcp.WithDescription("terminates the server process")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			fmt.Fprintln(os.Stderr, "mock: crashing on request")
			os.Exit(2)
			return nil, nil
		},
	)
	s.AddTool(mcp.NewTool(ToolSleep, mcp.WithDescription("blocks until cancelled")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Hour):
				return mcp.NewToolResultText("woke up"), nil
			}
		},
	)

	uri := ResourceURI(name)
	s.AddResource(
		mcp.NewResource(uri, name+" readme",
			mcp.WithResourceDescription("static readme"),
			mcp.WithMIMEType("text/plain"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri, MIMEType: "text/plain", Text: "readme of " + name},
			}, nil
		},
	)

	return s
}

// ResourceURI is the URI of the resource served by a mock server.
func ResourceURI(name string) string {
	return "mock://" + name + "/readme"
}

// StdioDescriptor describes a re-executed test binary acting as a stdio server.
func StdioDescriptor(name string, mode Mode, tools ...string) api.ServerDescriptor {
	return api.ServerDescriptor{
		Name:      name,
		Transport: api.TransportStdio,
		Command:   []string{os.Args[0], "-test.run=^$"},
		Env: map[string]string{
			EnvMode:  string(mode),
			EnvName:  name,
			EnvTools: strings.Join(tools, ","),
		},
	}
}

// MaybeServe serves MCP on stdin/stdout and exits when the process was
// started by StdioDescriptor. Otherwise it returns immediately.
func MaybeServe() {
	mode := Mode(os.Getenv(EnvMode))
	if mode == "" {
		return
	}

	name := os.Getenv(EnvName)
	var tools []string
	if raw := os.Getenv(EnvTools); raw != "" {
		tools = strings.Split(raw, ",")
	}

	os.Exit(serve(mode, name, tools))
}

func serve(mode Mode, name string, tools []string) int {
	switch mode {
	case ModeExit:
		fmt.Fprintln(os.Stderr, ExitStderr)
		return 3

	case ModeHang:
		_, _ = io.Copy(io.Discard, os.Stdin)
		sleepForever()
		return 0

	case ModeHangIgnoreTerm:
		signal.Ignore(syscall.SIGTERM)
		_, _ = io.Copy(io.Discard, os.Stdin)
		sleepForever()
		return 0

	case ModeIgnoreTerm:
		signal.Ignore(syscall.SIGTERM)
		stdio := server.NewStdioServer(NewServer(name, tools...))
		_ = stdio.Listen(context.Background(), os.Stdin, os.Stdout)
		sleepForever()
		return 0

	default:
		if err := server.ServeStdio(NewServer(name, tools...)); err != nil {
			fmt.Fprintf(os.Stderr, "mock: %v\n", err)
			return 1
		}
		return 0
	}
}

// sleepForever blocks without tripping the runtime's deadlock detector.
func sleepForever() {
	for {
		time.Sleep(time.Hour)
	}
}

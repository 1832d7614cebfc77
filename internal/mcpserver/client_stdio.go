package mcpserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"mcpstudio/internal/api"
	"mcpstudio/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// DefaultStdioInitTimeout is the default timeout for stdio client initialization.
// This covers the time needed to start the subprocess and complete the MCP handshake.
const DefaultStdioInitTimeout = 10 * time.Second

// DefaultCloseGracePeriod is how long a child gets between SIGTERM and SIGKILL.
const DefaultCloseGracePeriod = 3 * time.Second

// exitSettleTimeout is how long a failed handshake waits for the child to be
// reaped before blaming the transport.
const exitSettleTimeout = 500 * time.Millisecond

// StdioClient implements the MCPClient interface using stdio transport.
// It owns the subprocess: mcp-go only sees the pipes, so exit detection and
// termination stay under our control.
type StdioClient struct {
	baseMCPClient
	command []string
	env     map[string]string
	opts    ClientOptions

	proc *process
}

// NewStdioClient creates a new stdio-based MCP client. Nothing is spawned
// until Initialize.
func NewStdioClient(name string, command []string, env map[string]string, opts ClientOptions) *StdioClient {
	return &StdioClient{
		baseMCPClient: newBaseMCPClient(name),
		command:       command,
		env:           env,
		opts:          opts.withDefaults(),
	}
}

// Initialize spawns the process and performs the protocol handshake. On any
// failure the process is killed and reaped before returning, so a failed
// handshake never outlasts the connect timeout by more than the reap.
func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.closed || c.proc != nil {
		c.mu.Unlock()
		return api.NewNotConnectedError(c.name)
	}
	c.mu.Unlock()

	logging.Debug("StdioClient", "Spawning %s: %s", c.name, strings.Join(c.command, " "))

	proc, err := startProcess(c.name, c.command, c.env)
	if err != nil {
		return api.NewTransportError(c.name, "spawn", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		proc.kill()
		return api.NewNotConnectedError(c.name)
	}
	c.proc = proc
	c.mu.Unlock()

	mcpClient := client.NewClient(transport.NewIO(proc.stdout, proc.stdin, nil))

	// If no timeout in context, add a reasonable default
	initCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancelTimeout context.CancelFunc
		initCtx, cancelTimeout = context.WithTimeout(initCtx, c.opts.ConnectTimeout)
		defer cancelTimeout()
	}

	go func() {
		select {
		case <-proc.Exited():
			cancel(errConnectionEnded)
		case <-initCtx.Done():
		}
	}()

	if err := mcpClient.Start(context.Background()); err != nil {
		proc.kill()
		return api.NewTransportError(c.name, "start", err)
	}

	initResult, err := mcpClient.Initialize(initCtx, initializeRequest(c.opts))
	if err != nil {
		te := api.NewTransportError(c.name, "initialize", err)
		switch {
		case errors.Is(context.Cause(initCtx), errConnectionEnded):
			te.Err = proc.ExitError()
		case initCtx.Err() != nil:
			te.Err = handshakeErr(initCtx, err)
		case proc.exitedWithin(exitSettleTimeout):
			// A broken pipe usually means the child is on its way out.
			te.Err = proc.ExitError()
		}

		proc.kill()
		te.Stderr = proc.Stderr()
		c.markDone(te)
		logging.Error("StdioClient", err, "Failed to initialize MCP protocol for %s", c.name)
		return te
	}

	if err := c.setConnected(mcpClient); err != nil {
		proc.kill()
		return err
	}

	go c.watchProcess(proc)

	logging.Debug("StdioClient", "MCP protocol initialized for %s. Server: %s, Version: %s",
		c.name, initResult.ServerInfo.Name, initResult.ServerInfo.Version)

	return nil
}

func (c *StdioClient) watchProcess(proc *process) {
	select {
	case <-proc.Exited():
		exitErr := proc.ExitError()
		logging.Warn("StdioClient", "Server %s exited unexpectedly with code %d", c.name, exitErr.ExitCode)
		c.markDone(exitErr)
	case <-c.done:
	}
}

// Close closes stdin, terminates the process group and reaps the child.
// It is idempotent.
func (c *StdioClient) Close() error {
	c.mu.RLock()
	proc := c.proc
	c.mu.RUnlock()

	// The transport closes stdin and fails in-flight requests; the process
	// itself is ours to stop.
	err := c.closeClient()
	if proc != nil {
		proc.terminate(c.opts.CloseGracePeriod)
	}
	if err != nil {
		logging.Debug("StdioClient", "Closing transport for %s: %v", c.name, err)
	}
	return nil
}

// PID returns the child's process id, or 0 when no process is running.
func (c *StdioClient) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.proc == nil {
		return 0
	}
	return c.proc.cmd.Process.Pid
}

// Stderr returns the last lines the child wrote to stderr.
func (c *StdioClient) Stderr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.proc == nil {
		return ""
	}
	return c.proc.Stderr()
}

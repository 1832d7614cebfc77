package mcpserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"mcpstudio/internal/api"
	"mcpstudio/pkg/logging"
)

// stderrTailLines bounds how much child stderr is kept for error messages.
const stderrTailLines = 20

const stderrFlushTimeout = 200 * time.Millisecond

// process is a supervised stdio MCP server child. The parent holds one end of
// each OS pipe; the child ends are closed right after the spawn.
type process struct {
	name string
	cmd  *exec.Cmd

	stdin  *os.File // parent write end
	stdout *os.File // parent read end

	tail       *tailBuffer
	stderrDone chan struct{}

	exited   chan struct{}
	exitCode int
	waitErr  error
}

// startProcess spawns command in its own process group with env merged over
// the parent environment.
func startProcess(name string, command []string, env map[string]string) (*process, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = mergeEnv(os.Environ(), env)
	configureProcAttr(cmd)

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW)
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("failed to start command %q: %w", command[0], err)
	}

	// The child has its own copies now.
	closeAll(stdinR, stdoutW, stderrW)

	p := &process{
		name:       name,
		cmd:        cmd,
		stdin:      stdinW,
		stdout:     stdoutR,
		tail:       newTailBuffer(stderrTailLines),
		stderrDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}

	go p.drainStderr(stderrR)
	go p.wait()

	logging.Debug("StdioClient", "Started %s (PID %d): %s", name, cmd.Process.Pid, strings.Join(command, " "))
	return p, nil
}

func (p *process) wait() {
	err := p.cmd.Wait()
	p.waitErr = err
	p.exitCode = 0
	if err != nil {
		p.exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.exitCode = exitErr.ExitCode()
		}
	}
	// Let the last stderr lines land in the tail, unless a grandchild still
	// holds the pipe open.
	select {
	case <-p.stderrDone:
	case <-time.After(stderrFlushTimeout):
	}
	close(p.exited)
	logging.Debug("StdioClient", "Process for %s exited with code %d", p.name, p.exitCode)
}

func (p *process) drainStderr(r io.ReadCloser) {
	defer close(p.stderrDone)
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		p.tail.add(line)
		logging.Debug("StdioClient", "[%s stderr] %s", p.name, line)
	}
}

// Exited closes once the child has been reaped.
func (p *process) Exited() <-chan struct{} {
	return p.exited
}

func (p *process) exitedWithin(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.exited:
		return true
	case <-timer.C:
		return false
	}
}

// ExitError describes the exit. Only valid after Exited has closed.
func (p *process) ExitError() *api.ProcessExitError {
	return &api.ProcessExitError{
		Server:   p.name,
		ExitCode: p.exitCode,
		Stderr:   p.tail.String(),
		Err:      p.waitErr,
	}
}

// Stderr returns the buffered tail of the child's stderr.
func (p *process) Stderr() string {
	return p.tail.String()
}

// terminate closes stdin, sends SIGTERM to the process group, waits up to
// grace, then escalates to SIGKILL and reaps.
func (p *process) terminate(grace time.Duration) {
	_ = p.stdin.Close()

	select {
	case <-p.exited:
		_ = p.stdout.Close()
		return
	default:
	}

	pid := p.cmd.Process.Pid
	if err := signalProcessGroup(p.cmd, syscall.SIGTERM); err != nil {
		logging.Debug("StdioClient", "SIGTERM to %s (PID %d) failed: %v", p.name, pid, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.exited:
	case <-timer.C:
		logging.Warn("StdioClient", "Process for %s (PID %d) ignored SIGTERM for %s, killing", p.name, pid, grace)
		if err := signalProcessGroup(p.cmd, syscall.SIGKILL); err != nil {
			logging.Debug("StdioClient", "SIGKILL to %s (PID %d) failed: %v", p.name, pid, err)
		}
		<-p.exited
	}

	_ = p.stdout.Close()
}

// kill stops a child that never completed the handshake: it has no state
// worth a graceful shutdown, so the group gets SIGKILL at once. It returns
// after the child is reaped.
func (p *process) kill() {
	_ = p.stdin.Close()

	select {
	case <-p.exited:
	default:
		if err := signalProcessGroup(p.cmd, syscall.SIGKILL); err != nil {
			logging.Debug("StdioClient", "SIGKILL to %s (PID %d) failed: %v", p.name, p.cmd.Process.Pid, err)
		}
		<-p.exited
	}

	_ = p.stdout.Close()
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

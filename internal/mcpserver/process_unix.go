//go:build !windows

package mcpserver

import (
	"fmt"
	"os/exec"
	"syscall"
)

// configureProcAttr puts the child in its own process group so that helpers
// it forks are signalled together with it.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// signalProcessGroup sends sig to the child's process group, falling back to
// the child alone.
func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err != nil {
		if err2 := syscall.Kill(pid, sig); err2 != nil {
			return fmt.Errorf("failed to signal process group -%d: %v, also failed to signal process %d: %v", pid, err, pid, err2)
		}
	}
	return nil
}

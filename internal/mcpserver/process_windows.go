//go:build windows

package mcpserver

import (
	"os/exec"
	"syscall"
)

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// signalProcessGroup has no graceful variant on Windows: closing stdin is the
// polite request, anything else terminates the process.
func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if sig != syscall.SIGKILL {
		return nil
	}
	return cmd.Process.Kill()
}

//go:build !windows

package mcpserver

import (
	"errors"
	"syscall"
	"testing"
)

// assertProcessGone checks that pid has been reaped.
func assertProcessGone(t *testing.T, pid int) {
	t.Helper()
	if pid == 0 {
		t.Fatal("no pid recorded")
	}
	err := syscall.Kill(pid, 0)
	if !errors.Is(err, syscall.ESRCH) {
		t.Fatalf("process %d still exists (kill 0: %v)", pid, err)
	}
}

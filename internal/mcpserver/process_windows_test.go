//go:build windows

package mcpserver

import "testing"

func assertProcessGone(t *testing.T, pid int) {
	t.Helper()
	if pid == 0 {
		t.Fatal("no pid recorded")
	}
}

package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommandExecution(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "1.2.3-test"

	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, []string{})

	out := buf.String()
	if !strings.HasPrefix(out, "mcpstudio 1.2.3-test (") {
		t.Errorf("Unexpected version output %q", out)
	}
	if !strings.Contains(out, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Expected platform in version output, got %q", out)
	}
}

func TestVersionCommandRejectsArgs(t *testing.T) {
	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.SetErr(&buf)
	versionCmd.SetArgs([]string{"extra"})

	if err := versionCmd.Execute(); err == nil {
		t.Error("Expected an error for unexpected arguments")
	}
}

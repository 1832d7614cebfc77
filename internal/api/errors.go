package api

import (
	"errors"
	"fmt"
)

// ConfigError reports a server descriptor or configuration entry that cannot
// be used. It is raised before any process is spawned or socket opened.
type ConfigError struct {
	// Server is the name of the offending server, if known.
	Server string

	// Field is the configuration key that failed validation.
	Field string

	Message string
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	if e.Server == "" {
		return fmt.Sprintf("invalid server configuration: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid configuration for server %s: %s: %s", e.Server, e.Field, e.Message)
}

// NewConfigError creates a ConfigError for the given server and field.
func NewConfigError(server, field, message string) *ConfigError {
	return &ConfigError{Server: server, Field: field, Message: message}
}

// IsConfigError checks if an error is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// TransportError represents a failure to reach or talk to an MCP server:
// spawn failures, handshake failures and timeouts, non-2xx HTTP responses,
// broken pipes and lost event streams.
//
// The underlying cause is preserved and can be inspected with errors.Is and
// errors.As. For stdio servers Stderr carries the last lines the child wrote,
// which usually explains why it refused to start.
type TransportError struct {
	// Server is the registry name of the server.
	Server string

	// Op names the operation that failed (e.g. "spawn", "initialize", "tools/call").
	Op string

	// Stderr is a tail of the child's stderr, stdio only.
	Stderr string

	Err error
}

// Error implements the error interface for TransportError.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport error on %s during %s: %v", e.Server, e.Op, e.Err)
	if e.Stderr != "" {
		msg += fmt.Sprintf(" (stderr: %s)", e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError.
//
// Args:
//   - server: The registry name of the server
//   - op: The operation that was in progress
//   - err: The underlying cause
//
// Returns:
//   - *TransportError: A new TransportError instance
func NewTransportError(server, op string, err error) *TransportError {
	return &TransportError{Server: server, Op: op, Err: err}
}

// IsTransportError checks if an error is or wraps a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// NotConnectedError is returned when an operation targets a server that has
// no ready connection, either because it was never connected, because its
// connection failed, or because it was disconnected.
type NotConnectedError struct {
	Server string

	// Reason optionally explains why the server is not connected.
	Reason string
}

// Error implements the error interface for NotConnectedError.
func (e *NotConnectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("server %s is not connected: %s", e.Server, e.Reason)
	}
	return fmt.Sprintf("server %s is not connected", e.Server)
}

// NewNotConnectedError creates a NotConnectedError.
func NewNotConnectedError(server string) *NotConnectedError {
	return &NotConnectedError{Server: server}
}

// IsNotConnected checks if an error is or wraps a NotConnectedError.
//
// Example:
//
//	result, err := manager.CallTool(ctx, "github", "search", args)
//	if api.IsNotConnected(err) {
//	    // reconnect or report 404
//	}
func IsNotConnected(err error) bool {
	var target *NotConnectedError
	return errors.As(err, &target)
}

// UpstreamError carries a JSON-RPC error returned by the MCP server itself.
// It passes through the manager unchanged so callers can see the server's
// own code and message.
type UpstreamError struct {
	Server  string
	Code    int
	Message string
}

// Error implements the error interface for UpstreamError.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("server %s returned error %d: %s", e.Server, e.Code, e.Message)
}

// NewUpstreamError creates an UpstreamError.
func NewUpstreamError(server string, code int, message string) *UpstreamError {
	return &UpstreamError{Server: server, Code: code, Message: message}
}

// IsUpstreamError checks if an error is or wraps an UpstreamError.
func IsUpstreamError(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// ProcessExitError reports that a stdio server's child process exited. When
// it happens during a call, the call is cancelled immediately.
type ProcessExitError struct {
	Server string

	// ExitCode is the process exit status, or -1 when killed by a signal.
	ExitCode int

	// Stderr is a tail of what the process wrote before it exited.
	Stderr string

	Err error
}

// Error implements the error interface for ProcessExitError.
func (e *ProcessExitError) Error() string {
	msg := fmt.Sprintf("server %s process exited with code %d", e.Server, e.ExitCode)
	if e.Stderr != "" {
		msg += fmt.Sprintf(" (stderr: %s)", e.Stderr)
	}
	return msg
}

func (e *ProcessExitError) Unwrap() error {
	return e.Err
}

// IsProcessExit checks if an error is or wraps a ProcessExitError.
func IsProcessExit(err error) bool {
	var target *ProcessExitError
	return errors.As(err, &target)
}

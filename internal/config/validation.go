package config

import (
	"fmt"
	"strings"
	"time"

	"mcpstudio/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the configuration for values that cannot work.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		errs.Add("server.listen", "is required", cfg.Server.Listen)
	}
	if strings.TrimSpace(cfg.Server.UserHeader) == "" {
		errs.Add("server.userHeader", "is required", cfg.Server.UserHeader)
	}

	if err := ValidateOneOf("store.type", string(cfg.Store.Type),
		[]string{string(StoreNone), string(StorePostgres), string(StoreFile)}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	switch cfg.Store.Type {
	case StorePostgres:
		if cfg.Store.DatabaseURL == "" {
			errs.Add("store.databaseURL", "is required for the postgres store (or set DATABASE_URL)")
		}
	case StoreFile:
		if cfg.Store.Path == "" {
			errs.Add("store.path", "is required for the file store")
		}
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"mcp.connectTimeout", cfg.MCP.ConnectTimeout},
		{"mcp.closeGracePeriod", cfg.MCP.CloseGracePeriod},
		{"mcp.callTimeout", cfg.MCP.CallTimeout},
		{"mcp.retryInterval", cfg.MCP.RetryInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs.Add(d.field, "must be positive", d.value)
		}
	}
	if cfg.MCP.MaxParallel <= 0 {
		errs.Add("mcp.maxParallel", "must be positive", cfg.MCP.MaxParallel)
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs.Add("logging.level", err.Error(), cfg.Logging.Level)
	}
	if err := ValidateOneOf("logging.format", cfg.Logging.Format,
		[]string{string(logging.FormatText), string(logging.FormatJSON)}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

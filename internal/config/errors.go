package config

import (
	"fmt"
	"strings"
)

// Error types used in ConfigurationError.ErrorType.
const (
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError describes one server entry that could not be loaded.
// Loading continues past it; the remaining entries are still used.
type ConfigurationError struct {
	Source      string   `json:"source"`      // file path or "MCP_SERVERS"
	Server      string   `json:"server"`      // empty when the entry has no usable name
	ErrorType   string   `json:"errorType"`   // parse or validation
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (ce ConfigurationError) Error() string {
	if ce.Server == "" {
		return fmt.Sprintf("[%s] %s", ce.Source, ce.Message)
	}
	return fmt.Sprintf("[%s] server %s: %s", ce.Source, ce.Server, ce.Message)
}

// writeTo appends an indented description of the entry to b.
func (ce ConfigurationError) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "  - %s (%s)\n", ce.Error(), ce.ErrorType)
	for _, s := range ce.Suggestions {
		fmt.Fprintf(b, "      hint: %s\n", s)
	}
}

// ConfigurationErrorCollection gathers the entries skipped while building
// the global server list.
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// NewConfigurationErrorCollection creates a new empty error collection
func NewConfigurationErrorCollection() *ConfigurationErrorCollection {
	return &ConfigurationErrorCollection{Errors: make([]ConfigurationError, 0)}
}

func (cec ConfigurationErrorCollection) Error() string {
	switch len(cec.Errors) {
	case 0:
		return "no configuration errors"
	case 1:
		return cec.Errors[0].Error()
	}
	return fmt.Sprintf("%d invalid server entries: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// HasErrors reports whether any entry was skipped. It is safe on a nil
// collection.
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return cec != nil && len(cec.Errors) > 0
}

// Count returns the number of skipped entries.
func (cec *ConfigurationErrorCollection) Count() int {
	if cec == nil {
		return 0
	}
	return len(cec.Errors)
}

func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// AddError records an entry without suggestions.
func (cec *ConfigurationErrorCollection) AddError(source, server, errorType, message string) {
	cec.Add(ConfigurationError{
		Source:    source,
		Server:    server,
		ErrorType: errorType,
		Message:   message,
	})
}

// Merge appends every error of other.
func (cec *ConfigurationErrorCollection) Merge(other *ConfigurationErrorCollection) {
	if other == nil {
		return
	}
	cec.Errors = append(cec.Errors, other.Errors...)
}

// GetErrorsBySource returns the errors that came from source.
func (cec *ConfigurationErrorCollection) GetErrorsBySource(source string) []ConfigurationError {
	var filtered []ConfigurationError
	for _, err := range cec.Errors {
		if err.Source == source {
			filtered = append(filtered, err)
		}
	}
	return filtered
}

// GetDetailedReport renders one line per skipped entry followed by its
// hints, suitable for logs and CLI output.
func (cec *ConfigurationErrorCollection) GetDetailedReport() string {
	if !cec.HasErrors() {
		return ""
	}
	var b strings.Builder
	for _, err := range cec.Errors {
		err.writeTo(&b)
	}
	return b.String()
}

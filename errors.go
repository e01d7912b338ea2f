package mcpgateway

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed is returned when Connect is called on a closed connection.
	ErrConnectionClosed = errors.New("connection is closed")
	// ErrGatewayClosed is returned when Connect is called on a closed gateway.
	ErrGatewayClosed = errors.New("gateway is closed")
	// ErrUnknownDialect is returned for dialects the translator does not support.
	ErrUnknownDialect = errors.New("unknown schema dialect")
)

// ConfigError reports a malformed or incomplete server configuration.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid mcp config: %v", e.Err)
	}
	return fmt.Sprintf("invalid mcp config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// ConnectionError reports that a server process failed to spawn or failed
// its protocol handshake.
type ConnectionError struct {
	Server string
	Op     string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp server %s: %s: %v", e.Server, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func executionErrorContent(err error) string {
	return fmt.Sprintf("[Error executing tool: %v]", err)
}

func serverNotAvailableContent(server string) string {
	return fmt.Sprintf("[MCP server not available: %s]", server)
}

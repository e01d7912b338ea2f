package mcpgateway

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewDefaultLogger returns the logger used when none is configured: JSON
// lines on stderr with timestamps.
func NewDefaultLogger(level string) zerolog.Logger {
	return zerolog.New(os.Stderr).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Str("component", "mcp-gateway").
		Logger()
}

// parseLogLevel maps a level name to a zerolog level. "silent" disables
// logging; unknown names fall back to info.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off", "disabled":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

package mcpgateway

import (
	"regexp"
	"strings"
)

var (
	prefixInvalidChars = regexp.MustCompile("[^a-zA-Z0-9_-]+")
	prefixRepeatedDash = regexp.MustCompile("-+")
)

// sanitizePrefix removes any characters that are not letters, numbers,
// underscores or hyphens.
func sanitizePrefix(prefix string) string {
	sanitized := prefixInvalidChars.ReplaceAllString(prefix, "-")

	// Replace multiple consecutive hyphens with a single hyphen
	sanitized = prefixRepeatedDash.ReplaceAllString(sanitized, "-")

	return strings.TrimLeft(sanitized, "-")
}

// isBrokenPipeError checks if an error stems from a server that already went away.
func isBrokenPipeError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "file already closed") ||
		strings.Contains(errStr, "EOF")
}

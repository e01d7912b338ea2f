package mcpgateway

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// requireUnix skips tests that spawn POSIX tools such as cat and sh.
func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test spawns POSIX commands")
	}
}

func testOptions(factory ClientFactory, extra ...Option) []Option {
	opts := []Option{WithLogger(zerolog.Nop())}
	if factory != nil {
		opts = append(opts, WithClientFactory(factory))
	}
	return append(opts, extra...)
}

func objectSchema(properties map[string]any, required ...string) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{Type: "object", Properties: properties, Required: required}
}

func listing(tools ...mcp.Tool) func(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return func(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
		return &mcp.ListToolsResult{Tools: tools}, nil
	}
}

func textResult(texts ...string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := &mcp.CallToolResult{}
		for _, text := range texts {
			result.Content = append(result.Content, mcp.NewTextContent(text))
		}
		return result, nil
	}
}

func TestSanitizePrefix(t *testing.T) {
	tests := map[string]string{
		"files_":      "files_",
		"my server_":  "my-server_",
		"a!!b":        "a-b",
		"--lead":      "lead",
		"ok-name_1":   "ok-name_1",
		"?!":          "",
		"trailing ":   "trailing-",
		"d  o  t.s_ ": "d-o-t-s_-",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizePrefix(in), "input %q", in)
	}
}

func TestIsBrokenPipeError(t *testing.T) {
	assert.False(t, isBrokenPipeError(nil))
	assert.True(t, isBrokenPipeError(errors.New("write |1: broken pipe")))
	assert.True(t, isBrokenPipeError(errors.New("unexpected EOF")))
	assert.True(t, isBrokenPipeError(errors.New("close |0: file already closed")))
	assert.False(t, isBrokenPipeError(errors.New("permission denied")))
}

package mcpgateway

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
)

// ProtocolClient is the subset of an MCP client the gateway relies on.
// *client.Client from mark3labs/mcp-go satisfies it.
type ProtocolClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// ClientFactory attaches a ProtocolClient to the pipes of a spawned server.
// The returned client must be ready for Initialize.
type ClientFactory interface {
	CreateClient(ctx context.Context, spec ServerSpec, stdout io.Reader, stdin io.WriteCloser) (ProtocolClient, error)
}

// Settings supplies application level values consulted at connection time.
// A read error is logged and the value treated as absent.
type Settings interface {
	// WorkingDirectory is the directory servers are started in.
	WorkingDirectory() (string, error)
	// Path is prepended to the inherited PATH.
	Path() (string, error)
	// MCPEnvironmentVariables override every server's environment.
	MCPEnvironmentVariables() (map[string]string, error)
}

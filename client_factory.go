package mcpgateway

import (
	"context"
	"fmt"
	"io"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
)

// clientFactory implements ClientFactory with mark3labs/mcp-go over the
// pipes of a process the gateway spawned itself.
type clientFactory struct{}

// NewClientFactory creates the default client factory.
func NewClientFactory() ClientFactory {
	return &clientFactory{}
}

// CreateClient binds an MCP stdio transport to the given pipes and starts it.
// Server stderr is drained by the connection, so the transport gets an empty
// logging stream.
func (cf *clientFactory) CreateClient(ctx context.Context, spec ServerSpec, stdout io.Reader, stdin io.WriteCloser) (ProtocolClient, error) {
	if stdout == nil || stdin == nil {
		return nil, fmt.Errorf("stdio pipes are required for %s", spec.Name)
	}

	transport := mcptransport.NewIO(stdout, stdin, io.NopCloser(strings.NewReader("")))
	client := mcpclient.NewClient(transport)
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client transport %s: %w", spec.Name, err)
	}
	return client, nil
}

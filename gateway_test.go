package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, config string, factory ClientFactory, extra ...Option) *Gateway {
	t.Helper()
	gateway, err := New(config, testOptions(factory, extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gateway.Close() })
	return gateway
}

func toolServer(names ...string) *MockProtocolClient {
	tools := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, mcp.Tool{
			Name:        name,
			Description: name + " tool",
			InputSchema: objectSchema(map[string]any{"text": map[string]any{"type": "string"}}, "text"),
		})
	}
	return &MockProtocolClient{ListToolsFunc: listing(tools...)}
}

func TestGatewayWithoutServers(t *testing.T) {
	factory := NewMockClientFactory()
	gateway := newTestGateway(t, `{"mcpServers": {}}`, factory)

	assert.False(t, gateway.HasConfiguredServers())
	require.NoError(t, gateway.Connect(context.Background()))
	assert.Empty(t, gateway.Connections())
	assert.False(t, gateway.IsConnected())
	assert.Equal(t, []OwnedTool{}, gateway.Tools(context.Background(), DialectOpenAI, NoFilter()))
	assert.Empty(t, factory.Created())

	result := gateway.ExecuteTool(context.Background(), OwnedTool{Tool: Tool{Name: "x"}, ServerName: "s"}, nil)
	assert.Equal(t, ContentServerNotAvailable, result.Content)
	assert.True(t, result.IsError)
}

func TestGatewayConnectConfigError(t *testing.T) {
	gateway := newTestGateway(t, `{"mcpServers": {"s": {"args": []}}}`, NewMockClientFactory())

	err := gateway.Connect(context.Background())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, gateway.Connections())
}

func TestGatewayCloseIsIdempotent(t *testing.T) {
	gateway := newTestGateway(t, `{"mcpServers": {}}`, nil)
	require.NoError(t, gateway.Close())
	require.NoError(t, gateway.Close())

	assert.ErrorIs(t, gateway.Connect(context.Background()), ErrGatewayClosed)
}

func TestGatewaySkipsFailingServers(t *testing.T) {
	requireUnix(t)

	config := `{"mcpServers": {
		"missing": {"command": "/nonexistent/mcp-server-binary"},
		"rejects": {"command": "cat"},
		"good": {"command": "cat"}
	}}`
	factory := NewMockClientFactory()
	factory.SetError("rejects", errors.New("handshake refused"))

	gateway := newTestGateway(t, config, factory)
	require.NoError(t, gateway.Connect(context.Background()))

	connections := gateway.Connections()
	require.Len(t, connections, 1)
	assert.Equal(t, "good", connections[0].Name())
	assert.True(t, gateway.IsConnected())

	// A second Connect keeps the existing connections.
	require.NoError(t, gateway.Connect(context.Background()))
	assert.Equal(t, []string{"good"}, factory.Created())
}

func TestGatewayNoServerConnects(t *testing.T) {
	requireUnix(t)

	gateway := newTestGateway(t, `{"mcpServers": {"missing": {"command": "/nonexistent/mcp-server-binary"}}}`, NewMockClientFactory())
	require.NoError(t, gateway.Connect(context.Background()))
	assert.Empty(t, gateway.Connections())
	assert.False(t, gateway.IsConnected())
}

func TestGatewayTools(t *testing.T) {
	requireUnix(t)

	config := `{"mcpServers": {
		"notes": {"command": "cat"},
		"search": {"command": "cat", "prefix": ""},
		"files": {"command": "cat", "prefix": "fs."}
	}}`
	factory := NewMockClientFactory()
	factory.SetClient("notes", toolServer("read", "write"))
	factory.SetClient("search", toolServer("query"))
	factory.SetClient("files", toolServer("read"))

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			gateway := newTestGateway(t, config, factory, WithListConcurrency(concurrency))
			require.NoError(t, gateway.Connect(context.Background()))

			tools := gateway.Tools(context.Background(), DialectOpenAI, NoFilter())
			require.Len(t, tools, 4)

			var names, servers []string
			for _, tool := range tools {
				names = append(names, tool.ExposedName())
				servers = append(servers, tool.ServerName)
			}
			assert.Equal(t, []string{"notes_read", "notes_write", "query", "fs-read"}, names)
			assert.Equal(t, []string{"notes", "notes", "search", "files"}, servers)
			assert.Equal(t, "read", tools[3].Name)
			assert.Equal(t, []string{"text"}, tools[3].InputSchema.Required)
		})
	}
}

func TestGatewayToolsFilter(t *testing.T) {
	requireUnix(t)

	config := `{"mcpServers": {
		"a": {"command": "cat"},
		"b": {"command": "cat", "enabled": false}
	}}`
	clientA := toolServer("one")
	clientB := toolServer("two")
	factory := NewMockClientFactory()
	factory.SetClient("a", clientA)
	factory.SetClient("b", clientB)

	gateway := newTestGateway(t, config, factory)
	require.NoError(t, gateway.Connect(context.Background()))
	require.Len(t, gateway.Connections(), 2)

	defaults := gateway.DefaultEnabledServerNames()
	assert.Equal(t, []string{"a"}, defaults.Names())

	tools := gateway.Tools(context.Background(), DialectGemini, ResolveFilter(NoFilter(), defaults))
	require.Len(t, tools, 1)
	assert.Equal(t, "a", tools[0].ServerName)

	tools = gateway.Tools(context.Background(), DialectGemini, OnlyServers("b", "unknown"))
	require.Len(t, tools, 1)
	assert.Equal(t, "b", tools[0].ServerName)

	before := clientA.ListToolsCalls() + clientB.ListToolsCalls()
	assert.Equal(t, []OwnedTool{}, gateway.Tools(context.Background(), DialectGemini, OnlyServers()))
	assert.Equal(t, before, clientA.ListToolsCalls()+clientB.ListToolsCalls())

	assert.Len(t, gateway.Tools(context.Background(), DialectGemini, NoFilter()), 2)
}

func TestGatewayDefaultEnabledServerNamesInvalidConfig(t *testing.T) {
	gateway := newTestGateway(t, `{"mcpServers": 5}`, nil)
	assert.False(t, gateway.DefaultEnabledServerNames().IsSet())
}

func TestGatewayExecuteToolRouting(t *testing.T) {
	requireUnix(t)

	config := `{"mcpServers": {"first": {"command": "cat"}, "second": {"command": "cat"}}}`
	first := toolServer("shared")
	first.CallToolFunc = textResult("from first")
	second := toolServer("shared")
	second.CallToolFunc = textResult("from second")

	factory := NewMockClientFactory()
	factory.SetClient("first", first)
	factory.SetClient("second", second)

	gateway := newTestGateway(t, config, factory)
	require.NoError(t, gateway.Connect(context.Background()))

	tools := gateway.Tools(context.Background(), DialectOpenAI, NoFilter())
	require.Len(t, tools, 2)

	assert.Equal(t, "from first", gateway.ExecuteTool(context.Background(), tools[0], map[string]any{"text": "x"}).Content)
	assert.Equal(t, "from second", gateway.ExecuteTool(context.Background(), tools[1], map[string]any{"text": "x"}).Content)
	assert.Len(t, first.CallToolCalls(), 1)
	assert.Len(t, second.CallToolCalls(), 1)

	ghost := OwnedTool{Tool: Tool{Name: "shared"}, ServerName: "ghost"}
	result := gateway.ExecuteTool(context.Background(), ghost, nil)
	assert.Equal(t, "[MCP server not available: ghost]", result.Content)
	assert.True(t, result.IsError)
}

func TestGatewayExecuteToolRecoversPanics(t *testing.T) {
	requireUnix(t)

	client := toolServer("explode")
	client.CallToolFunc = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("kaboom")
	}
	factory := NewMockClientFactory()
	factory.SetClient("s", client)

	gateway := newTestGateway(t, `{"mcpServers": {"s": {"command": "cat"}}}`, factory)
	require.NoError(t, gateway.Connect(context.Background()))

	tool := OwnedTool{Tool: Tool{Name: "explode"}, ServerName: "s"}
	var result ExecuteToolResult
	require.NotPanics(t, func() {
		result = gateway.ExecuteTool(context.Background(), tool, nil)
	})
	assert.Equal(t, "[Error executing tool: kaboom]", result.Content)
	assert.True(t, result.IsError)
}

func TestGatewayEchoServerScenario(t *testing.T) {
	requireUnix(t)

	gateway := newTestGateway(t, `{"mcpServers":{"echo":{"command":"echo","args":["hi"]}}}`, NewMockClientFactory())
	require.NoError(t, gateway.Connect(context.Background()))

	connections := gateway.Connections()
	require.Len(t, connections, 1)
	conn := connections[0]
	assert.True(t, conn.IsConnected())

	_, proc := conn.snapshot()
	require.NotNil(t, proc)

	require.NoError(t, gateway.Close())
	assert.False(t, conn.IsConnected())
	assert.Equal(t, StateClosed, conn.State())
	assert.False(t, proc.Alive())
	assert.Empty(t, gateway.Connections())
}

func TestGatewayConnectCancelled(t *testing.T) {
	requireUnix(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	factory := NewMockClientFactory()
	gateway := newTestGateway(t, `{"mcpServers": {"s": {"command": "cat"}}}`, factory)

	start := time.Now()
	require.NoError(t, gateway.Connect(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, gateway.Connections())
	assert.Empty(t, factory.Created())
}

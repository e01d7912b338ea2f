package mcpgateway

import (
	"context"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// MockProtocolClient is a ProtocolClient for tests. Unset funcs succeed
// with empty results. Close also closes the server's stdin, like the real
// transport does.
type MockProtocolClient struct {
	mu sync.Mutex

	InitializeFunc func(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListToolsFunc  func(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallToolFunc   func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	CloseFunc      func() error

	stdin io.WriteCloser

	// Call tracking
	initializeCalls int
	listToolsCalls  int
	callToolCalls   []mcp.CallToolRequest
	closeCalls      int
}

var _ ProtocolClient = (*MockProtocolClient)(nil)

// Initialize implements ProtocolClient.
func (m *MockProtocolClient) Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	m.mu.Lock()
	m.initializeCalls++
	fn := m.InitializeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, request)
	}
	result := &mcp.InitializeResult{ProtocolVersion: request.Params.ProtocolVersion}
	result.ServerInfo = mcp.Implementation{Name: "mock-server", Version: "0.0.1"}
	return result, nil
}

// ListTools implements ProtocolClient.
func (m *MockProtocolClient) ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	m.mu.Lock()
	m.listToolsCalls++
	fn := m.ListToolsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, request)
	}
	return &mcp.ListToolsResult{}, nil
}

// CallTool implements ProtocolClient.
func (m *MockProtocolClient) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m.mu.Lock()
	m.callToolCalls = append(m.callToolCalls, request)
	fn := m.CallToolFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, request)
	}
	return &mcp.CallToolResult{}, nil
}

// Close implements ProtocolClient.
func (m *MockProtocolClient) Close() error {
	m.mu.Lock()
	m.closeCalls++
	fn := m.CloseFunc
	stdin := m.stdin
	m.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if fn != nil {
		return fn()
	}
	return nil
}

// InitializeCalls returns how often Initialize was called.
func (m *MockProtocolClient) InitializeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeCalls
}

// ListToolsCalls returns how often ListTools was called.
func (m *MockProtocolClient) ListToolsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listToolsCalls
}

// CallToolCalls returns the recorded tool call requests.
func (m *MockProtocolClient) CallToolCalls() []mcp.CallToolRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]mcp.CallToolRequest, len(m.callToolCalls))
	copy(calls, m.callToolCalls)
	return calls
}

// CloseCalls returns how often Close was called.
func (m *MockProtocolClient) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// MockClientFactory is a ClientFactory handing out MockProtocolClients per
// server name.
type MockClientFactory struct {
	mu sync.Mutex

	// Clients maps server names to the client returned for them. Servers
	// without an entry get a fresh MockProtocolClient.
	Clients map[string]*MockProtocolClient
	// Errors maps server names to the error CreateClient returns for them.
	Errors map[string]error

	created []string
}

var _ ClientFactory = (*MockClientFactory)(nil)

// NewMockClientFactory creates an empty mock factory.
func NewMockClientFactory() *MockClientFactory {
	return &MockClientFactory{
		Clients: make(map[string]*MockProtocolClient),
		Errors:  make(map[string]error),
	}
}

// SetClient registers the client returned for a server.
func (f *MockClientFactory) SetClient(server string, client *MockProtocolClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clients[server] = client
}

// SetError makes CreateClient fail for a server.
func (f *MockClientFactory) SetError(server string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[server] = err
}

// Client returns the client handed out for a server, if any.
func (f *MockClientFactory) Client(server string) *MockProtocolClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Clients[server]
}

// Created returns the servers a client was created for, in order.
func (f *MockClientFactory) Created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := make([]string, len(f.created))
	copy(created, f.created)
	return created
}

// CreateClient implements ClientFactory.
func (f *MockClientFactory) CreateClient(_ context.Context, spec ServerSpec, _ io.Reader, stdin io.WriteCloser) (ProtocolClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Clients == nil {
		f.Clients = make(map[string]*MockProtocolClient)
	}
	if err := f.Errors[spec.Name]; err != nil {
		return nil, err
	}
	client, ok := f.Clients[spec.Name]
	if !ok {
		client = &MockProtocolClient{}
		f.Clients[spec.Name] = client
	}
	client.mu.Lock()
	client.stdin = stdin
	client.mu.Unlock()

	f.created = append(f.created, spec.Name)
	return client, nil
}

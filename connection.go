package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

const clientCloseTimeout = 2 * time.Second

var errNoInputSchema = errors.New("tool has no input schema")

// ServerConnection owns one MCP server process and the protocol client bound
// to its stdio. A closed connection is never reused.
type ServerConnection struct {
	spec   ServerSpec
	opts   options
	id     string
	logger zerolog.Logger

	mu     sync.Mutex
	state  ConnectionState
	client ProtocolClient
	proc   *serverProcess
}

// NewServerConnection creates an unconnected connection for spec.
func NewServerConnection(spec ServerSpec, opts ...Option) (*ServerConnection, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to apply option: %w", err)
	}
	return newServerConnection(spec, o), nil
}

func newServerConnection(spec ServerSpec, o options) *ServerConnection {
	id := uuid.NewString()
	return &ServerConnection{
		spec:   spec,
		opts:   o,
		id:     id,
		logger: o.logger.With().Str("server", spec.Name).Str("connection_id", id).Logger(),
	}
}

// Name returns the configured server name.
func (c *ServerConnection) Name() string { return c.spec.Name }

// Spec returns the server launch settings.
func (c *ServerConnection) Spec() ServerSpec { return c.spec }

// ID returns the unique id of this connection instance.
func (c *ServerConnection) ID() string { return c.id }

// State returns the lifecycle state.
func (c *ServerConnection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a protocol client is held. A server that
// crashed is still reported until an operation notices it.
func (c *ServerConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Pid returns the server process id, or 0 when no process is held.
func (c *ServerConnection) Pid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc == nil {
		return 0
	}
	return c.proc.Pid()
}

// Connect spawns the server and performs the MCP handshake. Connecting an
// already connected server with a live process is a no-op. On failure every
// acquired resource is released, the connection is closed and a
// *ConnectionError is returned.
func (c *ServerConnection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrConnectionClosed
	case StateConnected:
		if c.client != nil && c.proc != nil && c.proc.Alive() {
			return nil
		}
		c.closeLocked()
		return &ConnectionError{Server: c.spec.Name, Op: "connect", Err: errors.New("server process exited")}
	}

	if err := c.connectLocked(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Connect failed, releasing resources")
		c.closeLocked()
		return err
	}
	c.state = StateConnected
	return nil
}

func (c *ServerConnection) connectLocked(ctx context.Context) error {
	c.logger.Info().Str("command", c.spec.Command).Msg("Starting server")

	launch := resolveLaunchEnvironment(c.spec, c.opts.settings, c.logger)
	proc, err := startServerProcess(ctx, c.spec, launch, c.logger, c.handleStderr)
	if err != nil {
		return &ConnectionError{Server: c.spec.Name, Op: "spawn", Err: err}
	}
	c.proc = proc

	client, err := c.opts.clientFactory.CreateClient(ctx, c.spec, proc.stdout, proc.stdin)
	if err != nil {
		return &ConnectionError{Server: c.spec.Name, Op: "attach client", Err: err}
	}
	c.client = client

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}
	initRequest.Params.ClientInfo = c.opts.clientInfo

	initCtx, cancel := boundToProcess(ctx, proc)
	defer cancel()
	result, err := client.Initialize(initCtx, initRequest)
	if err != nil {
		if !proc.Alive() {
			err = fmt.Errorf("server process exited during handshake (%s): %w", proc.ExitStatus(), err)
		}
		return &ConnectionError{Server: c.spec.Name, Op: "initialize", Err: err}
	}

	event := c.logger.Info().Int("pid", proc.Pid())
	if result != nil {
		event = event.Str("server_name", result.ServerInfo.Name).Str("server_version", result.ServerInfo.Version)
	}
	event.Msg("Server connected")
	return nil
}

func (c *ServerConnection) handleStderr(line string) {
	if c.opts.stderrHandler != nil {
		c.opts.stderrHandler(c.spec.Name, line)
	}
}

// boundToProcess derives a context that is cancelled when the server exits,
// so calls on a dead server do not wait forever for a reply.
func boundToProcess(ctx context.Context, proc *serverProcess) (context.Context, context.CancelFunc) {
	boundCtx, cancel := context.WithCancel(ctx)
	if proc == nil {
		return boundCtx, cancel
	}
	go func() {
		select {
		case <-proc.exited:
			cancel()
		case <-boundCtx.Done():
		}
	}()
	return boundCtx, cancel
}

func (c *ServerConnection) snapshot() (ProtocolClient, *serverProcess) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client, c.proc
}

// ListTools lists the server's tools with schemas translated into dialect.
// Tools without an input schema are dropped. Failures are logged and yield
// fewer or no tools, never an error.
func (c *ServerConnection) ListTools(ctx context.Context, dialect Dialect) []Tool {
	client, proc := c.snapshot()
	if client == nil {
		return []Tool{}
	}

	callCtx, cancel := boundToProcess(ctx, proc)
	defer cancel()
	result, err := client.ListTools(callCtx, mcp.ListToolsRequest{})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to list tools")
		return []Tool{}
	}
	if result == nil {
		return []Tool{}
	}

	tools := make([]Tool, 0, len(result.Tools))
	for _, mcpTool := range result.Tools {
		if !c.toolAllowed(mcpTool.Name) {
			continue
		}
		tool, malformed, err := convertTool(mcpTool, dialect)
		if errors.Is(err, errNoInputSchema) {
			c.logger.Debug().Str("tool", mcpTool.Name).Msg("Skipping tool without input schema")
			continue
		}
		if err != nil {
			c.logger.Warn().Err(err).Str("tool", mcpTool.Name).Msg("Failed to transform tool schema, skipping tool")
			continue
		}
		for _, name := range malformed {
			c.logger.Warn().Str("tool", mcpTool.Name).Str("property", name).Msg("Property schema is not an object, using string")
		}
		tools = append(tools, tool)
	}

	c.logger.Debug().Int("count", len(tools)).Str("dialect", string(dialect)).Msg("Listed tools")
	return tools
}

func (c *ServerConnection) toolAllowed(name string) bool {
	if c.spec.IncludeTools != nil && !slices.Contains(c.spec.IncludeTools, name) {
		return false
	}
	return !slices.Contains(c.spec.ExcludeTools, name)
}

// convertTool rebuilds an MCP tool with its schema translated into dialect.
func convertTool(mcpTool mcp.Tool, dialect Dialect) (Tool, []string, error) {
	schema := mcpTool.InputSchema
	if schema.Type == "" && schema.Properties == nil && len(schema.Required) == 0 {
		return Tool{}, nil, errNoInputSchema
	}

	properties, required, err := extractProperties(schema.Properties, schema.Required)
	if err != nil {
		return Tool{}, nil, err
	}
	translated, malformed, err := Translate(dialect, properties, required)
	if err != nil {
		return Tool{}, nil, err
	}

	return Tool{
		Name:        mcpTool.Name,
		Description: mcpTool.Description,
		InputSchema: translated,
	}, malformed, nil
}

// extractProperties unwraps servers that report a whole JSON Schema object
// as the properties map. The unwrap happens exactly when the properties map
// has a "properties" key.
func extractProperties(properties map[string]any, required []string) (map[string]any, []string, error) {
	nested, ok := properties["properties"]
	if !ok {
		return properties, required, nil
	}
	inner, ok := nested.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("nested properties must be an object, got %T", nested)
	}
	if len(required) == 0 {
		required = stringList(properties["required"])
	}
	return inner, required, nil
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ExecuteTool calls the tool on the server. All failures are reported in the
// result content.
func (c *ServerConnection) ExecuteTool(ctx context.Context, tool Tool, args map[string]any) ExecuteToolResult {
	client, proc := c.snapshot()
	if client == nil {
		return ExecuteToolResult{Content: ContentServerNotAvailable, IsError: true}
	}
	if args == nil {
		args = map[string]any{}
	}

	callRequest := mcp.CallToolRequest{}
	callRequest.Params.Name = tool.Name
	callRequest.Params.Arguments = args

	callCtx, cancel := boundToProcess(ctx, proc)
	defer cancel()

	c.logger.Debug().Str("tool", tool.Name).Msg("Executing tool")
	result, err := client.CallTool(callCtx, callRequest)
	if err != nil {
		c.logger.Warn().Err(err).Str("tool", tool.Name).Msg("Tool execution failed")
		return ExecuteToolResult{Content: executionErrorContent(err), IsError: true}
	}

	return ExecuteToolResult{
		Content: formatResult(result),
		IsError: result != nil && result.IsError,
	}
}

// formatResult joins every content item of a tool result with newlines.
func formatResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		switch textContent := content.(type) {
		case mcp.TextContent:
			parts = append(parts, textContent.Text)
		case *mcp.TextContent:
			parts = append(parts, textContent.Text)
		default:
			parts = append(parts, fmt.Sprintf("[%s content]", contentType(content)))
		}
	}
	return strings.Join(parts, "\n")
}

// contentType names the kind of a non-text content item.
func contentType(content mcp.Content) string {
	fallback := fmt.Sprintf("%T", content)
	switch v := content.(type) {
	case mcp.ImageContent:
		fallback = "image"
		if v.Type != "" {
			return v.Type
		}
	case mcp.AudioContent:
		fallback = "audio"
		if v.Type != "" {
			return v.Type
		}
	case mcp.EmbeddedResource:
		fallback = "resource"
		if v.Type != "" {
			return v.Type
		}
	}

	data, err := sonic.Marshal(content)
	if err != nil {
		return fallback
	}
	if t, err := jsonparser.GetString(data, "type"); err == nil && t != "" {
		return t
	}
	return fallback
}

// Close releases the client and the process: the client is closed, the
// process asked to terminate and killed after the grace period, and its exit
// status logged. Close is idempotent and always returns nil; failures are
// logged.
func (c *ServerConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *ServerConnection) closeLocked() {
	if c.client != nil {
		if err := closeClientSafely(c.client, c.logger); err != nil && !isBrokenPipeError(err) {
			c.logger.Warn().Err(err).Msg("Error closing MCP client")
		}
	}

	if c.proc != nil {
		proc := c.proc
		if proc.Alive() {
			c.logger.Debug().Int("pid", proc.Pid()).Msg("Stopping server process")
		}
		_ = proc.Stop(c.opts.shutdownGrace)
		c.logger.Info().Int("pid", proc.Pid()).Str("status", proc.ExitStatus()).Msg("Server process exited")
	}

	c.client = nil
	c.proc = nil
	c.state = StateClosed
}

// closeClientSafely closes a client but gives up waiting after a timeout.
func closeClientSafely(client ProtocolClient, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), clientCloseTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- client.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Warn().Msg("Timeout closing MCP client, forcing shutdown")
		return nil
	}
}

// Package mcpgateway aggregates tools from multiple MCP servers that run as
// subprocesses, using the mark3labs/mcp-go client.
package mcpgateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Gateway owns one ServerConnection per successfully connected server and
// presents their tools as a single catalog.
type Gateway struct {
	configText string
	opts       options
	logger     zerolog.Logger

	mu          sync.RWMutex
	connections []*ServerConnection
	closed      bool
}

// New creates a gateway for the given mcpServers configuration text. The
// configuration is parsed when Connect is called.
func New(configText string, opts ...Option) (*Gateway, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to apply option: %w", err)
	}
	return &Gateway{
		configText: configText,
		opts:       o,
		logger:     o.logger,
	}, nil
}

// HasConfiguredServers reports whether the configuration declares any server.
func (g *Gateway) HasConfiguredServers() bool {
	return HasAnyServers(g.configText)
}

// DefaultEnabledServerNames returns the configured default filter. It can be
// used before Connect. An unparsable configuration yields NoFilter.
func (g *Gateway) DefaultEnabledServerNames() ServerFilter {
	config, err := ParseConfig(g.configText)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to parse MCP config for default enabled servers")
		return NoFilter()
	}
	return config.DefaultEnabledNames()
}

// Connect starts every configured server in config order. A server that
// fails to start is logged and skipped. Only configuration errors are
// returned.
func (g *Gateway) Connect(ctx context.Context) error {
	config, err := ParseConfig(g.configText)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrGatewayClosed
	}
	if len(g.connections) > 0 {
		return nil
	}
	if config.Len() == 0 {
		g.logger.Debug().Msg("No MCP servers configured")
		return nil
	}

	for _, spec := range config.Servers() {
		if err := ctx.Err(); err != nil {
			g.logger.Warn().Err(err).Str("server", spec.Name).Msg("Connect cancelled, skipping remaining servers")
			break
		}
		conn := newServerConnection(spec, g.opts)
		if err := conn.Connect(ctx); err != nil {
			g.logger.Warn().Err(err).Str("server", spec.Name).Msg("Failed to connect to MCP server, skipping")
			_ = conn.Close()
			continue
		}
		g.connections = append(g.connections, conn)
	}

	if len(g.connections) == 0 {
		g.logger.Warn().Int("configured", config.Len()).Msg("No MCP server could be connected")
	} else {
		g.logger.Info().Int("connected", len(g.connections)).Int("configured", config.Len()).Msg("MCP gateway connected")
	}
	return nil
}

// Connections returns a snapshot of the owned connections in config order.
func (g *Gateway) Connections() []*ServerConnection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*ServerConnection, len(g.connections))
	copy(out, g.connections)
	return out
}

// IsConnected reports whether any owned connection holds a client.
func (g *Gateway) IsConnected() bool {
	for _, conn := range g.Connections() {
		if conn.IsConnected() {
			return true
		}
	}
	return false
}

// Tools lists the tools of every connected server allowed by filter, with
// schemas translated into dialect. Results follow config order. An explicit
// empty filter returns no tools without contacting any server.
func (g *Gateway) Tools(ctx context.Context, dialect Dialect, filter ServerFilter) []OwnedTool {
	if filter.IsEmpty() {
		return []OwnedTool{}
	}

	var selected []*ServerConnection
	for _, conn := range g.Connections() {
		if filter.Allows(conn.Name()) {
			selected = append(selected, conn)
		}
	}
	if len(selected) == 0 {
		return []OwnedTool{}
	}

	perServer := make([][]OwnedTool, len(selected))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.opts.listConcurrency)
	for i, conn := range selected {
		group.Go(func() error {
			prefix := conn.Spec().Prefix()
			for _, tool := range conn.ListTools(groupCtx, dialect) {
				perServer[i] = append(perServer[i], OwnedTool{
					Tool:       tool,
					ServerName: conn.Name(),
					Prefix:     prefix,
				})
			}
			return nil
		})
	}
	_ = group.Wait()

	tools := []OwnedTool{}
	for _, serverTools := range perServer {
		tools = append(tools, serverTools...)
	}
	return tools
}

// ExecuteTool runs the tool on the server that owns it. Failures are
// reported in the result content and never returned as errors.
func (g *Gateway) ExecuteTool(ctx context.Context, tool OwnedTool, args map[string]any) (result ExecuteToolResult) {
	connections := g.Connections()
	if len(connections) == 0 {
		return ExecuteToolResult{Content: ContentServerNotAvailable, IsError: true}
	}

	var owner *ServerConnection
	for _, conn := range connections {
		if conn.Name() == tool.ServerName {
			owner = conn
			break
		}
	}
	if owner == nil {
		g.logger.Warn().Str("server", tool.ServerName).Str("tool", tool.Name).Msg("No connection for tool's server")
		return ExecuteToolResult{Content: serverNotAvailableContent(tool.ServerName), IsError: true}
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Str("server", tool.ServerName).Str("tool", tool.Name).Msg("Tool execution panicked")
			result = ExecuteToolResult{Content: executionErrorContent(fmt.Errorf("%v", r)), IsError: true}
		}
	}()
	return owner.ExecuteTool(ctx, tool.Tool, args)
}

// Close closes every owned connection and forgets them. It is idempotent and
// always returns nil; failures are logged.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, conn := range g.connections {
		g.logger.Debug().Str("server", conn.Name()).Msg("Closing connection")
		if err := conn.Close(); err != nil {
			g.logger.Warn().Err(err).Str("server", conn.Name()).Msg("Failed to close connection")
		}
	}
	g.connections = nil
	g.closed = true
	return nil
}

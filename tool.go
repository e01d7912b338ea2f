package mcpgateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tmc/langchaingo/tools"
)

// MCPTool implements the LangChain Tool interface for a gateway tool.
// Calls are routed through Gateway.ExecuteTool.
type MCPTool struct {
	gateway *Gateway
	tool    OwnedTool
}

var _ tools.Tool = (*MCPTool)(nil)

// NewMCPTool wraps an owned tool of gateway as a LangChain tool.
func NewMCPTool(gateway *Gateway, tool OwnedTool) *MCPTool {
	return &MCPTool{gateway: gateway, tool: tool}
}

// LangChainTools returns the gateway's tools as LangChain tools.
func (g *Gateway) LangChainTools(ctx context.Context, dialect Dialect, filter ServerFilter) []tools.Tool {
	owned := g.Tools(ctx, dialect, filter)
	out := make([]tools.Tool, 0, len(owned))
	for _, tool := range owned {
		out = append(out, NewMCPTool(g, tool))
	}
	return out
}

// Name returns the prefixed name of the tool.
func (t *MCPTool) Name() string {
	return t.tool.ExposedName()
}

// Owned returns the wrapped tool.
func (t *MCPTool) Owned() OwnedTool {
	return t.tool
}

// Description returns the description of the tool, including JSON schema if available.
func (t *MCPTool) Description() string {
	summary := t.tool.Description
	if summary == "" {
		summary = "MCP tool: " + t.tool.Name
	}
	description := fmt.Sprintf("[%s] %s", t.tool.ServerName, summary)
	if t.tool.InputSchema != nil {
		// Embed the JSON schema in the description for better LLM understanding
		schemaBytes, err := sonic.ConfigStd.MarshalIndent(t.tool.InputSchema.JSONSchema(), "", "  ")
		if err == nil {
			return fmt.Sprintf("%s\n\nInput schema (JSON):\n%s", description, string(schemaBytes))
		}
	}
	return description
}

// Call executes the tool with a JSON object input. Execution failures are
// returned as content; only malformed input is an error.
func (t *MCPTool) Call(ctx context.Context, input string) (string, error) {
	var arguments map[string]any
	if trimmed := strings.TrimSpace(input); trimmed != "" {
		if err := sonic.UnmarshalString(trimmed, &arguments); err != nil {
			return "", fmt.Errorf("invalid JSON input for tool %s: %v. Please retry with correct JSON format", t.Name(), err)
		}
	}

	result := t.gateway.ExecuteTool(ctx, t.tool, arguments)
	return result.Content, nil
}

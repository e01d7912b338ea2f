package mcpgateway

// ServerSpec describes how to launch a single configured MCP server.
type ServerSpec struct {
	Name             string
	Command          string
	Args             []string
	Env              map[string]string
	EnabledByDefault bool

	// ToolPrefix overrides the exposed-name prefix. Nil means "<name>_",
	// an empty string means no prefix.
	ToolPrefix *string
	// IncludeTools, when non-nil, is the only set of tools listed.
	IncludeTools []string
	ExcludeTools []string
}

// Prefix returns the prefix prepended to exposed tool names.
func (s ServerSpec) Prefix() string {
	if s.ToolPrefix != nil {
		return sanitizePrefix(*s.ToolPrefix)
	}
	return sanitizePrefix(s.Name + "_")
}

// ConnectionState is the lifecycle state of a ServerConnection.
type ConnectionState int

const (
	StateUnconnected ConnectionState = iota
	StateConnected
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Tool is a tool advertised by a server with its schema already translated
// into a dialect.
type Tool struct {
	Name        string
	Description string
	InputSchema *ToolSchema
}

// OwnedTool is a Tool tagged with the server that produced it.
// Two servers may expose tools with the same name; (ServerName, Tool.Name)
// identifies the tool for execution.
type OwnedTool struct {
	Tool
	ServerName string
	Prefix     string
}

// ExposedName returns the prefixed name used when the tool is offered to
// frameworks that need globally unique names.
func (t OwnedTool) ExposedName() string {
	return t.Prefix + t.Name
}

// ExecuteToolResult is the outcome of a tool execution. Failures are reported
// through Content rather than as errors.
type ExecuteToolResult struct {
	Content string
	IsError bool
}

const (
	// ContentServerNotAvailable is returned when no connection can serve a call.
	ContentServerNotAvailable = "[MCP server not available]"
)

package mcpgateway

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/buger/jsonparser"
	"github.com/bytedance/sonic"
)

const configServersKey = "mcpServers"

// ServerConfig is a parsed mcpServers configuration. Servers keep the order
// in which they are declared.
type ServerConfig struct {
	servers []ServerSpec
	index   map[string]int
}

// serverEntry is the wire form of one mcpServers entry.
type serverEntry struct {
	Command      *string           `json:"command"`
	Args         []string          `json:"args"`
	Env          map[string]string `json:"env"`
	Enabled      any               `json:"enabled"`
	Prefix       *string           `json:"prefix"`
	IncludeTools []string          `json:"includeTools"`
	ExcludeTools []string          `json:"excludeTools"`
}

// ParseConfig parses a JSON configuration with a top-level mcpServers object.
// An empty mcpServers object is valid and yields zero servers.
func ParseConfig(text string) (*ServerConfig, error) {
	data := []byte(text)
	if !sonic.Valid(data) {
		return nil, &ConfigError{Err: errors.New("config is not valid JSON")}
	}

	servers, err := serversObject(data)
	if err != nil {
		return nil, &ConfigError{Field: configServersKey, Err: err}
	}

	config := &ServerConfig{index: make(map[string]int)}
	err = jsonparser.ObjectEach(servers, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return configErrorf(configServersKey, "invalid server name %q: %v", key, err)
		}
		field := configServersKey + "." + name
		if _, exists := config.index[name]; exists {
			return configErrorf(field, "duplicate server name")
		}
		if dataType != jsonparser.Object {
			return configErrorf(field, "expected object, got %s", dataType)
		}

		spec, err := parseServerEntry(name, value)
		if err != nil {
			return err
		}
		config.index[name] = len(config.servers)
		config.servers = append(config.servers, spec)
		return nil
	})
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, &ConfigError{Field: configServersKey, Err: err}
	}

	return config, nil
}

func parseServerEntry(name string, value []byte) (ServerSpec, error) {
	field := configServersKey + "." + name

	var entry serverEntry
	if err := sonic.Unmarshal(value, &entry); err != nil {
		return ServerSpec{}, &ConfigError{Field: field, Err: err}
	}
	if entry.Command == nil || *entry.Command == "" {
		return ServerSpec{}, configErrorf(field+".command", "is required")
	}

	spec := ServerSpec{
		Name:             name,
		Command:          *entry.Command,
		Args:             entry.Args,
		Env:              entry.Env,
		EnabledByDefault: true,
		ToolPrefix:       entry.Prefix,
		IncludeTools:     entry.IncludeTools,
		ExcludeTools:     entry.ExcludeTools,
	}
	if enabled, ok := entry.Enabled.(bool); ok {
		spec.EnabledByDefault = enabled
	}
	if spec.Args == nil {
		spec.Args = []string{}
	}
	if spec.Env == nil {
		spec.Env = map[string]string{}
	}
	return spec, nil
}

// serversObject returns the raw mcpServers object of a config document.
func serversObject(data []byte) ([]byte, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("config must be a JSON object")
	}
	value, dataType, _, err := jsonparser.Get(data, configServersKey)
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return nil, errors.New("is required")
		}
		return nil, err
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("expected object, got %s", dataType)
	}
	return value, nil
}

var errStopScan = errors.New("stop scan")

// HasAnyServers reports whether the config declares at least one server.
// Any parse error yields false.
func HasAnyServers(text string) bool {
	servers, err := serversObject([]byte(text))
	if err != nil {
		return false
	}
	found := false
	_ = jsonparser.ObjectEach(servers, func(_, _ []byte, _ jsonparser.ValueType, _ int) error {
		found = true
		return errStopScan
	})
	return found
}

// ServerNames returns the declared server names in config order. Any parse
// error yields an empty list.
func ServerNames(text string) []string {
	servers, err := serversObject([]byte(text))
	if err != nil {
		return []string{}
	}
	names := []string{}
	err = jsonparser.ObjectEach(servers, func(key, _ []byte, _ jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return []string{}
	}
	return names
}

// ReadConfigFile loads a configuration document from disk.
func ReadConfigFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("config path cannot be empty")
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return string(data), nil
}

// Len returns the number of configured servers.
func (c *ServerConfig) Len() int { return len(c.servers) }

// Servers returns the server specs in config order.
func (c *ServerConfig) Servers() []ServerSpec {
	out := make([]ServerSpec, len(c.servers))
	copy(out, c.servers)
	return out
}

// Names returns the server names in config order.
func (c *ServerConfig) Names() []string {
	names := make([]string, 0, len(c.servers))
	for _, spec := range c.servers {
		names = append(names, spec.Name)
	}
	return names
}

// Lookup returns the ServerSpec of the named server.
func (c *ServerConfig) Lookup(name string) (ServerSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return ServerSpec{}, false
	}
	return c.servers[i], true
}

// DefaultEnabledNames returns NoFilter when no server is disabled, otherwise
// an explicit filter of the servers not disabled, in config order. When every
// server is disabled the filter is explicit and empty.
func (c *ServerConfig) DefaultEnabledNames() ServerFilter {
	anyDisabled := false
	enabled := make([]string, 0, len(c.servers))
	for _, spec := range c.servers {
		if !spec.EnabledByDefault {
			anyDisabled = true
			continue
		}
		enabled = append(enabled, spec.Name)
	}
	if !anyDisabled {
		return NoFilter()
	}
	return OnlyServers(enabled...)
}

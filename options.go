package mcpgateway

import (
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

const (
	// DefaultShutdownGrace bounds the wait for a server to exit after the
	// termination request before it is killed.
	DefaultShutdownGrace = 5 * time.Second

	defaultListConcurrency = 4
	defaultClientName      = "mcp-tool-gateway"
	defaultClientVersion   = "1.0.0"
)

// StderrHandler receives each line a server writes to stderr.
type StderrHandler func(server, line string)

type options struct {
	logger          zerolog.Logger
	loggerSet       bool
	logLevel        string
	settings        Settings
	clientFactory   ClientFactory
	stderrHandler   StderrHandler
	listConcurrency int
	clientInfo      mcp.Implementation
	shutdownGrace   time.Duration
}

func defaultOptions() options {
	return options{
		logLevel:        "info",
		clientFactory:   NewClientFactory(),
		listConcurrency: defaultListConcurrency,
		clientInfo: mcp.Implementation{
			Name:    defaultClientName,
			Version: defaultClientVersion,
		},
		shutdownGrace: DefaultShutdownGrace,
	}
}

func buildOptions(opts []Option) (options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return o, err
		}
	}
	if !o.loggerSet {
		o.logger = NewDefaultLogger(o.logLevel)
	}
	return o, nil
}

// Option represents a configuration option for the gateway and its connections.
type Option func(*options) error

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		o.loggerSet = true
		return nil
	}
}

// WithLogLevel sets the level of the default logger. "silent" disables it.
func WithLogLevel(level string) Option {
	return func(o *options) error {
		o.logLevel = level
		return nil
	}
}

// WithSettings sets the application settings consulted when servers start.
func WithSettings(settings Settings) Option {
	return func(o *options) error {
		o.settings = settings
		return nil
	}
}

// WithClientFactory injects a custom ClientFactory (e.g., for testing).
func WithClientFactory(factory ClientFactory) Option {
	return func(o *options) error {
		if factory == nil {
			return errors.New("client factory cannot be nil")
		}
		o.clientFactory = factory
		return nil
	}
}

// WithStderrHandler registers a callback for server stderr lines.
func WithStderrHandler(handler StderrHandler) Option {
	return func(o *options) error {
		o.stderrHandler = handler
		return nil
	}
}

// WithListConcurrency bounds how many servers are asked for tools at once.
func WithListConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.New("list concurrency must be at least 1")
		}
		o.listConcurrency = n
		return nil
	}
}

// WithClientInfo sets the client name and version sent in the handshake.
func WithClientInfo(name, version string) Option {
	return func(o *options) error {
		if name == "" {
			return errors.New("client name cannot be empty")
		}
		o.clientInfo = mcp.Implementation{Name: name, Version: version}
		return nil
	}
}

// withShutdownGrace shortens the termination grace period in tests.
func withShutdownGrace(d time.Duration) Option {
	return func(o *options) error {
		o.shutdownGrace = d
		return nil
	}
}

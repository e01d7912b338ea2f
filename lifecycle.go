package mcpgateway

import (
	"context"
	"fmt"
)

// WithGateway runs body with a gateway for configText. When no servers are
// configured body runs without connecting. Otherwise the gateway is connected
// first and closed after body returns, panics included.
func WithGateway(
	ctx context.Context,
	configText string,
	settings Settings,
	body func(ctx context.Context, gateway *Gateway) error,
	opts ...Option,
) error {
	if settings != nil {
		opts = append(opts, WithSettings(settings))
	}
	gateway, err := New(configText, opts...)
	if err != nil {
		return fmt.Errorf("create MCP gateway: %w", err)
	}

	if !gateway.HasConfiguredServers() {
		return body(ctx, gateway)
	}

	defer func() {
		_ = gateway.Close()
	}()
	if err := gateway.Connect(ctx); err != nil {
		return err
	}
	return body(ctx, gateway)
}

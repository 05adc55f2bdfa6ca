package client

import (
	"context"
	"fmt"

	"ipc-courier/loadbalance"
	"ipc-courier/registry"
)

// Discover looks up the endpoints announced for service, picks one with bal
// and returns a disconnected client for it.
func Discover(ctx context.Context, reg registry.Registry, bal loadbalance.Balancer, service string, opts ...Option) (*Client, error) {
	endpoints, err := reg.Discover(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("%w: discovering %s: %w", ErrUnableToConnectToServer, service, err)
	}

	endpoint, err := bal.Pick(endpoints)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnableToConnectToServer, service, err)
	}

	c := New(endpoint.Path, opts...)
	c.logger.Debug().
		Str("service", service).
		Str("balancer", bal.Name()).
		Str("version", endpoint.Version).
		Msg("endpoint selected")
	return c, nil
}

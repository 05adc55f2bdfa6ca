// Package registry announces courier server endpoints so clients can find
// a socket path by service name instead of hard-coding it.
//
// Endpoints are always local socket paths. The registry only tells a client
// where to connect; it never carries traffic.
package registry

import "context"

// Endpoint describes one listening courier server.
type Endpoint struct {
	Path    string `json:"path"`    // Unix socket path
	Weight  int    `json:"weight"`  // Weight for load balancing
	Version string `json:"version"` // Library version of the announcing server
}

type Registry interface {
	Register(ctx context.Context, service string, endpoint Endpoint, ttl int64) error
	Deregister(ctx context.Context, service string, path string) error
	Discover(ctx context.Context, service string) ([]Endpoint, error)
	Watch(ctx context.Context, service string) <-chan []Endpoint
}

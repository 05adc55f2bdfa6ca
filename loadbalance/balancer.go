// Package loadbalance picks one courier endpoint when several servers
// announce the same service.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity servers
//   - WeightedRandom:  servers announced with different weights
//   - ConsistentHash:  a caller key always lands on the same server
package loadbalance

import (
	"errors"
	"fmt"

	"ipc-courier/registry"
)

// ErrNoEndpoints is returned when there is nothing to pick from.
var ErrNoEndpoints = errors.New("loadbalance: no endpoints available")

// Balancer is the interface for load balancing strategies.
// A client calls Pick once per connection it opens.
type Balancer interface {
	// Pick selects one endpoint from the available list.
	// Must be goroutine-safe.
	Pick(endpoints []registry.Endpoint) (*registry.Endpoint, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer registered under name: "round-robin",
// "weighted-random" or "consistent-hash". key is only used by
// consistent-hash.
func New(name, key string) (Balancer, error) {
	switch name {
	case "round-robin", "":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash":
		return NewConsistentHashBalancer(key), nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown balancer %q", name)
	}
}

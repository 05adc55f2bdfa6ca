package loadbalance

import (
	"ipc-courier/registry"
	"sync/atomic"
)

// RoundRobinBalancer hands out endpoints in order. An atomic counter keeps
// it lock-free and goroutine-safe.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

// Pick selects the next endpoint in round-robin order.
func (b *RoundRobinBalancer) Pick(endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	index := (b.counter.Add(1) - 1) % uint64(len(endpoints))
	return &endpoints[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}

package loadbalance

import (
	"fmt"
	"hash/crc32"
	"ipc-courier/registry"
	"slices"
	"sort"
	"sync"
)

// ConsistentHashBalancer maps keys to endpoints using a hash ring. The same
// key maps to the same endpoint until the set of endpoints changes.
//
// Each endpoint is placed on the ring as many virtual nodes so that a
// handful of servers still spread evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int    // Virtual nodes per endpoint
	key      string // Key used by Pick

	mu    sync.Mutex
	ring  []uint32                      // Sorted hash values on the ring
	nodes map[uint32]*registry.Endpoint // Hash value → endpoint
	paths []string                      // Sorted paths the ring was built from
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per
// endpoint. Pick routes by key; Lookup accepts any key.
func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		key:      key,
		nodes:    make(map[uint32]*registry.Endpoint),
	}
}

// Add places an endpoint onto the ring.
func (b *ConsistentHashBalancer) Add(endpoint *registry.Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(endpoint)
	b.paths = append(b.paths, endpoint.Path)
	slices.Sort(b.paths)
}

func (b *ConsistentHashBalancer) add(endpoint *registry.Endpoint) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE(fmt.Appendf(nil, "%s#%d", endpoint.Path, i))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = endpoint
	}
	slices.Sort(b.ring)
}

// Lookup finds the endpoint responsible for key: the first ring node at or
// after the key's hash, wrapping around to the start of the ring.
func (b *ConsistentHashBalancer) Lookup(key string) (*registry.Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup(key)
}

func (b *ConsistentHashBalancer) lookup(key string) (*registry.Endpoint, error) {
	if len(b.ring) == 0 {
		return nil, ErrNoEndpoints
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

// Pick rebuilds the ring when the endpoint set differs from the last call,
// then looks up the balancer's key.
func (b *ConsistentHashBalancer) Pick(endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	paths := make([]string, len(endpoints))
	for i, e := range endpoints {
		paths[i] = e.Path
	}
	slices.Sort(paths)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !slices.Equal(paths, b.paths) {
		b.ring = b.ring[:0]
		clear(b.nodes)
		for i := range endpoints {
			endpoint := endpoints[i]
			b.add(&endpoint)
		}
		b.paths = paths
	}
	return b.lookup(b.key)
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

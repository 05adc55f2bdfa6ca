package loadbalance

import (
	"fmt"
	"ipc-courier/registry"
	"math/rand/v2"
)

// WeightedRandomBalancer picks endpoints with probability proportional to
// their weight. Endpoints with a weight of zero or less count as weight 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	totalWeight := 0
	for _, e := range endpoints {
		totalWeight += weightOf(e)
	}

	r := rand.IntN(totalWeight)
	for i := range endpoints {
		r -= weightOf(endpoints[i])
		if r < 0 {
			return &endpoints[i], nil
		}
	}

	return nil, fmt.Errorf("loadbalance: weighted selection fell through with %d endpoints", len(endpoints))
}

func weightOf(e registry.Endpoint) int {
	if e.Weight <= 0 {
		return 1
	}
	return e.Weight
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}

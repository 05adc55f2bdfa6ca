package registry

import (
	"context"
	"slices"
	"sync"
)

// MemoryRegistry is an in-process Registry. It ignores TTLs and is meant for
// tests and for servers and clients living in one process.
type MemoryRegistry struct {
	mu        sync.Mutex
	endpoints map[string][]Endpoint
	watchers  map[string][]chan []Endpoint
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		endpoints: make(map[string][]Endpoint),
		watchers:  make(map[string][]chan []Endpoint),
	}
}

// Register adds or replaces the endpoint with the same path.
func (m *MemoryRegistry) Register(_ context.Context, service string, endpoint Endpoint, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := slices.DeleteFunc(m.endpoints[service], func(e Endpoint) bool {
		return e.Path == endpoint.Path
	})
	m.endpoints[service] = append(list, endpoint)
	m.notify(service)
	return nil
}

func (m *MemoryRegistry) Deregister(_ context.Context, service string, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endpoints[service] = slices.DeleteFunc(m.endpoints[service], func(e Endpoint) bool {
		return e.Path == path
	})
	m.notify(service)
	return nil
}

func (m *MemoryRegistry) Discover(_ context.Context, service string) ([]Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.endpoints[service]), nil
}

// Watch emits the endpoint list after every change. Slow readers only see
// the most recent list.
func (m *MemoryRegistry) Watch(ctx context.Context, service string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	m.mu.Lock()
	m.watchers[service] = append(m.watchers[service], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		m.watchers[service] = slices.DeleteFunc(m.watchers[service], func(c chan []Endpoint) bool {
			return c == ch
		})
		m.mu.Unlock()
		close(ch)
	}()

	return ch
}

// notify must be called with m.mu held.
func (m *MemoryRegistry) notify(service string) {
	snapshot := slices.Clone(m.endpoints[service])
	for _, ch := range m.watchers[service] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

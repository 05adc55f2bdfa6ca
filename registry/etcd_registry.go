package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/courier/"

// EtcdRegistry implements Registry using etcd v3. Endpoints are stored as
//
//	Key:   /courier/{service}/{socket path}
//	Value: JSON-encoded Endpoint
//
// Registration uses TTL-based leases: if a server dies without
// deregistering, the lease expires and the entry disappears.
type EtcdRegistry struct {
	client *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // key → lease kept alive by this process
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c, leases: make(map[string]clientv3.LeaseID)}, nil
}

func serviceKey(service, path string) string {
	return keyPrefix + service + "/" + path
}

func servicePrefix(service string) string {
	return keyPrefix + service + "/"
}

// Register stores endpoint under service with a TTL lease and keeps the
// lease alive until Deregister or Close.
//
// Flow:
//  1. Create a lease with the given TTL (seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease
func (r *EtcdRegistry) Register(ctx context.Context, service string, endpoint Endpoint, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: granting lease: %w", err)
	}

	val, err := json.Marshal(endpoint)
	if err != nil {
		return err
	}

	key := serviceKey(service, endpoint.Path)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: storing %s: %w", key, err)
	}

	// The keepalive outlives the registration call, so it must not inherit
	// the caller's context.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keeping lease alive: %w", err)
	}
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()
	return nil
}

// Deregister removes an endpoint and revokes its lease, which also stops
// the keepalive started by Register.
func (r *EtcdRegistry) Deregister(ctx context.Context, service string, path string) error {
	key := serviceKey(service, path)

	r.mu.Lock()
	leaseID, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if ok {
		if _, err := r.client.Revoke(ctx, leaseID); err == nil {
			return nil
		}
	}
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("registry: deleting %s: %w", key, err)
	}
	return nil
}

// Discover returns every endpoint currently registered for service.
func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, servicePrefix(service), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var endpoint Endpoint
		if err := json.Unmarshal(kv.Value, &endpoint); err != nil {
			continue // Skip malformed entries
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, nil
}

// Watch emits the full endpoint list for service whenever it changes. The
// channel closes when ctx is cancelled.
func (r *EtcdRegistry) Watch(ctx context.Context, service string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, servicePrefix(service), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list rather than applying individual events.
			endpoints, err := r.Discover(ctx, service)
			if err != nil {
				continue
			}
			select {
			case ch <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Close releases the etcd client. Leases still held by this registry are
// left to expire.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

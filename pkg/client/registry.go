package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var ErrUnknownPeer = errors.New("unknown peer")

// Peer describes a service reachable through a Registry.
type Peer struct {
	Name    string
	BaseURL string

	// Timeout overrides the registry-wide per-attempt timeout when set.
	Timeout time.Duration
}

// Registry holds one client per peer service. Clients share the options the
// registry was created with.
type Registry struct {
	mu       sync.RWMutex
	defaults []Option
	clients  map[string]*Client
}

func NewRegistry(defaults ...Option) *Registry {
	return &Registry{
		defaults: defaults,
		clients:  make(map[string]*Client),
	}
}

// Register creates (or replaces) the client for a peer.
func (r *Registry) Register(p Peer, opts ...Option) *Client {
	all := make([]Option, 0, len(r.defaults)+len(opts)+2)
	all = append(all, r.defaults...)
	all = append(all, WithTargetService(p.Name))
	if p.Timeout > 0 {
		all = append(all, WithTimeout(p.Timeout))
	}
	all = append(all, opts...)

	c := New(p.BaseURL, all...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[p.Name] = c
	return c
}

func (r *Registry) Get(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, name)
	}
	return c, nil
}

// Names returns the registered peer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HealthCheckAll checks every registered peer concurrently.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	results, _ := r.HealthCheckPeers(ctx, r.Names()...)
	return results
}

// HealthCheckPeers checks only the named peers, concurrently. Nothing is
// probed when a name is not registered.
func (r *Registry) HealthCheckPeers(ctx context.Context, names ...string) (map[string]HealthStatus, error) {
	clients := make(map[string]*Client, len(names))
	for _, name := range names {
		c, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		clients[name] = c
	}

	results := make(map[string]HealthStatus, len(clients))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, c := range clients {
		wg.Add(1)
		go func(name string, c *Client) {
			defer wg.Done()
			status := c.HealthCheck(ctx)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()
	return results, nil
}

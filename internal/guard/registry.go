package guard

import (
	"fmt"
	"sync"

	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/validation"
)

// Registry is the side-table mapping endpoint identifiers to their static
// authorization metadata. It is populated when the service registers its
// endpoints and only read while requests are handled.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]core.EndpointMetadata
}

func NewRegistry() *Registry {
	return &Registry{
		endpoints: make(map[string]core.EndpointMetadata),
	}
}

// Register validates the metadata, compiles its requirement and stores it
// under id, replacing any earlier registration.
func (r *Registry) Register(id string, meta core.EndpointMetadata) error {
	rule, err := validation.ValidateEndpoint(core.EndpointRule{ID: id, Metadata: meta})
	if err != nil {
		return fmt.Errorf("registering endpoint: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[rule.ID] = rule.Metadata
	return nil
}

// RegisterRules registers already validated rules, e.g. from the config file.
func (r *Registry) RegisterRules(rules []core.EndpointRule) error {
	for _, rule := range rules {
		if err := r.Register(rule.ID, rule.Metadata); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the metadata of an endpoint. Unknown endpoints yield zero
// metadata, meaning any authenticated caller is allowed.
func (r *Registry) Lookup(id string) (core.EndpointMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.endpoints[id]
	return meta, ok
}

// Rules returns a snapshot of all registered endpoints.
func (r *Registry) Rules() []core.EndpointRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules := make([]core.EndpointRule, 0, len(r.endpoints))
	for id, meta := range r.endpoints {
		rules = append(rules, core.EndpointRule{ID: id, Metadata: meta})
	}
	return rules
}

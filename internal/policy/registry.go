package policy

import (
	"sort"
	"strings"
)

// DefaultTLD is appended to bare item names that are neither an alias nor a domain.
const DefaultTLD = ".com"

// Registry holds all item blocking policies.
// This is the in-memory catalog; rules refer to entries by ID.
type Registry struct {
	policies map[string]ItemPolicy
}

// NewRegistry creates a registry with all default policies.
func NewRegistry() *Registry {
	return NewRegistryWithPolicies(defaultPolicies()...)
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...ItemPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]ItemPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry, replacing any with the same ID.
func (r *Registry) Register(p ItemPolicy) {
	r.policies[strings.ToLower(p.ID())] = p
}

// Get returns a policy by ID, case-insensitively.
func (r *Registry) Get(id string) (ItemPolicy, bool) {
	p, ok := r.policies[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// GetAll returns all registered policies ordered by ID.
func (r *Registry) GetAll() []ItemPolicy {
	result := make([]ItemPolicy, 0, len(r.policies))
	for _, id := range r.List() {
		result = append(result, r.policies[id])
	}
	return result
}

// List returns all policy IDs in sorted order.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve maps one logical item to concrete domains. A known site alias
// expands to its domain list, a name containing a dot is already a domain,
// anything else gets DefaultTLD appended.
func (r *Registry) Resolve(item string) []string {
	name := strings.ToLower(strings.TrimSpace(item))
	if name == "" {
		return nil
	}
	if p, ok := r.policies[name]; ok && len(p.Domains()) > 0 {
		out := make([]string, len(p.Domains()))
		copy(out, p.Domains())
		return out
	}
	if strings.Contains(name, ".") {
		return []string{name}
	}
	return []string{name + DefaultTLD}
}

// ProcessPatterns returns the process patterns for item, or nil when the
// item has no known processes.
func (r *Registry) ProcessPatterns(item string) []string {
	p, ok := r.Get(item)
	if !ok {
		return nil
	}
	return p.ProcessPatterns()
}

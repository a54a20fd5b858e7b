package migration

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Registry holds every known migration unit keyed by (domain, version).
// Units are validated and deep-copied on registration.
type Registry struct {
	mu    sync.RWMutex
	units map[string][]Unit
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string][]Unit)}
}

// Register adds units to the registry. Either every unit is accepted or none is.
// All errors wrap ErrConfiguration.
func (r *Registry) Register(units ...Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make(map[string][]Unit)

	for i := range units {
		u := &units[i]

		if err := u.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}

		if r.has(u.Domain, u.Version) || hasVersion(staged[u.Domain], u.Version) {
			return fmt.Errorf("%w: %w: %s", ErrConfiguration, ErrDuplicateVersion, u.ID())
		}

		c := u.Clone()
		if c.Checksum == "" {
			c.Checksum = ComputeChecksum(fingerprint(&c))
		}

		staged[u.Domain] = append(staged[u.Domain], c)
	}

	for domain, list := range staged {
		r.units[domain] = Sort(append(r.units[domain], list...))
	}

	return nil
}

// MustRegister is Register for compiled-in declarations. It panics on error.
func (r *Registry) MustRegister(units ...Unit) {
	if err := r.Register(units...); err != nil {
		panic(err)
	}
}

func (r *Registry) has(domain string, v Version) bool {
	return hasVersion(r.units[domain], v)
}

func hasVersion(units []Unit, v Version) bool {
	for i := range units {
		if units[i].Version == v {
			return true
		}
	}

	return false
}

// Domains returns every registered domain name in sorted order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.units))
	for d := range r.units {
		out = append(out, d)
	}

	sort.Strings(out)

	return out
}

// Units returns copies of a domain's units in ascending version order.
func (r *Registry) Units(domain string) []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.units[domain]
	out := make([]Unit, len(list))

	for i := range list {
		out[i] = list[i].Clone()
	}

	return out
}

// Latest returns the highest-versioned unit of a domain.
func (r *Registry) Latest(domain string) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.units[domain]
	if len(list) == 0 {
		return Unit{}, false
	}

	return list[len(list)-1].Clone(), true
}

// Next returns the smallest-versioned unit strictly greater than after.
// Gaps in the version chain are allowed.
func (r *Registry) Next(domain string, after Version) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.units[domain] {
		if after.Less(r.units[domain][i].Version) {
			return r.units[domain][i].Clone(), true
		}
	}

	return Unit{}, false
}

// Pending returns every unit of a domain strictly greater than after.
func (r *Registry) Pending(domain string, after Version) []Unit {
	var out []Unit

	for _, u := range r.Units(domain) {
		if after.Less(u.Version) {
			out = append(out, u)
		}
	}

	return out
}

// Tables returns every table name a domain's units ever declare, rename
// columns in, or remove. Used to attribute leftover backups to domains.
func (r *Registry) Tables(domain string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string

	for i := range r.units[domain] {
		for _, name := range r.units[domain][i].AffectedTables() {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}

	sort.Strings(out)

	return out
}

package server

import (
	"sync"
	"time"
)

// portalRegistry holds the live portal contexts keyed by portal id
type portalRegistry struct {
	mu      sync.RWMutex
	portals map[string]*portal
}

func newPortalRegistry() *portalRegistry {
	return &portalRegistry{
		portals: make(map[string]*portal),
	}
}

func (r *portalRegistry) Get(id string) (*portal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.portals[id]
	return p, ok
}

// GetOrCreate returns the portal for id, creating it with create when absent
func (r *portalRegistry) GetOrCreate(id string, create func(id string) (*portal, error)) (*portal, error) {
	if p, ok := r.Get(id); ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.portals[id]; ok {
		return p, nil
	}
	p, err := create(id)
	if err != nil {
		return nil, err
	}
	r.portals[id] = p
	return p, nil
}

// Prune removes and returns portals unused for longer than maxAge
func (r *portalRegistry) Prune(now time.Time, maxAge time.Duration) []*portal {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned []*portal
	for id, p := range r.portals {
		if p.idleSince(now) > maxAge {
			pruned = append(pruned, p)
			delete(r.portals, id)
		}
	}
	return pruned
}

// DeleteAll removes and returns every portal
func (r *portalRegistry) DeleteAll() []*portal {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*portal, 0, len(r.portals))
	for id, p := range r.portals {
		all = append(all, p)
		delete(r.portals, id)
	}
	return all
}

func (r *portalRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.portals)
}

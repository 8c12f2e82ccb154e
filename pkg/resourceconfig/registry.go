package resourceconfig

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry is the allocator-facing read path over the Resource-Config
// Registry: CRUD passes straight through to Store, while Get is cached
// and collapses concurrent misses for the same id into a single query.
type Registry struct {
	store Store

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*ResourceConfig
}

// NewRegistry wraps store with a read-through cache.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, cache: make(map[string]*ResourceConfig)}
}

// Get returns the named ResourceConfig, serving from cache when possible.
func (r *Registry) Get(ctx context.Context, id string) (*ResourceConfig, error) {
	r.mu.RLock()
	rc, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return rc, nil
	}

	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		rc, err := r.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[id] = rc
		r.mu.Unlock()
		return rc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResourceConfig), nil
}

// Create stores a new ResourceConfig and primes the cache.
func (r *Registry) Create(ctx context.Context, rc *ResourceConfig) error {
	if err := r.store.Create(ctx, rc); err != nil {
		return err
	}
	r.mu.Lock()
	r.cache[rc.ID] = rc
	r.mu.Unlock()
	return nil
}

// Update stores a modified ResourceConfig and invalidates its cache entry.
func (r *Registry) Update(ctx context.Context, rc *ResourceConfig) error {
	if err := r.store.Update(ctx, rc); err != nil {
		return err
	}
	r.invalidate(rc.ID)
	return nil
}

// Delete removes a ResourceConfig and invalidates its cache entry.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(id)
	return nil
}

// List returns every ResourceConfig, bypassing the cache.
func (r *Registry) List(ctx context.Context) ([]*ResourceConfig, error) {
	return r.store.List(ctx)
}

func (r *Registry) invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

package stores

import (
	"fmt"
	"sync"

	"github.com/discounthunter/backend/internal/domain"
)

type registration struct {
	adapter domain.StoreAdapter
	kind    string
	enabled bool
}

// Registry holds every known store adapter together with its enabled preference.
// It implements domain.StoreCatalog.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*registration
}

// NewRegistry creates an empty store registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registration),
	}
}

// Register adds an adapter under its ID. Registering the same id twice is an error.
func (r *Registry) Register(adapter domain.StoreAdapter, kind string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := adapter.ID()
	if id == "" {
		return fmt.Errorf("store adapter %q has no id", adapter.Name())
	}
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("store %q already registered", id)
	}

	r.entries[id] = &registration{adapter: adapter, kind: kind, enabled: enabled}
	r.order = append(r.order, id)
	return nil
}

// Enabled returns enabled adapters in registration order. When ids is non-empty
// only those stores are considered; unknown ids are ignored.
func (r *Registry) Enabled(ids []string) []domain.StoreAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var wanted map[string]bool
	if len(ids) > 0 {
		wanted = make(map[string]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}

	adapters := make([]domain.StoreAdapter, 0, len(r.order))
	for _, id := range r.order {
		reg := r.entries[id]
		if !reg.enabled {
			continue
		}
		if wanted != nil && !wanted[id] {
			continue
		}
		adapters = append(adapters, reg.adapter)
	}
	return adapters
}

// List describes every registered store in registration order
func (r *Registry) List() []domain.StoreInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]domain.StoreInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.entries[id].info())
	}
	return infos
}

// SetEnabled toggles a store. Jobs already running keep the adapters they started with.
func (r *Registry) SetEnabled(id string, enabled bool) (domain.StoreInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[id]
	if !ok {
		return domain.StoreInfo{}, fmt.Errorf("%w: %s", domain.ErrStoreNotFound, id)
	}
	reg.enabled = enabled
	return reg.info(), nil
}

func (reg *registration) info() domain.StoreInfo {
	return domain.StoreInfo{
		ID:      reg.adapter.ID(),
		Name:    reg.adapter.Name(),
		Kind:    reg.kind,
		Enabled: reg.enabled,
	}
}

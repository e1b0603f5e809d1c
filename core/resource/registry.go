package resource

import (
	"sync"
	"time"
)

// Registry tracks live managers so the goroutine owning the shared context
// can drain post-sync work for all of them in one call. Create one at
// application start and hand it to every manager with WithRegistry.
type Registry struct {
	mu       sync.RWMutex
	managers []*Manager
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds m. Adding the same manager twice is a no-op.
func (r *Registry) Register(m *Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.managers {
		if existing == m {
			return
		}
	}
	r.managers = append(r.managers, m)
}

// Unregister removes m.
func (r *Registry) Unregister(m *Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.managers {
		if existing == m {
			r.managers = append(r.managers[:i], r.managers[i+1:]...)
			return
		}
	}
}

// Managers returns the registered managers in registration order.
func (r *Registry) Managers() []*Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Manager, len(r.managers))
	copy(out, r.managers)
	return out
}

// PerformAllPostSync spends one shared budget on the post-sync work of every
// async manager, in registration order, and returns what is left.
func (r *Registry) PerformAllPostSync(budget time.Duration) time.Duration {
	left := budget
	for _, m := range r.Managers() {
		if left <= 0 {
			return 0
		}
		if !m.UsesAsync() || m.IsShutDown() {
			continue
		}
		left, _ = m.ProcessPostSync(left)
	}
	return left
}

package loader

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Feature is a module that mounts routes on the application.
type Feature interface {
	Name() string
	IsEnabled() bool
	Load(app fiber.Router) error
}

// Closer is implemented by features owning background resources.
type Closer interface {
	Close() error
}

// Manager holds the registered features.
type Manager struct {
	features []Feature
	loaded   []Feature
}

// NewManager creates an empty feature manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a feature. Features load in registration order.
func (m *Manager) Register(f Feature) {
	m.features = append(m.features, f)
}

// LoadAll loads every enabled feature and stops at the first failure.
func (m *Manager) LoadAll(app fiber.Router) error {
	for _, f := range m.features {
		if !f.IsEnabled() {
			continue
		}
		if err := f.Load(app); err != nil {
			return fmt.Errorf("feature %s: %w", f.Name(), err)
		}
		m.loaded = append(m.loaded, f)
	}
	return nil
}

// Loaded returns the names of the features loaded so far.
func (m *Manager) Loaded() []string {
	names := make([]string, len(m.loaded))
	for i, f := range m.loaded {
		names[i] = f.Name()
	}
	return names
}

// CloseAll closes loaded features in reverse order.
func (m *Manager) CloseAll() error {
	var errs []error
	for i := len(m.loaded) - 1; i >= 0; i-- {
		if c, ok := m.loaded[i].(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("feature %s: %w", m.loaded[i].Name(), err))
			}
		}
	}
	m.loaded = nil
	return errors.Join(errs...)
}

package handler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Loader is a registry of handler factories keyed by identifier.
// Registration happens during startup; resolution is safe for concurrent use.
type Loader struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{factories: make(map[string]Factory)}
}

// Register adds a factory under id.
func (l *Loader) Register(id string, factory Factory) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("register handler: empty identifier")
	}
	if factory == nil {
		return fmt.Errorf("register handler %q: nil factory", id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.factories[id]; exists {
		return fmt.Errorf("register handler %q: %w", id, ErrAlreadyRegistered)
	}
	l.factories[id] = factory
	return nil
}

// MustRegister is Register that panics on error, for init-time wiring.
func (l *Loader) MustRegister(id string, factory Factory) {
	if err := l.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve returns the factory registered under id.
func (l *Loader) Resolve(id string) (Factory, error) {
	l.mu.RLock()
	factory, ok := l.factories[id]
	l.mu.RUnlock()

	if !ok {
		return nil, &ResolutionError{Handler: id}
	}
	return factory, nil
}

// Instantiate calls factory and converts every way it can fail, including a
// panic, into an InstantiationError.
func (l *Loader) Instantiate(id string, factory Factory) (h Handler, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = &InstantiationError{Handler: id, Cause: &PanicError{Value: r}}
		}
	}()

	h, err = factory()
	if err != nil {
		return nil, &InstantiationError{Handler: id, Cause: err}
	}
	if h == nil {
		return nil, &InstantiationError{Handler: id, Cause: fmt.Errorf("factory returned nil handler")}
	}
	return h, nil
}

// IDs returns all registered identifiers in sorted order.
func (l *Loader) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.factories))
	for id := range l.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered factories.
func (l *Loader) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.factories)
}

// Missing returns the identifiers in ids that have no factory.
func (l *Loader) Missing(ids []string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := l.factories[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

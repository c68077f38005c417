package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/luma/sprt/protocol"
)

var (
	ErrUnknownApp   = errors.New("unknown application")
	ErrDuplicateApp = errors.New("application already registered")
)

// Factory creates the initial step of a fresh session of an application. Steps
// created by one call must not share mutable state with those of another.
type Factory func() Step

// Registry maps application names to their factories. Clients pick an
// application by calling its name as their first function.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		apps: make(map[string]Factory),
	}
}

// Register adds an application. Names must be tokens and can only be
// registered once.
func (r *Registry) Register(name string, factory Factory) error {
	if !protocol.IsToken(name) {
		return fmt.Errorf("application name %q is not a token: %w", name, protocol.ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.apps[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateApp)
	}

	r.apps[name] = factory
	return nil
}

// MustRegister is like Register but panics on error, for use at startup
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Start creates the initial step of a new session of the named application
func (r *Registry) Start(name string) (Step, error) {
	r.mu.RLock()
	factory, ok := r.apps[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownApp)
	}

	step := factory()
	if step == nil {
		return nil, fmt.Errorf("%s: factory returned no step", name)
	}

	return step, nil
}

// Names returns the registered application names in ascending order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

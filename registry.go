package modkit

import (
	"context"
	"reflect"
	"sync"
)

// ModuleRegistry binds module classes to their Injectors. One registry is
// threaded through a compile run, so separate runs (and tests) stay
// isolated.
type ModuleRegistry struct {
	meta   *Metadata
	logger Logger

	mu        sync.Mutex
	injectors map[reflect.Type]*Injector
	order     []*Injector

	lifecycle *lifecycleManager
	waits     *waitGraph
}

// NewModuleRegistry creates an empty registry reading descriptors from meta.
func NewModuleRegistry(meta *Metadata, opts ...Option) *ModuleRegistry {
	o := buildOptions(opts)
	return &ModuleRegistry{
		meta:      meta,
		logger:    o.logger,
		injectors: make(map[reflect.Type]*Injector),
		lifecycle: newLifecycleManager(),
		waits:     newWaitGraph(),
	}
}

// Metadata returns the descriptor store.
func (r *ModuleRegistry) Metadata() *Metadata {
	return r.meta
}

// Lookup returns the Injector bound to module type t.
func (r *ModuleRegistry) Lookup(t reflect.Type) (*Injector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inj, ok := r.injectors[t]
	return inj, ok
}

// Injector returns the Injector bound to cls, creating it on first use.
func (r *ModuleRegistry) Injector(cls Class) (*Injector, error) {
	if inj, ok := r.Lookup(cls.Type()); ok {
		return inj, nil
	}
	return NewInjector(r, cls)
}

// Injectors returns every bound Injector in creation order.
func (r *ModuleRegistry) Injectors() []*Injector {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Injector, len(r.order))
	copy(out, r.order)
	return out
}

// Shutdown runs the shutdown hooks of every instance constructed through
// this registry, in construction order.
func (r *ModuleRegistry) Shutdown(ctx context.Context) error {
	return r.lifecycle.shutdown(ctx)
}

func (r *ModuleRegistry) bind(inj *Injector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := inj.class.Type()
	if _, ok := r.injectors[t]; ok {
		return AlreadyBoundError{Type: t}
	}

	r.injectors[t] = inj
	r.order = append(r.order, inj)
	return nil
}

func (r *ModuleRegistry) isBound(t reflect.Type) bool {
	_, ok := r.Lookup(t)
	return ok
}

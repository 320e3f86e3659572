package modkit

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Injector is the dependency scope of one module. It owns the module's
// providers and caches every value it resolves, so each token is constructed
// at most once per Injector.
//
// A token with no local provider is searched for in the imported modules,
// depth first in declaration order. A provider found in an import runs with a
// Resolver bound to the requesting Injector and its value is cached there.
// Two modules that import the same provider therefore each get their own
// instance, and the instance a module sees for a token shared by several of
// its imports is the one from the first import that declares it.
type Injector struct {
	id       string
	class    Class
	desc     ModuleDescriptor
	registry *ModuleRegistry
	logger   Logger

	mu        sync.RWMutex
	providers map[Token]Provider
	instances map[Token]any

	flight singleflight.Group
}

var _ Resolver = (*Injector)(nil)

// NewInjector creates the Injector for module cls and binds it in reg.
//
// It fails with AlreadyBoundError when reg already holds an Injector for cls
// and with NotAModuleError when cls has no module descriptor or declares a
// malformed provider.
func NewInjector(reg *ModuleRegistry, cls Class) (*Injector, error) {
	if cls.IsZero() {
		return nil, NotAModuleError{Cause: ErrNilClass}
	}

	if reg.isBound(cls.Type()) {
		return nil, AlreadyBoundError{Type: cls.Type()}
	}

	desc, ok := reg.meta.ModuleDescriptor(cls.Type())
	if !ok {
		return nil, NotAModuleError{Type: cls.Type()}
	}

	inj := &Injector{
		id:        uuid.NewString(),
		class:     cls,
		desc:      desc,
		registry:  reg,
		logger:    reg.logger,
		providers: make(map[Token]Provider),
		instances: make(map[Token]any),
	}

	// The module can inject itself unless a declared provider takes its token.
	inj.providers[cls.Token()] = ClassProvider(cls.Token(), cls, reg.meta.depsOf(cls.Type())...)

	for i, item := range desc.Providers {
		p, err := inj.normalizeProvider(item)
		if err != nil {
			return nil, NotAModuleError{Type: cls.Type(), Cause: fmt.Errorf("provider %d: %w", i, err)}
		}
		if _, dup := inj.providers[p.Provide]; dup && p.Provide != cls.Token() {
			inj.logger.Warn("provider overridden", "module", cls.String(), "token", p.Provide.String())
		}
		inj.providers[p.Provide] = p
	}

	if err := reg.bind(inj); err != nil {
		return nil, err
	}

	inj.logger.Debug("injector created",
		"module", cls.String(),
		"injector", inj.id,
		"providers", len(desc.Providers),
	)

	return inj, nil
}

// ID returns the unique identifier of the Injector.
func (i *Injector) ID() string { return i.id }

// Class returns the module class the Injector is bound to.
func (i *Injector) Class() Class { return i.class }

// Descriptor returns the module descriptor.
func (i *Injector) Descriptor() ModuleDescriptor { return i.desc }

// Provide registers providers in the Injector. A provider for an already
// registered token replaces it.
func (i *Injector) Provide(providers ...Provider) error {
	for _, p := range providers {
		if p.Provide.IsZero() {
			return fmt.Errorf("provide: %w", ErrInvalidArgs)
		}
		if p.Factory == nil {
			return fmt.Errorf("provide %s: %w", p.Provide, ErrNilFactory)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, p := range providers {
		i.providers[p.Provide] = p
	}
	return nil
}

// Provider returns the local provider of token.
func (i *Injector) Provider(token Token) (Provider, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	p, ok := i.providers[token]
	return p, ok
}

// Has reports whether token can be resolved, locally or through imports.
func (i *Injector) Has(token Token) bool {
	_, ok, err := i.find(token)
	return err == nil && ok
}

// Resolve returns the value for token, constructing and caching it on first
// use. Concurrent calls for the same token share one construction. A call
// that would wait on a construction which is itself waiting on that call
// fails with CircularDependencyError, also when the cycle spans goroutines.
func (i *Injector) Resolve(ctx context.Context, token Token) (any, error) {
	return i.resolve(ctx, token, nil, &resolveChain{root: token})
}

func (i *Injector) resolve(ctx context.Context, token Token, path []Token, ch *resolveChain) (any, error) {
	if token.IsZero() {
		return nil, NotFoundError{Token: token, Module: i.class.Type()}
	}

	if v, ok := i.cached(token); ok {
		return v, nil
	}

	for _, t := range path {
		if t == token {
			cycle := make([]Token, len(path), len(path)+1)
			copy(cycle, path)
			return nil, CircularDependencyError{Path: append(cycle, token)}
		}
	}

	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	p, ok, err := i.find(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError{Token: token, Module: i.class.Type()}
	}

	full := append(path[:len(path):len(path)], token)
	key := flightKey{injector: i, token: token.key()}
	waits := i.registry.waits

	if cycle := waits.wait(ch, key, full); cycle != nil {
		return nil, CircularDependencyError{Path: cycle}
	}
	defer waits.done(ch)

	v, err, _ := i.flight.Do(key.token, func() (any, error) {
		waits.own(ch, key)
		defer waits.release(key)

		if v, ok := i.cached(token); ok {
			return v, nil
		}

		r := &resolution{
			injector: i,
			path:     full,
			chain:    ch,
		}

		v, err := p.Factory(ctx, r)
		if err != nil {
			return nil, wrapProviderError(token, err)
		}

		if err := initialize(ctx, v); err != nil {
			return nil, ProviderError{Token: token, Cause: err}
		}

		i.store(token, v)
		i.registry.lifecycle.track(v)

		i.logger.Debug("token resolved", "module", i.class.String(), "token", token.String())
		return v, nil
	})

	return v, err
}

// find locates the provider of token: locally first, then in imports.
func (i *Injector) find(token Token) (Provider, bool, error) {
	if p, ok := i.Provider(token); ok {
		return p, true, nil
	}

	visited := map[reflect.Type]bool{i.class.Type(): true}
	return i.findInImports(token, visited)
}

func (i *Injector) findInImports(token Token, visited map[reflect.Type]bool) (Provider, bool, error) {
	for _, imp := range i.desc.Imports {
		if imp.IsZero() || visited[imp.Type()] {
			continue
		}
		visited[imp.Type()] = true

		child, err := i.registry.Injector(imp)
		if err != nil {
			return Provider{}, false, err
		}

		if p, ok := child.Provider(token); ok {
			return p, true, nil
		}

		if p, ok, err := child.findInImports(token, visited); err != nil || ok {
			return p, ok, err
		}
	}

	return Provider{}, false, nil
}

func (i *Injector) cached(token Token) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	v, ok := i.instances[token]
	return v, ok
}

func (i *Injector) store(token Token, v any) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.instances[token] = v
}

func (i *Injector) normalizeProvider(item any) (Provider, error) {
	switch p := item.(type) {
	case Provider:
		if p.Provide.IsZero() {
			return Provider{}, fmt.Errorf("provider without token: %w", ErrInvalidArgs)
		}
		if p.Factory == nil {
			return Provider{}, fmt.Errorf("provider for %s: %w", p.Provide, ErrNilFactory)
		}
		return p, nil
	case *Provider:
		if p == nil {
			return Provider{}, ErrInvalidArgs
		}
		return i.normalizeProvider(*p)
	case Class:
		if p.IsZero() {
			return Provider{}, ErrNilClass
		}
		return ClassProvider(p.Token(), p, i.registry.meta.depsOf(p.Type())...), nil
	default:
		return Provider{}, fmt.Errorf("unsupported provider %T: %w", item, ErrInvalidArgs)
	}
}

// resolution is the Resolver handed to provider factories. It carries the
// chain of tokens being resolved for cycle detection.
type resolution struct {
	injector *Injector
	path     []Token
	chain    *resolveChain
}

func (r *resolution) Resolve(ctx context.Context, token Token) (any, error) {
	return r.injector.resolve(ctx, token, r.path, r.chain)
}

// resolveClass resolves cls through inj, registering a class provider for it
// first when no provider of its token is visible from inj, locally or through
// imports.
func resolveClass(ctx context.Context, inj *Injector, cls Class) (any, error) {
	if cls.IsZero() {
		return nil, ErrNilClass
	}

	tok := cls.Token()
	_, ok, err := inj.find(tok)
	if err != nil {
		return nil, err
	}
	if !ok {
		deps := inj.registry.meta.depsOf(cls.Type())
		if err := inj.Provide(ClassProvider(tok, cls, deps...)); err != nil {
			return nil, err
		}
	}

	return inj.Resolve(ctx, tok)
}

// wrapProviderError wraps factory failures. Errors that already describe a
// resolution failure pass through unchanged so the innermost cause stays
// visible.
func wrapProviderError(token Token, err error) error {
	var (
		circ CircularDependencyError
		pe   ProviderError
		cp   ConstructorPanicError
	)
	switch {
	case errors.As(err, &circ), errors.As(err, &pe), errors.As(err, &cp):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return ProviderError{Token: token, Cause: err}
}

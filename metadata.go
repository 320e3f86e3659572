package modkit

import (
	"reflect"
	"sync"

	"github.com/junioryono/modkit/internal/metadata"
)

var (
	injectableKey = metadata.NewKey("injectable")
	moduleKey     = metadata.NewKey("module")
	controllerKey = metadata.NewKey("controller")
	methodKey     = metadata.NewKey("method")
	methodsKey    = metadata.NewKey("methods")
	classKey      = metadata.NewKey("class")
)

// Metadata is the descriptor store. Declarations attach descriptors to class
// identities; the graph builder and the Injector read them back.
//
// Declaring the same target twice merges the declarations: list fields append
// in call order and non-zero scalars overwrite. Middlewares declared first
// run first.
//
//	meta := modkit.NewMetadata()
//	meta.Module(AppModule, modkit.Imports(UsersModule), modkit.Controllers(HealthController))
//	meta.Controller(HealthController, modkit.Route("/health"))
//	meta.Method(HealthController, "Check", modkit.Get("/"))
type Metadata struct {
	store *metadata.Store
	mu    sync.Mutex
}

// NewMetadata creates an empty descriptor store.
func NewMetadata() *Metadata {
	return &Metadata{store: metadata.New()}
}

// Injectable declares cls as injectable with the given positional
// dependencies.
func (m *Metadata) Injectable(cls Class, deps ...Token) *Metadata {
	m.remember(cls)
	m.store.Write(cls.Type(), injectableKey, InjectableDescriptor{Deps: deps})
	return m
}

// Module declares cls as a module.
func (m *Metadata) Module(cls Class, opts ...ModuleOption) *Metadata {
	var partial ModuleDescriptor
	for _, opt := range opts {
		if opt != nil {
			opt.applyModule(&partial)
		}
	}
	return m.MergeModule(cls, partial)
}

// MergeModule merges a partial module descriptor into cls.
func (m *Metadata) MergeModule(cls Class, partial ModuleDescriptor) *Metadata {
	m.remember(cls)
	m.store.Merge(cls.Type(), moduleKey, partial, func(existing, p any) any {
		if existing == nil {
			return ModuleDescriptor{}.merge(p.(ModuleDescriptor))
		}
		return existing.(ModuleDescriptor).merge(p.(ModuleDescriptor))
	})
	return m
}

// Controller declares cls as a controller.
func (m *Metadata) Controller(cls Class, opts ...ControllerOption) *Metadata {
	var partial ControllerDescriptor
	for _, opt := range opts {
		if opt != nil {
			opt.applyController(&partial)
		}
	}
	return m.MergeController(cls, partial)
}

// MergeController merges a partial controller descriptor into cls.
func (m *Metadata) MergeController(cls Class, partial ControllerDescriptor) *Metadata {
	m.remember(cls)
	m.store.Merge(cls.Type(), controllerKey, partial, func(existing, p any) any {
		if existing == nil {
			return ControllerDescriptor{}.merge(p.(ControllerDescriptor))
		}
		return existing.(ControllerDescriptor).merge(p.(ControllerDescriptor))
	})
	return m
}

// Method declares the method name of cls. Only declared methods are visible
// to the compiler; they are enumerated in first-declaration order.
func (m *Metadata) Method(cls Class, name string, opts ...MethodOption) *Metadata {
	partial := MethodDescriptor{Name: name}
	for _, opt := range opts {
		if opt != nil {
			opt.applyMethod(&partial)
		}
	}
	return m.MergeMethod(cls, partial)
}

// MergeMethod merges a partial method descriptor into the method
// partial.Name of cls.
func (m *Metadata) MergeMethod(cls Class, partial MethodDescriptor) *Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remember(cls)
	target := metadata.Method{Type: cls.Type(), Name: partial.Name}
	if !m.store.Has(target, methodKey) {
		m.store.Merge(cls.Type(), methodsKey, partial.Name, func(existing, name any) any {
			var names []string
			if existing != nil {
				names = existing.([]string)
			}
			return append(names, name.(string))
		})
	}

	m.store.Merge(target, methodKey, partial, func(existing, p any) any {
		if existing == nil {
			return MethodDescriptor{}.merge(p.(MethodDescriptor))
		}
		return existing.(MethodDescriptor).merge(p.(MethodDescriptor))
	})
	return m
}

// ModuleDescriptor returns the module descriptor of t.
func (m *Metadata) ModuleDescriptor(t reflect.Type) (ModuleDescriptor, bool) {
	v, ok := m.store.Read(t, moduleKey)
	if !ok {
		return ModuleDescriptor{}, false
	}
	return v.(ModuleDescriptor), true
}

// ControllerDescriptor returns the controller descriptor of t.
func (m *Metadata) ControllerDescriptor(t reflect.Type) (ControllerDescriptor, bool) {
	v, ok := m.store.Read(t, controllerKey)
	if !ok {
		return ControllerDescriptor{}, false
	}
	return v.(ControllerDescriptor), true
}

// InjectableDescriptor returns the injectable descriptor of t.
func (m *Metadata) InjectableDescriptor(t reflect.Type) (InjectableDescriptor, bool) {
	v, ok := m.store.Read(t, injectableKey)
	if !ok {
		return InjectableDescriptor{}, false
	}
	return v.(InjectableDescriptor), true
}

// MethodDescriptors returns the declared methods of t in declaration order.
func (m *Metadata) MethodDescriptors(t reflect.Type) []MethodDescriptor {
	v, ok := m.store.Read(t, methodsKey)
	if !ok {
		return nil
	}

	names := v.([]string)
	out := make([]MethodDescriptor, 0, len(names))
	for _, name := range names {
		d, ok := m.store.Read(metadata.Method{Type: t, Name: name}, methodKey)
		if ok {
			out = append(out, d.(MethodDescriptor))
		}
	}
	return out
}

// Class returns the class remembered for t by any declaration.
func (m *Metadata) Class(t reflect.Type) (Class, bool) {
	v, ok := m.store.Read(t, classKey)
	if !ok {
		return Class{}, false
	}
	return v.(Class), true
}

// depsOf returns the declared constructor dependencies of a class. The
// module or controller descriptor wins over an injectable declaration.
func (m *Metadata) depsOf(t reflect.Type) []Token {
	if d, ok := m.ModuleDescriptor(t); ok && d.Deps != nil {
		return d.Deps
	}
	if d, ok := m.ControllerDescriptor(t); ok && d.Deps != nil {
		return d.Deps
	}
	if d, ok := m.InjectableDescriptor(t); ok {
		return d.Deps
	}
	return nil
}

func (m *Metadata) remember(cls Class) {
	if cls.IsZero() {
		panic(ErrNilClass)
	}
	m.store.Write(cls.Type(), classKey, cls)
}

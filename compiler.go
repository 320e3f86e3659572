package modkit

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// CompiledModule is a module with its Injector, resolved instance and
// compiled controllers.
type CompiledModule struct {
	Node         *ModuleNode
	Meta         ModuleDescriptor
	Injector     *Injector
	Handle       any
	Middlewares  []MiddlewareFunc
	ErrorHandler ErrorHandlerFunc
	Controllers  []*CompiledController
	Imports      []*CompiledModule

	registry *ModuleRegistry
}

// CompiledController is a controller instance with its bound methods.
type CompiledController struct {
	Node         *ControllerNode
	Meta         ControllerDescriptor
	Handle       any
	Middlewares  []MiddlewareFunc
	ErrorHandler ErrorHandlerFunc
	Methods      []*CompiledMethod
	Module       *CompiledModule
}

// CompiledMethod is a bound controller method. Middlewares holds the full
// chain (module, then controller, then method), OwnMiddlewares only those
// declared on the method, and ErrorHandler the nearest declared handler.
type CompiledMethod struct {
	Node           *MethodNode
	Meta           MethodDescriptor
	Handle         HandlerFunc
	Middlewares    []MiddlewareFunc
	OwnMiddlewares []MiddlewareFunc
	ErrorHandler   ErrorHandlerFunc
	Controller     *CompiledController
}

// Dispatch runs the middleware chain and the handler. Errors raised anywhere
// in the chain go to the error handler when there is one.
func (m *CompiledMethod) Dispatch(c *Context) (any, error) {
	return m.DispatchWith(c, m.Middlewares)
}

// DispatchWith is Dispatch with middlewares in place of the compiled chain.
// Adapters that assemble the chain from per-level lists use it.
func (m *CompiledMethod) DispatchWith(c *Context, middlewares []MiddlewareFunc) (any, error) {
	c.method = m
	return chain(c, middlewares, m.Handle, m.ErrorHandler)
}

// Walk visits m and every imported module once, parents before imports.
func (m *CompiledModule) Walk(fn func(*CompiledModule) bool) {
	seen := make(map[*CompiledModule]bool)
	var walk func(*CompiledModule) bool
	walk = func(cm *CompiledModule) bool {
		if seen[cm] {
			return true
		}
		seen[cm] = true

		if !fn(cm) {
			return false
		}
		for _, imp := range cm.Imports {
			if !walk(imp) {
				return false
			}
		}
		return true
	}
	walk(m)
}

// Shutdown runs the shutdown hooks of every instance constructed while
// compiling the application, in construction order.
func (m *CompiledModule) Shutdown(ctx context.Context) error {
	if m.registry == nil {
		return nil
	}
	return m.registry.Shutdown(ctx)
}

// Compiler turns a module graph into a compiled tree. Each module class is
// compiled once per Compiler, so a module imported from several places is
// shared.
type Compiler struct {
	meta     *Metadata
	registry *ModuleRegistry
	logger   Logger

	mu       sync.Mutex
	compiled map[reflect.Type]*CompiledModule
}

// NewCompiler creates a Compiler with a fresh ModuleRegistry.
func NewCompiler(meta *Metadata, opts ...Option) *Compiler {
	o := buildOptions(opts)
	return &Compiler{
		meta:     meta,
		registry: NewModuleRegistry(meta, opts...),
		logger:   o.logger,
		compiled: make(map[reflect.Type]*CompiledModule),
	}
}

// Registry returns the registry holding the Injectors of compiled modules.
func (c *Compiler) Registry() *ModuleRegistry {
	return c.registry
}

// Shutdown runs the shutdown hooks of every constructed instance.
func (c *Compiler) Shutdown(ctx context.Context) error {
	return c.registry.Shutdown(ctx)
}

// Compile compiles node and everything it imports.
func (c *Compiler) Compile(ctx context.Context, node *ModuleNode) (*CompiledModule, error) {
	if node == nil {
		return nil, NotAModuleError{Cause: ErrNilClass}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.compileModule(ctx, node)
}

func (c *Compiler) compileModule(ctx context.Context, node *ModuleNode) (*CompiledModule, error) {
	if cm, ok := c.compiled[node.Class.Type()]; ok {
		return cm, nil
	}

	inj, err := c.registry.Injector(node.Class)
	if err != nil {
		return nil, err
	}

	instance, err := inj.Resolve(ctx, node.Class.Token())
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", node.Class, err)
	}

	mws, err := normalizeMiddlewares(ctx, inj, node.Meta.Middlewares)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", node.Class, err)
	}

	eh, err := normalizeErrorHandler(ctx, inj, node.Meta.ErrorHandler)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", node.Class, err)
	}

	cm := &CompiledModule{
		Node:         node,
		Meta:         node.Meta,
		Injector:     inj,
		Handle:       instance,
		Middlewares:  mws,
		ErrorHandler: eh,
		registry:     c.registry,
	}
	c.compiled[node.Class.Type()] = cm

	for _, ctrl := range node.Controllers {
		cc, err := c.compileController(ctx, cm, ctrl)
		if err != nil {
			return nil, err
		}
		cm.Controllers = append(cm.Controllers, cc)
	}

	for _, imp := range node.Imports {
		ic, err := c.compileModule(ctx, imp)
		if err != nil {
			return nil, err
		}
		cm.Imports = append(cm.Imports, ic)
	}

	c.logger.Debug("module compiled",
		"module", node.Class.String(),
		"controllers", len(cm.Controllers),
		"imports", len(cm.Imports),
	)

	return cm, nil
}

func (c *Compiler) compileController(ctx context.Context, cm *CompiledModule, node *ControllerNode) (*CompiledController, error) {
	if len(node.Methods) == 0 {
		return nil, EmptyControllerError{Type: node.Class.Type()}
	}

	inj := cm.Injector

	instance, err := resolveClass(ctx, inj, node.Class)
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w", node.Class, err)
	}

	mws, err := normalizeMiddlewares(ctx, inj, node.Meta.Middlewares)
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w", node.Class, err)
	}

	eh, err := normalizeErrorHandler(ctx, inj, node.Meta.ErrorHandler)
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w", node.Class, err)
	}

	cc := &CompiledController{
		Node:         node,
		Meta:         node.Meta,
		Handle:       instance,
		Middlewares:  mws,
		ErrorHandler: eh,
		Module:       cm,
	}

	for _, mn := range node.Methods {
		handle, err := bindHandler(instance, mn.Meta)
		if err != nil {
			return nil, err
		}

		methodMws, err := normalizeMiddlewares(ctx, inj, mn.Meta.Middlewares)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", node.Class, mn.Name, err)
		}

		methodEh, err := normalizeErrorHandler(ctx, inj, mn.Meta.ErrorHandler)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", node.Class, mn.Name, err)
		}

		merged := make([]MiddlewareFunc, 0, len(cm.Middlewares)+len(mws)+len(methodMws))
		merged = append(merged, cm.Middlewares...)
		merged = append(merged, mws...)
		merged = append(merged, methodMws...)

		cc.Methods = append(cc.Methods, &CompiledMethod{
			Node:           mn,
			Meta:           mn.Meta,
			Handle:         handle,
			Middlewares:    merged,
			OwnMiddlewares: methodMws,
			ErrorHandler:   firstErrorHandler(methodEh, eh, cm.ErrorHandler),
			Controller:     cc,
		})
	}

	return cc, nil
}

func firstErrorHandler(handlers ...ErrorHandlerFunc) ErrorHandlerFunc {
	for _, h := range handlers {
		if h != nil {
			return h
		}
	}
	return nil
}

// Compile builds the graph of root and compiles it with a new Compiler.
//
//	app, err := modkit.Compile(ctx, meta, AppModule)
//	if err != nil {
//	    return err
//	}
//	defer app.Shutdown(context.Background())
func Compile(ctx context.Context, meta *Metadata, root Class, opts ...Option) (*CompiledModule, error) {
	node, err := BuildGraph(meta, root)
	if err != nil {
		return nil, err
	}
	return NewCompiler(meta, opts...).Compile(ctx, node)
}

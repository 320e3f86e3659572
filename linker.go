package modkit

import (
	"context"
	"strings"
)

// RouteInfo locates a mounted element. Segment is the element's own route
// and Path the full path from the application root.
type RouteInfo struct {
	Verb    string
	Segment string
	Path    string
}

// Adapter translates a compiled tree into a concrete transport.
//
// The linker converts the middleware declared on each module, controller and
// method with CreateMiddleware and hands every level its own list when
// creating the feature, controller or endpoint. It then mounts them
// bottom-up: endpoints into their controller, controllers into their feature,
// features into their parent, and finally the root feature into the
// application. A module's middleware does not reach the features of the
// modules it imports.
//
// Endpoints build a Context for each transport request with CreateContext
// and run the method inside the native middleware chain they were given.
type Adapter[App, Feature, Controller, Endpoint, Middleware, Request any] interface {
	CreateContext(req Request, m *CompiledMethod) (*Context, error)
	CreateMiddleware(mw MiddlewareFunc) (Middleware, error)

	CreateEndpoint(m *CompiledMethod, middlewares []Middleware) (Endpoint, error)
	CreateController(c *CompiledController, middlewares []Middleware) (Controller, error)
	CreateFeature(m *CompiledModule, middlewares []Middleware) (Feature, error)

	MountEndpoint(ctrl Controller, ep Endpoint, route RouteInfo) error
	MountController(feature Feature, ctrl Controller, route RouteInfo) error
	MountFeature(parent, child Feature, route RouteInfo) error
	MountApp(root Feature, route RouteInfo) (App, error)
}

// Link mounts the endpoints of root and its imports through adapter.
//
// Route segments concatenate from the root down to the method. Two endpoints
// with the same verb and full path fail with DuplicateRouteError. Import
// cycles are not followed back into a module being linked.
func Link[App, Feature, Controller, Endpoint, Middleware, Request any](
	ctx context.Context,
	root *CompiledModule,
	adapter Adapter[App, Feature, Controller, Endpoint, Middleware, Request],
	opts ...Option,
) (App, error) {
	var zero App

	if ctx == nil {
		ctx = context.Background()
	}

	l := &routeLinker[App, Feature, Controller, Endpoint, Middleware, Request]{
		ctx:      ctx,
		adapter:  adapter,
		logger:   buildOptions(opts).logger,
		routes:   make(map[string]struct{}),
		visiting: make(map[*CompiledModule]bool),
	}

	rootPath := JoinPath(root.Meta.Route)
	feature, err := l.feature(root, rootPath)
	if err != nil {
		return zero, err
	}

	return adapter.MountApp(feature, RouteInfo{Segment: root.Meta.Route, Path: rootPath})
}

type routeLinker[App, Feature, Controller, Endpoint, Middleware, Request any] struct {
	ctx      context.Context
	adapter  Adapter[App, Feature, Controller, Endpoint, Middleware, Request]
	logger   Logger
	routes   map[string]struct{}
	visiting map[*CompiledModule]bool
}

func (l *routeLinker[App, Feature, Controller, Endpoint, Middleware, Request]) middlewares(mws []MiddlewareFunc) ([]Middleware, error) {
	if len(mws) == 0 {
		return nil, nil
	}

	out := make([]Middleware, 0, len(mws))
	for _, mw := range mws {
		native, err := l.adapter.CreateMiddleware(mw)
		if err != nil {
			return nil, err
		}
		out = append(out, native)
	}
	return out, nil
}

func (l *routeLinker[App, Feature, Controller, Endpoint, Middleware, Request]) feature(m *CompiledModule, path string) (Feature, error) {
	var zero Feature

	if err := l.ctx.Err(); err != nil {
		return zero, err
	}

	l.visiting[m] = true
	defer delete(l.visiting, m)

	featureMws, err := l.middlewares(m.Middlewares)
	if err != nil {
		return zero, err
	}

	f, err := l.adapter.CreateFeature(m, featureMws)
	if err != nil {
		return zero, err
	}

	for _, cc := range m.Controllers {
		ctrlPath := JoinPath(path, cc.Meta.Route)

		ctrlMws, err := l.middlewares(cc.Middlewares)
		if err != nil {
			return zero, err
		}

		ctrl, err := l.adapter.CreateController(cc, ctrlMws)
		if err != nil {
			return zero, err
		}

		for _, cm := range cc.Methods {
			if !cm.Meta.IsEndpoint() {
				continue
			}

			full := JoinPath(ctrlPath, cm.Meta.Path)
			key := cm.Meta.Verb + " " + full
			if _, dup := l.routes[key]; dup {
				return zero, DuplicateRouteError{Verb: cm.Meta.Verb, Path: full}
			}
			l.routes[key] = struct{}{}

			methodMws, err := l.middlewares(cm.OwnMiddlewares)
			if err != nil {
				return zero, err
			}

			ep, err := l.adapter.CreateEndpoint(cm, methodMws)
			if err != nil {
				return zero, err
			}

			route := RouteInfo{Verb: cm.Meta.Verb, Segment: cm.Meta.Path, Path: full}
			if err := l.adapter.MountEndpoint(ctrl, ep, route); err != nil {
				return zero, err
			}

			l.logger.Debug("route mounted", "verb", cm.Meta.Verb, "path", full)
		}

		if err := l.adapter.MountController(f, ctrl, RouteInfo{Segment: cc.Meta.Route, Path: ctrlPath}); err != nil {
			return zero, err
		}
	}

	for _, imp := range m.Imports {
		if l.visiting[imp] {
			l.logger.Warn("import cycle not linked",
				"module", m.Node.Class.String(),
				"import", imp.Node.Class.String(),
			)
			continue
		}

		childPath := JoinPath(path, imp.Meta.Route)
		child, err := l.feature(imp, childPath)
		if err != nil {
			return zero, err
		}

		if err := l.adapter.MountFeature(f, child, RouteInfo{Segment: imp.Meta.Route, Path: childPath}); err != nil {
			return zero, err
		}
	}

	return f, nil
}

// JoinPath joins route segments into a clean absolute path. Empty segments
// and "/" are ignored.
//
//	JoinPath("/api", "users/", "/:id") // "/api/users/:id"
func JoinPath(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		for _, part := range strings.Split(s, "/") {
			if part == "" {
				continue
			}
			b.WriteByte('/')
			b.WriteString(part)
		}
	}

	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Package chi mounts a compiled modkit application on a Chi router.
//
// Example usage:
//
//	app, _ := modkit.Compile(ctx, meta, AppModule)
//
//	r, err := modkitchi.Mount(ctx, app)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", r)
package chi

import (
	"context"
	"net/http"

	gochi "github.com/go-chi/chi/v5"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/httpbridge"
)

// Config holds the configuration of the adapter.
type Config struct {
	// Router receives the routes. If nil, a new router is created.
	Router *gochi.Mux

	// ErrorHandler writes errors returned by a dispatched method.
	// If nil, a JSON error body with the error's status code is written.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// PanicRecovery enables panic recovery in the endpoints. When disabled,
	// a panic in a method or middleware propagates to the router.
	PanicRecovery bool

	// PanicHandler is called with the panic value when a panic occurs (if
	// PanicRecovery is true).
	PanicHandler func(http.ResponseWriter, *http.Request, any)

	// Middlewares are Chi middlewares installed on the router before any
	// route.
	Middlewares []func(http.Handler) http.Handler

	// Logger receives endpoint failures.
	Logger modkit.Logger
}

// Option configures the adapter.
type Option func(*Config)

// WithRouter mounts the routes on an existing router.
func WithRouter(r *gochi.Mux) Option {
	return func(c *Config) {
		c.Router = r
	}
}

// WithErrorHandler sets the handler for errors returned by methods.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithPanicRecovery enables or disables panic recovery in the endpoints.
func WithPanicRecovery(enabled bool) Option {
	return func(c *Config) {
		c.PanicRecovery = enabled
	}
}

// WithPanicHandler sets the handler for panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) Option {
	return func(c *Config) {
		c.PanicHandler = h
	}
}

// WithMiddleware adds a Chi middleware. Multiple middlewares are executed in
// the order they are added.
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

// WithLogger sets the logger.
func WithLogger(l modkit.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() *Config {
	return &Config{
		PanicHandler: func(w http.ResponseWriter, r *http.Request, v any) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		Logger: modkit.NopLogger(),
	}
}

// Adapter implements modkit.Adapter for Chi.
type Adapter struct {
	httpbridge.Collector
	cfg *Config
}

var _ modkit.Adapter[*gochi.Mux, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange] = (*Adapter)(nil)

// NewAdapter creates a Chi adapter.
func NewAdapter(opts ...Option) *Adapter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Adapter{cfg: cfg}
}

// MountApp registers every collected route on the router.
func (a *Adapter) MountApp(root *httpbridge.Group, _ modkit.RouteInfo) (*gochi.Mux, error) {
	r := a.cfg.Router
	if r == nil {
		r = gochi.NewRouter()
	}

	for _, mw := range a.cfg.Middlewares {
		r.Use(mw)
	}

	for _, route := range root.Flatten() {
		r.Method(route.Verb, httpbridge.BracePattern(route.Path), a.endpoint(route))
		a.cfg.Logger.Debug("chi route registered", "verb", route.Verb, "path", route.Path)
	}

	return r, nil
}

func (a *Adapter) endpoint(route httpbridge.Route) http.HandlerFunc {
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		if v, ok := httpbridge.PanicValue(err); ok {
			a.panicked(w, r, route, v)
			return
		}

		a.cfg.Logger.Warn("endpoint failed", "verb", route.Verb, "path", route.Path, "error", err)
		if a.cfg.ErrorHandler != nil {
			a.cfg.ErrorHandler(w, r, err)
			return
		}
		httpbridge.WriteError(w, err)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					a.panicked(w, r, route, v)
				}
			}()
		}

		ex := &httpbridge.Exchange{
			Writer:  w,
			Request: r,
			Params:  func(name string) string { return gochi.URLParam(r, name) },
		}
		httpbridge.Serve(a.CreateContext, ex, route, onError)
	}
}

func (a *Adapter) panicked(w http.ResponseWriter, r *http.Request, route httpbridge.Route, v any) {
	if !a.cfg.PanicRecovery {
		panic(v)
	}
	a.cfg.Logger.Error("panic in endpoint", "verb", route.Verb, "path", route.Path, "panic", v)
	a.cfg.PanicHandler(w, r, v)
}

// Mount links app onto a Chi router.
func Mount(ctx context.Context, app *modkit.CompiledModule, opts ...Option) (*gochi.Mux, error) {
	a := NewAdapter(opts...)
	return modkit.Link[*gochi.Mux, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange](
		ctx, app, a, modkit.WithLogger(a.cfg.Logger),
	)
}

// Package mux mounts a compiled modkit application on a gorilla/mux router.
package mux

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/httpbridge"
)

// Config holds the configuration of the adapter.
type Config struct {
	// Router receives the routes. If nil, mux.NewRouter() is used.
	Router *mux.Router

	// ErrorHandler writes errors returned by a dispatched method.
	// If nil, a JSON error body with the error's status code is written.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// StrictSlash is passed to the router.
	StrictSlash bool

	Logger modkit.Logger
}

// Option configures the adapter.
type Option func(*Config)

// WithRouter mounts the routes on an existing router.
func WithRouter(r *mux.Router) Option {
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

// WithStrictSlash makes "/path/" redirect to "/path" and back.
func WithStrictSlash(enabled bool) Option {
	return func(c *Config) {
		c.StrictSlash = enabled
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
		ErrorHandler: httpbridge.WriteErrorHandler,
		Logger:       modkit.NopLogger(),
	}
}

// Adapter implements modkit.Adapter for gorilla/mux.
type Adapter struct {
	httpbridge.Collector
	cfg *Config
}

var _ modkit.Adapter[*mux.Router, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange] = (*Adapter)(nil)

// NewAdapter creates a gorilla/mux adapter.
func NewAdapter(opts ...Option) *Adapter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Adapter{cfg: cfg}
}

// MountApp registers every collected route on the router.
func (a *Adapter) MountApp(root *httpbridge.Group, _ modkit.RouteInfo) (*mux.Router, error) {
	r := a.cfg.Router
	if r == nil {
		r = mux.NewRouter().StrictSlash(a.cfg.StrictSlash)
	}

	for _, route := range root.Flatten() {
		r.HandleFunc(httpbridge.BracePattern(route.Path), a.endpoint(route)).Methods(route.Verb)
		a.cfg.Logger.Debug("mux route registered", "verb", route.Verb, "path", route.Path)
	}

	return r, nil
}

func (a *Adapter) endpoint(route httpbridge.Route) http.HandlerFunc {
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		if v, ok := httpbridge.PanicValue(err); ok {
			panic(v)
		}
		a.cfg.Logger.Warn("endpoint failed", "verb", route.Verb, "path", route.Path, "error", err)
		a.cfg.ErrorHandler(w, r, err)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		ex := &httpbridge.Exchange{
			Writer:  w,
			Request: r,
			Params:  func(name string) string { return vars[name] },
		}
		httpbridge.Serve(a.CreateContext, ex, route, onError)
	}
}

// Mount links app onto a gorilla/mux router.
func Mount(ctx context.Context, app *modkit.CompiledModule, opts ...Option) (*mux.Router, error) {
	a := NewAdapter(opts...)
	return modkit.Link[*mux.Router, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange](
		ctx, app, a, modkit.WithLogger(a.cfg.Logger),
	)
}

// Package gin mounts a compiled modkit application on a Gin engine.
//
// Example usage:
//
//	app, _ := modkit.Compile(ctx, meta, AppModule)
//
//	g, err := modkitgin.Mount(ctx, app)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	g.Run(":8080")
//
// Handlers can reach the Gin context with GinContext. A panic in a method is
// raised again in the Gin handler, where gin.Recovery handles it.
package gin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/httpbridge"
)

const ginContextKey = "modkit.gin.context"

// Config holds the configuration of the adapter.
type Config struct {
	// Engine receives the routes. If nil, gin.New() is used.
	Engine *gin.Engine

	// ErrorHandler writes errors returned by a dispatched method.
	// If nil, the request is aborted with a JSON error body.
	ErrorHandler func(*gin.Context, error)

	// Middlewares are Gin middlewares installed on the engine before any
	// route.
	Middlewares []gin.HandlerFunc

	// Logger receives endpoint failures.
	Logger modkit.Logger
}

// Option configures the adapter.
type Option func(*Config)

// WithEngine mounts the routes on an existing engine.
func WithEngine(e *gin.Engine) Option {
	return func(c *Config) {
		c.Engine = e
	}
}

// WithErrorHandler sets the handler for errors returned by methods.
func WithErrorHandler(h func(*gin.Context, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithMiddleware adds a Gin middleware. Multiple middlewares are executed in
// the order they are added.
//
// Example:
//
//	modkitgin.Mount(ctx, app, modkitgin.WithMiddleware(gin.Recovery()))
func WithMiddleware(mw gin.HandlerFunc) Option {
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
		ErrorHandler: func(c *gin.Context, err error) {
			status := httpbridge.StatusCode(err)
			message := http.StatusText(status)
			if he, ok := asHTTPError(err); ok {
				message = he.Message
			}
			c.AbortWithStatusJSON(status, gin.H{"status": status, "error": message})
		},
		Logger: modkit.NopLogger(),
	}
}

// Adapter implements modkit.Adapter for Gin.
type Adapter struct {
	httpbridge.Collector
	cfg *Config
}

var _ modkit.Adapter[*gin.Engine, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange] = (*Adapter)(nil)

// NewAdapter creates a Gin adapter.
func NewAdapter(opts ...Option) *Adapter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Adapter{cfg: cfg}
}

// MountApp registers every collected route on the engine.
func (a *Adapter) MountApp(root *httpbridge.Group, _ modkit.RouteInfo) (*gin.Engine, error) {
	e := a.cfg.Engine
	if e == nil {
		e = gin.New()
	}

	if len(a.cfg.Middlewares) > 0 {
		e.Use(a.cfg.Middlewares...)
	}

	for _, route := range root.Flatten() {
		e.Handle(route.Verb, route.Path, a.endpoint(route))
		a.cfg.Logger.Debug("gin route registered", "verb", route.Verb, "path", route.Path)
	}

	return e, nil
}

func (a *Adapter) endpoint(route httpbridge.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		ex := &httpbridge.Exchange{
			Writer:  c.Writer,
			Request: c.Request,
			Params:  c.Param,
			Options: []modkit.ContextOption{modkit.WithValue(ginContextKey, c)},
		}

		rw, result, err := httpbridge.Run(a.CreateContext, ex, route)
		if v, ok := httpbridge.PanicValue(err); ok {
			panic(v)
		}
		if rw.Written() {
			if err != nil {
				_ = c.Error(err)
			}
			return
		}

		if err != nil {
			a.cfg.Logger.Warn("endpoint failed", "verb", route.Verb, "path", route.Path, "error", err)
			_ = c.Error(err)
			a.cfg.ErrorHandler(c, err)
			return
		}

		switch v := result.(type) {
		case nil:
			c.Status(http.StatusNoContent)
		case string:
			c.String(http.StatusOK, v)
		case []byte:
			c.Data(http.StatusOK, "application/octet-stream", v)
		default:
			c.JSON(http.StatusOK, v)
		}
	}
}

// GinContext returns the Gin context of a dispatch started by this adapter.
func GinContext(c *modkit.Context) (*gin.Context, bool) {
	v, ok := c.Get(ginContextKey)
	if !ok {
		return nil, false
	}
	gc, ok := v.(*gin.Context)
	return gc, ok
}

// Mount links app onto a Gin engine.
func Mount(ctx context.Context, app *modkit.CompiledModule, opts ...Option) (*gin.Engine, error) {
	a := NewAdapter(opts...)
	return modkit.Link[*gin.Engine, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange](
		ctx, app, a, modkit.WithLogger(a.cfg.Logger),
	)
}

func asHTTPError(err error) (modkit.HTTPError, bool) {
	var he modkit.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he, true
	}
	return he, false
}

// Package echo mounts a compiled modkit application on an Echo instance.
//
// Example usage:
//
//	app, _ := modkit.Compile(ctx, meta, AppModule)
//
//	e, err := modkitecho.Mount(ctx, app)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	e.Logger.Fatal(e.Start(":8080"))
//
// Handlers can reach the Echo context with EchoContext. A panic in a method
// is raised again in the Echo handler, where middleware.Recover handles it.
package echo

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/httpbridge"
)

const echoContextKey = "modkit.echo.context"

// Config holds the configuration of the adapter.
type Config struct {
	// Echo receives the routes. If nil, echo.New() is used.
	Echo *echo.Echo

	// ErrorHandler converts errors returned by a dispatched method.
	// If nil, an *echo.HTTPError carrying the error's status code is
	// returned to Echo's error handling.
	ErrorHandler func(echo.Context, error) error

	// Middlewares are Echo middlewares installed before any route.
	Middlewares []echo.MiddlewareFunc

	// Logger receives endpoint failures.
	Logger modkit.Logger
}

// Option configures the adapter.
type Option func(*Config)

// WithEcho mounts the routes on an existing Echo instance.
func WithEcho(e *echo.Echo) Option {
	return func(c *Config) {
		c.Echo = e
	}
}

// WithErrorHandler sets the handler for errors returned by methods.
func WithErrorHandler(h func(echo.Context, error) error) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithMiddleware adds an Echo middleware. Multiple middlewares are executed
// in the order they are added.
func WithMiddleware(mw echo.MiddlewareFunc) Option {
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
		ErrorHandler: func(c echo.Context, err error) error {
			status := httpbridge.StatusCode(err)
			message := http.StatusText(status)
			var he modkit.HTTPError
			if errors.As(err, &he) && he.Message != "" {
				message = he.Message
			}
			return echo.NewHTTPError(status, message).SetInternal(err)
		},
		Logger: modkit.NopLogger(),
	}
}

// Adapter implements modkit.Adapter for Echo.
type Adapter struct {
	httpbridge.Collector
	cfg *Config
}

var _ modkit.Adapter[*echo.Echo, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange] = (*Adapter)(nil)

// NewAdapter creates an Echo adapter.
func NewAdapter(opts ...Option) *Adapter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Adapter{cfg: cfg}
}

// MountApp registers every collected route on the Echo instance.
func (a *Adapter) MountApp(root *httpbridge.Group, _ modkit.RouteInfo) (*echo.Echo, error) {
	e := a.cfg.Echo
	if e == nil {
		e = echo.New()
	}

	if len(a.cfg.Middlewares) > 0 {
		e.Use(a.cfg.Middlewares...)
	}

	for _, route := range root.Flatten() {
		e.Add(route.Verb, route.Path, a.endpoint(route))
		a.cfg.Logger.Debug("echo route registered", "verb", route.Verb, "path", route.Path)
	}

	return e, nil
}

func (a *Adapter) endpoint(route httpbridge.Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		ex := &httpbridge.Exchange{
			Writer:  c.Response(),
			Request: c.Request(),
			Params:  c.Param,
			Options: []modkit.ContextOption{modkit.WithValue(echoContextKey, c)},
		}

		rw, result, err := httpbridge.Run(a.CreateContext, ex, route)
		if v, ok := httpbridge.PanicValue(err); ok {
			panic(v)
		}
		if rw.Written() {
			return err
		}

		if err != nil {
			a.cfg.Logger.Warn("endpoint failed", "verb", route.Verb, "path", route.Path, "error", err)
			return a.cfg.ErrorHandler(c, err)
		}

		switch v := result.(type) {
		case nil:
			return c.NoContent(http.StatusNoContent)
		case string:
			return c.String(http.StatusOK, v)
		case []byte:
			return c.Blob(http.StatusOK, echo.MIMEOctetStream, v)
		default:
			return c.JSON(http.StatusOK, v)
		}
	}
}

// EchoContext returns the Echo context of a dispatch started by this adapter.
func EchoContext(c *modkit.Context) (echo.Context, bool) {
	v, ok := c.Get(echoContextKey)
	if !ok {
		return nil, false
	}
	ec, ok := v.(echo.Context)
	return ec, ok
}

// Mount links app onto an Echo instance.
func Mount(ctx context.Context, app *modkit.CompiledModule, opts ...Option) (*echo.Echo, error) {
	a := NewAdapter(opts...)
	return modkit.Link[*echo.Echo, *httpbridge.Group, *httpbridge.Group, *httpbridge.Route, modkit.MiddlewareFunc, *httpbridge.Exchange](
		ctx, app, a, modkit.WithLogger(a.cfg.Logger),
	)
}

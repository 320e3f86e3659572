package modkit

import (
	"context"
	"net/http"
	"sync"
)

// Args is a parsed command line: positional arguments plus flags.
type Args struct {
	Positional []string
	Flags      map[string]string
}

// Flag returns the value of a flag and whether it was set.
func (a Args) Flag(name string) (string, bool) {
	v, ok := a.Flags[name]
	return v, ok
}

// Context is the per-dispatch context handed to middlewares, error handlers
// and handler inputs. It is transport-neutral: CLI dispatch fills Args, HTTP
// adapters fill Request, Writer and route params.
type Context struct {
	ctx context.Context

	Args    Args
	Request *http.Request
	Writer  http.ResponseWriter

	params func(string) string
	method *CompiledMethod

	mu     sync.RWMutex
	values map[string]any
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithArgs attaches parsed command line arguments.
func WithArgs(args Args) ContextOption {
	return func(c *Context) {
		c.Args = args
	}
}

// WithHTTP attaches an HTTP exchange. params looks up route parameters and
// may be nil.
func WithHTTP(w http.ResponseWriter, r *http.Request, params func(string) string) ContextOption {
	return func(c *Context) {
		c.Writer = w
		c.Request = r
		c.params = params
		if r != nil {
			c.ctx = r.Context()
		}
	}
}

// WithValue stores a per-dispatch value, retrievable with Get.
func WithValue(key string, value any) ContextOption {
	return func(c *Context) {
		c.Set(key, value)
	}
}

// NewContext creates a dispatch context.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	if ctx == nil {
		ctx = context.Background()
	}

	c := &Context{ctx: ctx}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Context returns the underlying context.Context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// WithContext replaces the underlying context.Context, for example to add a
// deadline in a middleware.
func (c *Context) WithContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

// Param returns a route parameter, or "" when there is none.
func (c *Context) Param(name string) string {
	if c.params == nil {
		return ""
	}
	return c.params(name)
}

// Method returns the method being dispatched.
func (c *Context) Method() *CompiledMethod {
	return c.method
}

// Set stores a per-dispatch value.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Get returns a per-dispatch value.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	return v, ok
}

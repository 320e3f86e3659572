// Package httpbridge holds the plumbing shared by the HTTP adapters: a
// route-collecting implementation of the linker callbacks and the
// translation of dispatch results into HTTP responses.
package httpbridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/junioryono/modkit"
)

// Route is an endpoint with its full path. Middlewares holds the method's
// own middlewares until the route is flattened, and the full chain after.
type Route struct {
	Verb        string
	Path        string
	Method      *modkit.CompiledMethod
	Middlewares []modkit.MiddlewareFunc
}

// Group collects the routes of a controller, or the controllers and
// imported features of a module.
type Group struct {
	Path        string
	Middlewares []modkit.MiddlewareFunc
	Routes      []Route
	Controllers []*Group
	Features    []*Group
}

// Flatten returns every route of g and everything mounted into it, in mount
// order. Each route carries the middlewares of its module, its controller
// and its method. The middlewares of g do not reach its features.
func (g *Group) Flatten() []Route {
	return g.flatten(nil)
}

func (g *Group) flatten(inherited []modkit.MiddlewareFunc) []Route {
	chain := append(slices.Clone(inherited), g.Middlewares...)

	var out []Route
	for _, r := range g.Routes {
		r.Middlewares = append(slices.Clone(chain), r.Middlewares...)
		out = append(out, r)
	}
	for _, ctrl := range g.Controllers {
		out = append(out, ctrl.flatten(chain)...)
	}
	for _, f := range g.Features {
		out = append(out, f.flatten(nil)...)
	}
	return out
}

// Exchange is one HTTP request handled by an endpoint. Options are applied
// to the Context after the HTTP values.
type Exchange struct {
	Writer  http.ResponseWriter
	Request *http.Request
	Params  func(string) string
	Options []modkit.ContextOption
}

// ContextFactory builds the Context of an exchange.
type ContextFactory func(ex *Exchange, m *modkit.CompiledMethod) (*modkit.Context, error)

// Collector implements the create and mount steps of modkit.Adapter by
// collecting routes into Groups. Adapters embed it and register the
// flattened routes in MountApp.
type Collector struct{}

// CreateContext builds a Context carrying the request, the writer and the
// path parameters of ex.
func (Collector) CreateContext(ex *Exchange, _ *modkit.CompiledMethod) (*modkit.Context, error) {
	if ex == nil || ex.Request == nil {
		return nil, modkit.ConfigurationError{Reason: "exchange without request"}
	}
	opts := append([]modkit.ContextOption{modkit.WithHTTP(ex.Writer, ex.Request, ex.Params)}, ex.Options...)
	return modkit.NewContext(ex.Request.Context(), opts...), nil
}

// CreateMiddleware returns mw unchanged; the chain runs inside DispatchWith.
func (Collector) CreateMiddleware(mw modkit.MiddlewareFunc) (modkit.MiddlewareFunc, error) {
	if mw == nil {
		return nil, modkit.ConfigurationError{Reason: "nil middleware"}
	}
	return mw, nil
}

// CreateEndpoint returns an unmounted route for m.
func (Collector) CreateEndpoint(m *modkit.CompiledMethod, middlewares []modkit.MiddlewareFunc) (*Route, error) {
	return &Route{Method: m, Middlewares: middlewares}, nil
}

// CreateController returns an empty controller group.
func (Collector) CreateController(_ *modkit.CompiledController, middlewares []modkit.MiddlewareFunc) (*Group, error) {
	return &Group{Middlewares: middlewares}, nil
}

// CreateFeature returns an empty feature group.
func (Collector) CreateFeature(_ *modkit.CompiledModule, middlewares []modkit.MiddlewareFunc) (*Group, error) {
	return &Group{Middlewares: middlewares}, nil
}

// MountEndpoint adds ep to ctrl at the full path of route.
func (Collector) MountEndpoint(ctrl *Group, ep *Route, route modkit.RouteInfo) error {
	ep.Verb = route.Verb
	ep.Path = route.Path
	ctrl.Routes = append(ctrl.Routes, *ep)
	return nil
}

// MountController adds ctrl to feature.
func (Collector) MountController(feature, ctrl *Group, route modkit.RouteInfo) error {
	ctrl.Path = route.Path
	feature.Controllers = append(feature.Controllers, ctrl)
	return nil
}

// MountFeature adds child to parent.
func (Collector) MountFeature(parent, child *Group, route modkit.RouteInfo) error {
	child.Path = route.Path
	parent.Features = append(parent.Features, child)
	return nil
}

// BracePattern rewrites ":name" segments to "{name}" for routers that use
// brace placeholders.
//
//	BracePattern("/users/:id") // "/users/{id}"
func BracePattern(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") && len(p) > 1 {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

// ResponseWriter records whether a handler wrote the response itself.
type ResponseWriter struct {
	http.ResponseWriter
	written bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader marks the response as written.
func (w *ResponseWriter) WriteHeader(status int) {
	w.written = true
	w.ResponseWriter.WriteHeader(status)
}

// Write marks the response as written.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Written reports whether anything was written.
func (w *ResponseWriter) Written() bool { return w.written }

// Unwrap returns the wrapped writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Run builds a Context for ex with create and dispatches route through its
// middleware chain. The returned writer reports whether the handler wrote a
// response itself.
func Run(create ContextFactory, ex *Exchange, route Route) (*ResponseWriter, any, error) {
	rw := NewResponseWriter(ex.Writer)
	ex.Writer = rw

	c, err := create(ex, route.Method)
	if err != nil {
		return rw, nil, err
	}

	result, err := route.Method.DispatchWith(c, route.Middlewares)
	return rw, result, err
}

// Serve runs route and writes the result, or passes the error to onError.
// Nothing more is written when the handler wrote a response itself. A nil
// onError writes the error with WriteError.
func Serve(create ContextFactory, ex *Exchange, route Route, onError func(http.ResponseWriter, *http.Request, error)) {
	rw, result, err := Run(create, ex, route)
	if rw.Written() {
		return
	}

	if err != nil {
		if onError == nil {
			WriteError(rw, err)
			return
		}
		onError(rw, ex.Request, err)
		return
	}

	_ = WriteResult(rw, result)
}

// PanicValue returns the value a controller method panicked with, if err
// reports one.
func PanicValue(err error) (any, bool) {
	var pe modkit.HandlerPanicError
	if errors.As(err, &pe) {
		return pe.Panic, true
	}
	return nil, false
}

// WriteResult writes a handler result: nothing as 204, strings and bytes
// as-is, anything else as JSON.
func WriteResult(w http.ResponseWriter, result any) error {
	switch v := result.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
		return nil
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(v))
		return err
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(v)
		return err
	default:
		return WriteJSON(w, http.StatusOK, v)
	}
}

// WriteJSON writes v as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// StatusCode maps an error to an HTTP status. Errors carrying a status code
// keep it; missing tokens and everything else are internal errors.
func StatusCode(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a JSON error body. Messages of internal errors
// are not exposed.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusCode(err)

	message := http.StatusText(status)
	var he modkit.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		message = he.Message
	}

	_ = WriteJSON(w, status, map[string]any{
		"status": status,
		"error":  message,
	})
}

// WriteErrorHandler is WriteError shaped as an error callback.
func WriteErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	WriteError(w, err)
}

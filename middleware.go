package modkit

import (
	"context"
	"fmt"
)

// Next continues a middleware chain and returns the downstream result.
type Next func() (any, error)

// MiddlewareFunc is a callable middleware. It may short-circuit by not calling
// next.
type MiddlewareFunc func(c *Context, next Next) (any, error)

// Middleware is implemented by middleware classes. The class is resolved
// through the module Injector and its Handle method is used.
type Middleware interface {
	Handle(c *Context, next Next) (any, error)
}

// ErrorHandlerFunc is a callable error handler. Returning a nil error
// recovers with the returned value.
type ErrorHandlerFunc func(c *Context, err error) (any, error)

// ErrorHandler is implemented by error-handler classes.
type ErrorHandler interface {
	Catch(c *Context, err error) (any, error)
}

// HandlerFunc is a bound controller method.
type HandlerFunc func(c *Context) (any, error)

// normalizeMiddleware turns a middleware reference into a callable. Classes
// are resolved through inj and registered there first when no provider for
// them is visible.
func normalizeMiddleware(ctx context.Context, inj *Injector, ref any) (MiddlewareFunc, error) {
	switch m := ref.(type) {
	case MiddlewareFunc:
		if m == nil {
			return nil, InvalidMiddlewareError{Ref: ref}
		}
		return m, nil
	case func(*Context, Next) (any, error):
		if m == nil {
			return nil, InvalidMiddlewareError{Ref: ref}
		}
		return m, nil
	case Class:
		inst, err := resolveClass(ctx, inj, m)
		if err != nil {
			return nil, InvalidMiddlewareError{Ref: ref, Cause: err}
		}
		h, ok := inst.(Middleware)
		if !ok {
			return nil, InvalidMiddlewareError{Ref: ref, Cause: fmt.Errorf("%T has no Handle(*Context, Next) method", inst)}
		}
		return h.Handle, nil
	default:
		return nil, InvalidMiddlewareError{Ref: ref}
	}
}

// normalizeErrorHandler turns an error-handler reference into a callable. A
// nil reference yields a nil handler.
func normalizeErrorHandler(ctx context.Context, inj *Injector, ref any) (ErrorHandlerFunc, error) {
	switch h := ref.(type) {
	case nil:
		return nil, nil
	case ErrorHandlerFunc:
		if h == nil {
			return nil, nil
		}
		return h, nil
	case func(*Context, error) (any, error):
		if h == nil {
			return nil, nil
		}
		return h, nil
	case Class:
		inst, err := resolveClass(ctx, inj, h)
		if err != nil {
			return nil, NotAnErrorHandlerError{Ref: ref, Cause: err}
		}
		eh, ok := inst.(ErrorHandler)
		if !ok {
			return nil, NotAnErrorHandlerError{Ref: ref, Cause: fmt.Errorf("%T has no Catch(*Context, error) method", inst)}
		}
		return eh.Catch, nil
	default:
		return nil, NotAnErrorHandlerError{Ref: ref}
	}
}

func normalizeMiddlewares(ctx context.Context, inj *Injector, refs []any) ([]MiddlewareFunc, error) {
	out := make([]MiddlewareFunc, 0, len(refs))
	for _, ref := range refs {
		mw, err := normalizeMiddleware(ctx, inj, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, mw)
	}
	return out, nil
}

// chain runs middlewares in order around handler. Errors from any step are
// passed to onError when it is set.
func chain(c *Context, middlewares []MiddlewareFunc, handler HandlerFunc, onError ErrorHandlerFunc) (any, error) {
	var run func(i int) (any, error)
	run = func(i int) (any, error) {
		if i == len(middlewares) {
			return handler(c)
		}
		return middlewares[i](c, func() (any, error) { return run(i + 1) })
	}

	result, err := run(0)
	if err != nil && onError != nil {
		return onError(c, err)
	}
	return result, err
}

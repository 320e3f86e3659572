package modkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/golobby/cast"
)

// InputFactory produces one handler argument from the dispatch context.
type InputFactory func(c *Context) (any, error)

// CtxInput passes the dispatch Context itself.
func CtxInput() InputFactory {
	return func(c *Context) (any, error) { return c, nil }
}

// StdContext passes the underlying context.Context.
func StdContext() InputFactory {
	return func(c *Context) (any, error) { return c.Context(), nil }
}

// ArgsInput passes the parsed command line.
func ArgsInput() InputFactory {
	return func(c *Context) (any, error) { return c.Args, nil }
}

// Positional passes the i-th positional argument as a string.
func Positional(i int) InputFactory {
	return func(c *Context) (any, error) {
		if i < 0 || i >= len(c.Args.Positional) {
			return nil, fmt.Errorf("positional argument %d: %w", i, ErrInvalidArgs)
		}
		return c.Args.Positional[i], nil
	}
}

// FlagInput passes the value of a flag as a string, or "" when unset.
func FlagInput(name string) InputFactory {
	return func(c *Context) (any, error) {
		v, _ := c.Args.Flag(name)
		return v, nil
	}
}

// FlagAs passes the value of a flag converted to T. An unset flag yields the
// zero value.
//
//	modkit.WithInputs(modkit.FlagAs[int]("count"))
func FlagAs[T any](name string) InputFactory {
	return func(c *Context) (any, error) {
		v, ok := c.Args.Flag(name)
		if !ok {
			var zero T
			return zero, nil
		}
		out, err := convertString[T](v)
		if err != nil {
			return nil, fmt.Errorf("flag %q: %w", name, err)
		}
		return out, nil
	}
}

// Param passes a route parameter as a string.
func Param(name string) InputFactory {
	return func(c *Context) (any, error) {
		return c.Param(name), nil
	}
}

// ParamAs passes a route parameter converted to T. A conversion failure is
// reported as a 400 HTTPError.
func ParamAs[T any](name string) InputFactory {
	return func(c *Context) (any, error) {
		out, err := convertString[T](c.Param(name))
		if err != nil {
			return nil, NewHTTPErrorWithCause(http.StatusBadRequest, fmt.Sprintf("invalid parameter %q", name), err)
		}
		return out, nil
	}
}

// Query passes a query string value.
func Query(name string) InputFactory {
	return func(c *Context) (any, error) {
		if c.Request == nil {
			return "", nil
		}
		return c.Request.URL.Query().Get(name), nil
	}
}

// Body decodes the JSON request body into a T.
func Body[T any]() InputFactory {
	return func(c *Context) (any, error) {
		var v T
		if c.Request == nil || c.Request.Body == nil {
			return v, NewHTTPError(http.StatusBadRequest, "missing request body")
		}
		if err := json.NewDecoder(c.Request.Body).Decode(&v); err != nil {
			return v, NewHTTPErrorWithCause(http.StatusBadRequest, "invalid request body", err)
		}
		return v, nil
	}
}

// Value passes a value stored on the Context with Set.
func Value(key string) InputFactory {
	return func(c *Context) (any, error) {
		v, _ := c.Get(key)
		return v, nil
	}
}

// Inject passes the value of token resolved through the Injector of the
// module owning the dispatched method.
func Inject(token Token) InputFactory {
	return func(c *Context) (any, error) {
		m := c.Method()
		if m == nil || m.Controller == nil || m.Controller.Module == nil {
			return nil, fmt.Errorf("inject %s: no method is being dispatched", token)
		}
		return m.Controller.Module.Injector.Resolve(c.Context(), token)
	}
}

func convertString[T any](s string) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.String {
		return reflect.ValueOf(s).Convert(t).Interface().(T), nil
	}

	v, err := cast.FromType(s, t)
	if err != nil {
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		if v == nil {
			return zero, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().ConvertibleTo(t) {
			return zero, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		return rv.Convert(t).Interface().(T), nil
	}
	return out, nil
}

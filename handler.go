package modkit

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/junioryono/modkit/internal/reflection"
)

var (
	contextPtrType = reflect.TypeOf((*Context)(nil))
	stdContextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	argsType       = reflect.TypeOf(Args{})
)

// bindHandler binds the method md.Name of instance into a HandlerFunc.
//
// Arguments come from md.Args positionally. Without declared inputs, each
// parameter must be a *Context, a context.Context or an Args. The method may
// return nothing, an error, a value, or a value and an error.
func bindHandler(instance any, md MethodDescriptor) (HandlerFunc, error) {
	t := reflect.TypeOf(instance)

	m, err := reflection.BindMethod(instance, md.Name)
	if err != nil {
		return nil, InvalidHandlerError{Type: t, Method: md.Name, Cause: err}
	}

	info, err := reflection.Analyze(m)
	if err != nil {
		return nil, InvalidHandlerError{Type: t, Method: md.Name, Cause: err}
	}

	inputs := md.Args
	if inputs == nil {
		inputs, err = inferInputs(info.Params)
		if err != nil {
			return nil, InvalidHandlerError{Type: t, Method: md.Name, Cause: err}
		}
	}

	if len(inputs) != len(info.Params) {
		return nil, InvalidHandlerError{
			Type:   t,
			Method: md.Name,
			Cause:  fmt.Errorf("%d inputs declared for %d parameters", len(inputs), len(info.Params)),
		}
	}

	return func(c *Context) (any, error) {
		args := make([]reflect.Value, len(inputs))
		for i, in := range inputs {
			v, err := in(c)
			if err != nil {
				return nil, err
			}

			arg, err := reflection.Convert(v, info.Params[i])
			if err != nil {
				return nil, NewHTTPErrorWithCause(http.StatusBadRequest, fmt.Sprintf("argument %d", i), err)
			}
			args[i] = arg
		}

		result, err := info.Call(args)
		if err != nil {
			if pe, ok := err.(*reflection.PanicError); ok {
				return nil, HandlerPanicError{Type: t, Method: md.Name, Panic: pe.Value, Stack: pe.Stack}
			}
			return nil, err
		}
		return result, nil
	}, nil
}

func inferInputs(params []reflect.Type) ([]InputFactory, error) {
	inputs := make([]InputFactory, len(params))
	for i, p := range params {
		switch p {
		case contextPtrType:
			inputs[i] = CtxInput()
		case stdContextType:
			inputs[i] = StdContext()
		case argsType:
			inputs[i] = ArgsInput()
		default:
			return nil, fmt.Errorf("cannot infer an input for parameter %d of type %s: declare inputs with WithInputs", i, p)
		}
	}
	return inputs, nil
}

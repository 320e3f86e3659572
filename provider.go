package modkit

import (
	"context"
	"fmt"
	"reflect"

	"github.com/junioryono/modkit/internal/reflection"
)

// Resolver resolves tokens. Provider factories receive a Resolver bound to
// the Injector that requested the value.
type Resolver interface {
	Resolve(ctx context.Context, token Token) (any, error)
}

// Factory produces the value for a token. It may block and may resolve
// other tokens through r.
type Factory func(ctx context.Context, r Resolver) (any, error)

// Provider binds a token to a factory.
type Provider struct {
	Provide Token
	Factory Factory
}

// ValueProvider provides a fixed value.
func ValueProvider(token Token, value any) Provider {
	return Provider{
		Provide: token,
		Factory: func(context.Context, Resolver) (any, error) { return value, nil },
	}
}

// FactoryProvider provides the result of fn.
func FactoryProvider(token Token, fn Factory) Provider {
	return Provider{Provide: token, Factory: fn}
}

// ClassProvider provides token by constructing cls with its declared
// dependencies.
func ClassProvider(token Token, cls Class, deps ...Token) Provider {
	return Provider{Provide: token, Factory: classFactory(cls, deps)}
}

// Resolve resolves token and asserts the value to T.
func Resolve[T any](ctx context.Context, r Resolver, token Token) (T, error) {
	var zero T

	v, err := r.Resolve(ctx, token)
	if err != nil {
		return zero, err
	}

	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, TypeMismatchError{
			Token:    token,
			Expected: reflect.TypeOf((*T)(nil)).Elem(),
			Actual:   reflect.TypeOf(v),
		}
	}

	return typed, nil
}

// ResolveType resolves the type token of T.
//
//	svc, err := modkit.ResolveType[*UserService](ctx, injector)
func ResolveType[T any](ctx context.Context, r Resolver) (T, error) {
	return Resolve[T](ctx, r, TokenOf[T]())
}

// classFactory builds the default factory of a class: resolve each
// dependency positionally, then invoke the constructor.
func classFactory(cls Class, deps []Token) Factory {
	return func(ctx context.Context, r Resolver) (any, error) {
		if cls.IsZero() {
			return nil, ErrNilClass
		}

		params := cls.ctor.Params
		if deps == nil && len(params) == 1 && isParamObject(params[0]) {
			arg, err := buildParamObject(ctx, r, params[0])
			if err != nil {
				return nil, err
			}
			return callConstructor(cls, []reflect.Value{arg})
		}

		tokens := deps
		if tokens == nil {
			tokens = make([]Token, len(params))
			for i, p := range params {
				tokens[i] = TokenFor(p)
			}
		}

		if len(tokens) != len(params) {
			return nil, InvalidConstructorError{
				Constructor: cls.ctor.Value.Interface(),
				Cause:       fmt.Errorf("%d dependencies declared for %d parameters", len(tokens), len(params)),
			}
		}

		args := make([]reflect.Value, len(params))
		for i, tok := range tokens {
			v, err := r.Resolve(ctx, tok)
			if err != nil {
				return nil, err
			}

			arg, err := reflection.Convert(v, params[i])
			if err != nil {
				return nil, TypeMismatchError{Token: tok, Expected: params[i], Actual: reflect.TypeOf(v)}
			}
			args[i] = arg
		}

		return callConstructor(cls, args)
	}
}

func callConstructor(cls Class, args []reflect.Value) (any, error) {
	v, err := cls.ctor.Call(args)
	if err != nil {
		if pe, ok := err.(*reflection.PanicError); ok {
			return nil, ConstructorPanicError{Type: cls.typ, Panic: pe.Value, Stack: pe.Stack}
		}
		return nil, err
	}
	return v, nil
}

package modkit

import (
	"reflect"

	"github.com/junioryono/modkit/internal/reflection"
)

// Class is a constructible type: a Go type paired with the constructor that
// produces it. The produced type is the class identity, so two Class values
// built from different constructors of the same type refer to the same class.
//
// Modules, controllers, injectables and middleware/error-handler types are
// all classes.
type Class struct {
	typ  reflect.Type
	ctor *reflection.FuncInfo
}

// NewClass creates a class from a constructor. The constructor must return T
// or (T, error). Its parameters are the class dependencies, resolved
// positionally from the declared Deps or, when none are declared, from the
// parameter types.
func NewClass(ctor any) (Class, error) {
	info, err := reflection.AnalyzeConstructor(ctor)
	if err != nil {
		return Class{}, InvalidConstructorError{Constructor: ctor, Cause: err}
	}

	return Class{typ: info.Result, ctor: info}, nil
}

// ClassOf is like NewClass but panics on an invalid constructor. It is meant
// for package-level declarations.
//
//	var UserControllerClass = modkit.ClassOf(NewUserController)
func ClassOf(ctor any) Class {
	c, err := NewClass(ctor)
	if err != nil {
		panic(err)
	}
	return c
}

// TypeClass returns the class *T constructed with new(T).
func TypeClass[T any]() Class {
	return ClassOf(func() *T { return new(T) })
}

// Type returns the class identity.
func (c Class) Type() reflect.Type { return c.typ }

// Token returns the type token of the class.
func (c Class) Token() Token { return TokenFor(c.typ) }

// IsZero reports whether c is the zero Class.
func (c Class) IsZero() bool { return c.typ == nil || c.ctor == nil }

// Params returns the constructor parameter types.
func (c Class) Params() []reflect.Type {
	if c.ctor == nil {
		return nil
	}
	return c.ctor.Params
}

func (c Class) String() string {
	if c.typ == nil {
		return "<nil class>"
	}
	return formatType(c.typ)
}

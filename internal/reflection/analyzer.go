// Package reflection analyzes and invokes constructors and handler methods.
package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// ErrNotAFunction is returned when a value that must be a function is not.
var ErrNotAFunction = errors.New("value is not a function")

// FuncInfo describes the shape of a constructor or bound method.
type FuncInfo struct {
	Type  reflect.Type
	Value reflect.Value

	// Params are the parameter types in positional order.
	Params []reflect.Type

	// Result is the non-error return type, or nil when the function returns
	// nothing but an optional error.
	Result reflect.Type

	// HasErrorReturn is true when the last return value is an error.
	HasErrorReturn bool

	Variadic bool
}

// PanicError records a panic raised by an invoked function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// AnalyzeConstructor analyzes a constructor. A constructor must return T or
// (T, error) where T is not error.
func AnalyzeConstructor(ctor any) (*FuncInfo, error) {
	if ctor == nil {
		return nil, ErrNotAFunction
	}

	info, err := Analyze(reflect.ValueOf(ctor))
	if err != nil {
		return nil, err
	}

	if info.Result == nil {
		return nil, fmt.Errorf("constructor %s must return a value", info.Type)
	}

	return info, nil
}

// Analyze inspects a function value. Accepted return shapes are (), (error),
// (T) and (T, error).
func Analyze(fn reflect.Value) (*FuncInfo, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, ErrNotAFunction
	}
	if fn.IsNil() {
		return nil, fmt.Errorf("%w: nil function", ErrNotAFunction)
	}

	typ := fn.Type()
	info := &FuncInfo{
		Type:     typ,
		Value:    fn,
		Params:   make([]reflect.Type, typ.NumIn()),
		Variadic: typ.IsVariadic(),
	}

	for i := 0; i < typ.NumIn(); i++ {
		info.Params[i] = typ.In(i)
	}

	switch typ.NumOut() {
	case 0:
	case 1:
		if typ.Out(0) == errType {
			info.HasErrorReturn = true
		} else {
			info.Result = typ.Out(0)
		}
	case 2:
		if typ.Out(1) != errType {
			return nil, fmt.Errorf("function %s: second return value must be error", typ)
		}
		if typ.Out(0) == errType {
			return nil, fmt.Errorf("function %s: first return value cannot be error", typ)
		}
		info.Result = typ.Out(0)
		info.HasErrorReturn = true
	default:
		return nil, fmt.Errorf("function %s: too many return values (%d)", typ, typ.NumOut())
	}

	if info.Variadic {
		return nil, fmt.Errorf("function %s: variadic functions are not supported", typ)
	}

	return info, nil
}

// Call invokes the function with the given arguments. Panics are recovered
// and returned as *PanicError.
func (f *FuncInfo) Call(args []reflect.Value) (result any, err error) {
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("function %s expects %d arguments, got %d", f.Type, len(f.Params), len(args))
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	out := f.Value.Call(args)

	if f.HasErrorReturn {
		if e := out[len(out)-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
	}

	if f.Result == nil {
		return nil, nil
	}

	return out[0].Interface(), nil
}

// Convert prepares v to be passed as a parameter of type t.
func Convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		if isNillable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}

	val := reflect.ValueOf(v)
	if val.Type().AssignableTo(t) {
		if val.Type() == t {
			return val, nil
		}
		out := reflect.New(t).Elem()
		out.Set(val)
		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", val.Type(), t)
}

// BindMethod returns the method named name bound to instance.
func BindMethod(instance any, name string) (reflect.Value, error) {
	if instance == nil {
		return reflect.Value{}, fmt.Errorf("cannot bind %s on nil instance", name)
	}

	m := reflect.ValueOf(instance).MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, fmt.Errorf("%T has no method %s", instance, name)
	}

	return m, nil
}

// HasMethod reports whether t has an exported method named name in its
// method set.
func HasMethod(t reflect.Type, name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.MethodByName(name)
	return ok
}

// HasOwnMethod reports whether t has an exported method named name that is
// not promoted from an embedded field. A method that an embedded field also
// supplies counts as promoted.
func HasOwnMethod(t reflect.Type, name string) bool {
	if !HasMethod(t, name) {
		return false
	}

	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return true
	}

	for i := 0; i < base.NumField(); i++ {
		f := base.Field(i)
		if !f.Anonymous {
			continue
		}
		if HasMethod(f.Type, name) {
			return false
		}
		if f.Type.Kind() != reflect.Pointer && f.Type.Kind() != reflect.Interface && HasMethod(reflect.PointerTo(f.Type), name) {
			return false
		}
	}
	return true
}

// ImplementsError reports whether t is the error interface.
func ImplementsError(t reflect.Type) bool {
	return t == errType
}

func isNillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

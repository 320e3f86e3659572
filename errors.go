package modkit

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// Typed errors below report these through Is, so callers can match a whole
// category with errors.Is without knowing the concrete type.

var (
	ErrNotFound          = errors.New("token not found")
	ErrNotAModule        = errors.New("not a module")
	ErrNotAController    = errors.New("not a controller")
	ErrAlreadyBound      = errors.New("injector already bound")
	ErrEmptyController   = errors.New("controller has no methods")
	ErrInvalidMiddleware = errors.New("invalid middleware")
	ErrNotAnErrorHandler = errors.New("not an error handler")
	ErrConfiguration     = errors.New("invalid configuration")
	ErrDuplicateCommand  = errors.New("duplicate command")
	ErrNoCommandFound    = errors.New("no command found")
	ErrDuplicateRoute    = errors.New("duplicate route")
	ErrCircular          = errors.New("circular dependency")

	ErrNilClass    = errors.New("class cannot be nil")
	ErrNilFactory  = errors.New("provider factory cannot be nil")
	ErrInvalidArgs = errors.New("invalid arguments")
)

var (
	_ error = NotAModuleError{}
	_ error = NotAControllerError{}
	_ error = AlreadyBoundError{}
	_ error = NotFoundError{}
	_ error = EmptyControllerError{}
	_ error = InvalidMiddlewareError{}
	_ error = NotAnErrorHandlerError{}
	_ error = ConfigurationError{}
	_ error = DuplicateCommandError{}
	_ error = NoCommandFoundError{}
	_ error = InvalidConstructorError{}
	_ error = InvalidMethodError{}
	_ error = InvalidHandlerError{}
	_ error = CircularDependencyError{}
	_ error = ProviderError{}
	_ error = TypeMismatchError{}
	_ error = ConstructorPanicError{}
	_ error = HandlerPanicError{}
	_ error = DuplicateRouteError{}
	_ error = ShutdownError{}
	_ error = HTTPError{}
)

// ========================================
// Structural errors
// ========================================

// NotAModuleError indicates a class used as a module has no valid module
// descriptor.
type NotAModuleError struct {
	Type  reflect.Type
	Cause error
}

func (e NotAModuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s is not a module: %v", formatType(e.Type), e.Cause)
	}
	return fmt.Sprintf("%s is not a module (declare it with Metadata.Module)", formatType(e.Type))
}

func (e NotAModuleError) Unwrap() error        { return e.Cause }
func (e NotAModuleError) Is(target error) bool { return target == ErrNotAModule }

// NotAControllerError indicates a class listed as a controller has no valid
// controller descriptor.
type NotAControllerError struct {
	Type  reflect.Type
	Cause error
}

func (e NotAControllerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s is not a controller: %v", formatType(e.Type), e.Cause)
	}
	return fmt.Sprintf("%s is not a controller (declare it with Metadata.Controller)", formatType(e.Type))
}

func (e NotAControllerError) Unwrap() error        { return e.Cause }
func (e NotAControllerError) Is(target error) bool { return target == ErrNotAController }

// AlreadyBoundError indicates an Injector already exists for a module class.
type AlreadyBoundError struct {
	Type reflect.Type
}

func (e AlreadyBoundError) Error() string {
	return fmt.Sprintf("an injector is already bound to module %s", formatType(e.Type))
}

func (e AlreadyBoundError) Is(target error) bool { return target == ErrAlreadyBound }

// EmptyControllerError indicates a controller declares no methods.
type EmptyControllerError struct {
	Type reflect.Type
}

func (e EmptyControllerError) Error() string {
	return fmt.Sprintf("controller %s has no declared methods", formatType(e.Type))
}

func (e EmptyControllerError) Is(target error) bool { return target == ErrEmptyController }

// InvalidMiddlewareError indicates a middleware reference that is neither a
// MiddlewareFunc nor a class implementing Middleware.
type InvalidMiddlewareError struct {
	Ref   any
	Cause error
}

func (e InvalidMiddlewareError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid middleware %s: %v", describeRef(e.Ref), e.Cause)
	}
	return fmt.Sprintf("invalid middleware %s: expected a MiddlewareFunc or a class with a Handle method", describeRef(e.Ref))
}

func (e InvalidMiddlewareError) Unwrap() error        { return e.Cause }
func (e InvalidMiddlewareError) Is(target error) bool { return target == ErrInvalidMiddleware }

// NotAnErrorHandlerError indicates an error handler reference that is
// neither an ErrorHandlerFunc nor a class implementing ErrorHandler.
type NotAnErrorHandlerError struct {
	Ref   any
	Cause error
}

func (e NotAnErrorHandlerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid error handler %s: %v", describeRef(e.Ref), e.Cause)
	}
	return fmt.Sprintf("invalid error handler %s: expected an ErrorHandlerFunc or a class with a Catch method", describeRef(e.Ref))
}

func (e NotAnErrorHandlerError) Unwrap() error        { return e.Cause }
func (e NotAnErrorHandlerError) Is(target error) bool { return target == ErrNotAnErrorHandler }

// ConfigurationError indicates an inconsistent command layout, such as a main
// command declared alongside subcommands, or adapter input it cannot use.
type ConfigurationError struct {
	Reason string
	Method string
}

func (e ConfigurationError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("configuration error at %s: %s", e.Method, e.Reason)
	}
	return "configuration error: " + e.Reason
}

func (e ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DuplicateCommandError indicates two methods claim the same command name.
type DuplicateCommandError struct {
	Name string
}

func (e DuplicateCommandError) Error() string {
	return fmt.Sprintf("duplicate command %q", e.Name)
}

func (e DuplicateCommandError) Is(target error) bool { return target == ErrDuplicateCommand }

// DuplicateRouteError indicates two endpoints resolve to the same verb and
// full path.
type DuplicateRouteError struct {
	Verb string
	Path string
}

func (e DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route %s %s", e.Verb, e.Path)
}

func (e DuplicateRouteError) Is(target error) bool { return target == ErrDuplicateRoute }

// InvalidConstructorError indicates a value passed as a class constructor is
// not usable.
type InvalidConstructorError struct {
	Constructor any
	Cause       error
}

func (e InvalidConstructorError) Error() string {
	return fmt.Sprintf("invalid constructor %T: %v", e.Constructor, e.Cause)
}

func (e InvalidConstructorError) Unwrap() error { return e.Cause }

// InvalidMethodError indicates a malformed method declaration.
type InvalidMethodError struct {
	Type   reflect.Type
	Method string
	Cause  error
}

func (e InvalidMethodError) Error() string {
	return fmt.Sprintf("invalid method %s.%s: %v", formatType(e.Type), e.Method, e.Cause)
}

func (e InvalidMethodError) Unwrap() error { return e.Cause }

// InvalidHandlerError indicates a method whose signature cannot be bound as a
// handler.
type InvalidHandlerError struct {
	Type   reflect.Type
	Method string
	Cause  error
}

func (e InvalidHandlerError) Error() string {
	return fmt.Sprintf("cannot bind handler %s.%s: %v", formatType(e.Type), e.Method, e.Cause)
}

func (e InvalidHandlerError) Unwrap() error { return e.Cause }

// ========================================
// Resolution errors
// ========================================

// NotFoundError indicates a token could not be resolved locally or through
// any imported module.
type NotFoundError struct {
	Token  Token
	Module reflect.Type
}

func (e NotFoundError) Error() string {
	if e.Module != nil {
		return fmt.Sprintf("no provider for %s in module %s or its imports", e.Token, formatType(e.Module))
	}
	return fmt.Sprintf("no provider for %s", e.Token)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CircularDependencyError indicates a token was requested while it was
// already being resolved on the same path.
type CircularDependencyError struct {
	Path []Token
}

func (e CircularDependencyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, tok := range e.Path {
		parts[i] = tok.String()
	}
	return "circular dependency detected: " + strings.Join(parts, " -> ")
}

func (e CircularDependencyError) Is(target error) bool { return target == ErrCircular }

// ProviderError wraps a failure raised by a provider factory.
type ProviderError struct {
	Token Token
	Cause error
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider for %s failed: %v", e.Token, e.Cause)
}

func (e ProviderError) Unwrap() error { return e.Cause }

// TypeMismatchError indicates a resolved value has an unexpected type.
type TypeMismatchError struct {
	Token    Token
	Expected reflect.Type
	Actual   reflect.Type
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Token, formatType(e.Expected), formatType(e.Actual))
}

// ConstructorPanicError indicates a constructor panicked during invocation.
type ConstructorPanicError struct {
	Type  reflect.Type
	Panic any
	Stack []byte
}

func (e ConstructorPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("constructor for %s panicked: %v\n", formatType(e.Type), e.Panic))
	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}
	return b.String()
}

// HandlerPanicError indicates a controller method panicked during dispatch.
// HTTP adapters hand Panic to their panic handling instead of writing it as
// an error response.
type HandlerPanicError struct {
	Type   reflect.Type
	Method string
	Panic  any
	Stack  []byte
}

func (e HandlerPanicError) Error() string {
	return fmt.Sprintf("handler %s.%s panicked: %v", formatType(e.Type), e.Method, e.Panic)
}

// ========================================
// Dispatch and lifecycle errors
// ========================================

// NoCommandFoundError indicates no command matches the parsed arguments.
type NoCommandFoundError struct {
	Args Args
}

func (e NoCommandFoundError) Error() string {
	if len(e.Args.Positional) > 0 {
		return fmt.Sprintf("no command found for %q", e.Args.Positional[0])
	}
	return "no command found"
}

func (e NoCommandFoundError) Is(target error) bool { return target == ErrNoCommandFound }

// ShutdownError aggregates shutdown hook failures.
type ShutdownError struct {
	Errors []error
}

func (e ShutdownError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("shutdown failed: %v", e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("shutdown failed with %d errors:", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e ShutdownError) Unwrap() []error { return e.Errors }

// HTTPError is an error carrying an HTTP status code. HTTP adapters use the
// status when writing the response.
type HTTPError struct {
	Status  int
	Message string
	Cause   error
}

// NewHTTPError creates an HTTPError. An empty message defaults to the status
// text.
func NewHTTPError(status int, message string) HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return HTTPError{Status: status, Message: message}
}

// NewHTTPErrorWithCause creates an HTTPError wrapping cause.
func NewHTTPErrorWithCause(status int, message string, cause error) HTTPError {
	e := NewHTTPError(status, message)
	e.Cause = cause
	return e
}

func (e HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e HTTPError) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status.
func (e HTTPError) StatusCode() int { return e.Status }

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCircular reports whether err is, or wraps, a CircularDependencyError.
func IsCircular(err error) bool {
	return errors.Is(err, ErrCircular)
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Interface, reflect.Struct:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}

func describeRef(ref any) string {
	switch r := ref.(type) {
	case nil:
		return "<nil>"
	case Class:
		return r.String()
	default:
		return fmt.Sprintf("%T", ref)
	}
}

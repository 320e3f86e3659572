package modkit

import "net/http"

// InjectableDescriptor declares the dependencies of a class constructor.
type InjectableDescriptor struct {
	Deps []Token
}

// ModuleDescriptor describes a module (feature).
type ModuleDescriptor struct {
	// Route is the route segment the module is mounted at.
	Route string

	// Imports are the modules whose providers this module can resolve.
	Imports []Class

	// Providers are Provider values or bare classes.
	Providers []any

	// Controllers are the controller classes owned by this module.
	Controllers []Class

	// Middlewares apply to every method of every controller in the module.
	Middlewares []any

	// ErrorHandler is the last fallback for the module's methods.
	ErrorHandler any

	// Deps are the module constructor dependencies.
	Deps []Token

	Description string
}

// ControllerDescriptor describes a controller (gateway).
type ControllerDescriptor struct {
	Route        string
	Middlewares  []any
	ErrorHandler any
	Deps         []Token
	Description  string
}

// FlagSpec declares a command line flag of a command method.
type FlagSpec struct {
	Name      string `validate:"required"`
	Shorthand string `validate:"omitempty,len=1"`
	Default   string
	Usage     string
}

// MethodDescriptor describes a controller method visible to modkit.
type MethodDescriptor struct {
	// Name is the Go method name.
	Name string `validate:"required"`

	// Verb and Path make the method an HTTP endpoint.
	Verb string `validate:"omitempty,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	Path string `validate:"required_with=Verb"`

	// Command makes the method a named subcommand; Main makes it the single
	// main command.
	Command string
	Main    bool

	Flags []FlagSpec `validate:"dive"`

	Middlewares  []any
	ErrorHandler any

	// Args produce the method arguments positionally. When nil, arguments
	// are inferred from the parameter types.
	Args []InputFactory

	Description string
}

// IsEndpoint reports whether the method is exposed over HTTP.
func (d MethodDescriptor) IsEndpoint() bool {
	return d.Verb != ""
}

// IsCommand reports whether the method is a command or the main command.
func (d MethodDescriptor) IsCommand() bool {
	return d.Main || d.Command != ""
}

// ========================================
// Merging
// ========================================
// Repeated declarations on one target accumulate: list fields append in call
// order, non-zero scalars overwrite, Main is sticky.

func (d ModuleDescriptor) merge(p ModuleDescriptor) ModuleDescriptor {
	d.Route = pick(d.Route, p.Route)
	d.Imports = append(d.Imports, p.Imports...)
	d.Providers = append(d.Providers, p.Providers...)
	d.Controllers = append(d.Controllers, p.Controllers...)
	d.Middlewares = append(d.Middlewares, p.Middlewares...)
	if p.ErrorHandler != nil {
		d.ErrorHandler = p.ErrorHandler
	}
	if p.Deps != nil {
		d.Deps = p.Deps
	}
	d.Description = pick(d.Description, p.Description)
	return d
}

func (d ControllerDescriptor) merge(p ControllerDescriptor) ControllerDescriptor {
	d.Route = pick(d.Route, p.Route)
	d.Middlewares = append(d.Middlewares, p.Middlewares...)
	if p.ErrorHandler != nil {
		d.ErrorHandler = p.ErrorHandler
	}
	if p.Deps != nil {
		d.Deps = p.Deps
	}
	d.Description = pick(d.Description, p.Description)
	return d
}

func (d MethodDescriptor) merge(p MethodDescriptor) MethodDescriptor {
	d.Name = pick(d.Name, p.Name)
	d.Verb = pick(d.Verb, p.Verb)
	d.Path = pick(d.Path, p.Path)
	d.Command = pick(d.Command, p.Command)
	d.Main = d.Main || p.Main
	d.Flags = append(d.Flags, p.Flags...)
	d.Middlewares = append(d.Middlewares, p.Middlewares...)
	if p.ErrorHandler != nil {
		d.ErrorHandler = p.ErrorHandler
	}
	if p.Args != nil {
		d.Args = p.Args
	}
	d.Description = pick(d.Description, p.Description)
	return d
}

func pick(current, next string) string {
	if next != "" {
		return next
	}
	return current
}

// ========================================
// Declaration options
// ========================================

// ModuleOption configures a module declaration.
type ModuleOption interface {
	applyModule(*ModuleDescriptor)
}

// ControllerOption configures a controller declaration.
type ControllerOption interface {
	applyController(*ControllerDescriptor)
}

// MethodOption configures a method declaration.
type MethodOption interface {
	applyMethod(*MethodDescriptor)
}

// ClassOption applies to module and controller declarations.
type ClassOption interface {
	ModuleOption
	ControllerOption
}

// SharedOption applies to module, controller and method declarations.
type SharedOption interface {
	ModuleOption
	ControllerOption
	MethodOption
}

type importsOption []Class

// Imports adds imported modules.
func Imports(modules ...Class) ModuleOption { return importsOption(modules) }

func (o importsOption) applyModule(d *ModuleDescriptor) {
	d.Imports = append(d.Imports, o...)
}

type providersOption []any

// Providers adds providers. Each item is a Provider or a Class.
func Providers(items ...any) ModuleOption { return providersOption(items) }

func (o providersOption) applyModule(d *ModuleDescriptor) {
	d.Providers = append(d.Providers, o...)
}

type controllersOption []Class

// Controllers adds controller classes.
func Controllers(classes ...Class) ModuleOption { return controllersOption(classes) }

func (o controllersOption) applyModule(d *ModuleDescriptor) {
	d.Controllers = append(d.Controllers, o...)
}

type useOption []any

// Use adds middlewares. Each item is a MiddlewareFunc or a class
// implementing Middleware. It applies to modules, controllers and methods.
func Use(middlewares ...any) SharedOption { return useOption(middlewares) }

func (o useOption) applyModule(d *ModuleDescriptor) { d.Middlewares = append(d.Middlewares, o...) }
func (o useOption) applyController(d *ControllerDescriptor) {
	d.Middlewares = append(d.Middlewares, o...)
}
func (o useOption) applyMethod(d *MethodDescriptor) { d.Middlewares = append(d.Middlewares, o...) }

type catchOption struct{ handler any }

// Catch sets the error handler: an ErrorHandlerFunc or a class implementing
// ErrorHandler.
func Catch(handler any) SharedOption { return catchOption{handler: handler} }

func (o catchOption) applyModule(d *ModuleDescriptor)         { d.ErrorHandler = o.handler }
func (o catchOption) applyController(d *ControllerDescriptor) { d.ErrorHandler = o.handler }
func (o catchOption) applyMethod(d *MethodDescriptor)         { d.ErrorHandler = o.handler }

type describeOption string

// Describe sets a human readable description.
func Describe(text string) SharedOption { return describeOption(text) }

func (o describeOption) applyModule(d *ModuleDescriptor)         { d.Description = string(o) }
func (o describeOption) applyController(d *ControllerDescriptor) { d.Description = string(o) }
func (o describeOption) applyMethod(d *MethodDescriptor)         { d.Description = string(o) }

type depsOption []Token

// Deps declares constructor dependencies positionally.
func Deps(tokens ...Token) ClassOption { return depsOption(tokens) }

func (o depsOption) applyModule(d *ModuleDescriptor)         { d.Deps = []Token(o) }
func (o depsOption) applyController(d *ControllerDescriptor) { d.Deps = []Token(o) }

type routeOption string

// Route sets the route segment of a module or controller.
func Route(segment string) ClassOption { return routeOption(segment) }

func (o routeOption) applyModule(d *ModuleDescriptor)         { d.Route = string(o) }
func (o routeOption) applyController(d *ControllerDescriptor) { d.Route = string(o) }

type endpointOption struct {
	verb string
	path string
}

// Handle exposes a method as an HTTP endpoint. Path parameters use the
// ":name" syntax.
func Handle(verb, path string) MethodOption { return endpointOption{verb: verb, path: path} }

// Get exposes a method as a GET endpoint.
func Get(path string) MethodOption { return Handle(http.MethodGet, path) }

// Post exposes a method as a POST endpoint.
func Post(path string) MethodOption { return Handle(http.MethodPost, path) }

// Put exposes a method as a PUT endpoint.
func Put(path string) MethodOption { return Handle(http.MethodPut, path) }

// Patch exposes a method as a PATCH endpoint.
func Patch(path string) MethodOption { return Handle(http.MethodPatch, path) }

// Delete exposes a method as a DELETE endpoint.
func Delete(path string) MethodOption { return Handle(http.MethodDelete, path) }

func (o endpointOption) applyMethod(d *MethodDescriptor) {
	d.Verb = o.verb
	d.Path = o.path
	if d.Path == "" {
		d.Path = "/"
	}
}

type commandOption string

// Command exposes a method as a named subcommand.
func Command(name string) MethodOption { return commandOption(name) }

func (o commandOption) applyMethod(d *MethodDescriptor) { d.Command = string(o) }

type mainOption struct{}

// Main exposes a method as the single main command.
func Main() MethodOption { return mainOption{} }

func (mainOption) applyMethod(d *MethodDescriptor) { d.Main = true }

type flagOption FlagSpec

// Flag declares a command line flag.
func Flag(name, usage string) MethodOption { return flagOption{Name: name, Usage: usage} }

// FlagWithDefault declares a command line flag with a shorthand and default.
func FlagWithDefault(name, shorthand, def, usage string) MethodOption {
	return flagOption{Name: name, Shorthand: shorthand, Default: def, Usage: usage}
}

func (o flagOption) applyMethod(d *MethodDescriptor) { d.Flags = append(d.Flags, FlagSpec(o)) }

type argsOption []InputFactory

// WithInputs sets the input factories that produce the method arguments.
func WithInputs(inputs ...InputFactory) MethodOption { return argsOption(inputs) }

func (o argsOption) applyMethod(d *MethodDescriptor) { d.Args = []InputFactory(o) }

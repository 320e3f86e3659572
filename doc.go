// Package modkit is a module-oriented dependency injection and routing
// framework. Applications are declared as a tree of modules; each module
// owns providers, controllers and the modules it imports. A compiled tree is
// then linked onto an HTTP router or a command line.
//
// # Overview
//
// modkit keeps declarations apart from the types they describe:
//   - A Metadata store records module, injectable, controller and method
//     descriptors against Go types
//   - BuildGraph validates the declarations and produces a module graph
//   - Every module gets its own Injector; tokens resolve locally first and
//     then through imports in declaration order
//   - Compile instantiates controllers and binds each method to its
//     middleware chain and error handlers
//   - Link mounts compiled endpoints through an Adapter; LinkCommands
//     collects compiled commands into a CommandTable
//
// Adapters for chi, gin, echo, gorilla/mux and cobra live in subpackages.
//
// # Basic Usage
//
// Declare the modules, compile the root and mount it:
//
//	meta := modkit.NewMetadata()
//
//	users := modkit.TypeClass[UsersModule]()
//	ctrl := modkit.ClassOf(NewUsersController)
//
//	meta.Module(users,
//	    modkit.Route("/users"),
//	    modkit.Providers(modkit.ClassOf(NewUserStore)),
//	    modkit.Controllers(ctrl),
//	)
//	meta.Controller(ctrl)
//	meta.Method(ctrl, "Get", modkit.Get("/:id"), modkit.WithInputs(modkit.Param("id")))
//
//	app, err := modkit.Compile(ctx, meta, users)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown(ctx)
//
//	r, err := modkitchi.Mount(ctx, app)
//
// # Tokens and Providers
//
// A Token identifies a provider. Type tokens come from constructors and
// types, string tokens from NewToken and unique tokens from NewSymbol:
//
//	modkit.Providers(
//	    modkit.ValueProvider(modkit.NewToken("dsn"), "postgres://..."),
//	    modkit.FactoryProvider(modkit.TokenOf[*sql.DB](), openDB),
//	    modkit.ClassOf(NewRepository),
//	)
//
// Constructor parameters are resolved by type unless Deps lists explicit
// tokens. Constructors may also accept a parameter object embedding In.
//
// # Resolution
//
// A token resolves at most once per requesting Injector. Concurrent requests
// for the same token share one construction, and a token requested again
// while it is being constructed fails with CircularDependencyError naming
// the path, including when the cycle spans goroutines. Every Injector
// provides itself under the token of its module type.
//
// # Middleware and Error Handlers
//
// Use and Catch attach to modules, controllers and methods. Middlewares run
// from the module inward; an error handler on the method takes precedence
// over the controller's, which takes precedence over the module's.
//
// # Lifecycle
//
// Instances implementing Initializer are initialized after construction.
// ShutdownHook and Disposable instances are released in construction order
// by CompiledModule.Shutdown.
//
// # Error Handling
//
// Failures are reported with typed errors that match sentinel values through
// errors.Is:
//   - NotFoundError: ErrNotFound
//   - CircularDependencyError: ErrCircular
//   - ConfigurationError: ErrConfiguration
//   - DuplicateRouteError: ErrDuplicateRoute
//   - DuplicateCommandError: ErrDuplicateCommand
//   - NoCommandFoundError: ErrNoCommandFound
//
// A panicking handler is reported as HandlerPanicError. HTTPError carries a
// status code through to the HTTP adapters.
package modkit

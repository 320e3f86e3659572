package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/junioryono/modkit"
)

// ========================================
// Resolution scenario
// ========================================

type (
	RootModule struct{}
	ModuleA    struct{}
	ModuleB    struct{}
)

// Scenario is the cross-module resolution fixture: ModuleB provides the
// string tokens "DA" and "DB", ModuleA provides IA (depending on "DA" and
// "DB") and IB (depending on IA), and RootModule imports ModuleA then
// ModuleB.
type Scenario struct {
	Meta *modkit.Metadata
	Root modkit.Class
	MA   modkit.Class
	MB   modkit.Class
	IA   modkit.Class
	IB   modkit.Class
}

// NewScenario declares the resolution scenario in a fresh Metadata.
func NewScenario() *Scenario {
	s := &Scenario{
		Meta: modkit.NewMetadata(),
		Root: modkit.TypeClass[RootModule](),
		MA:   modkit.TypeClass[ModuleA](),
		MB:   modkit.TypeClass[ModuleB](),
		IA:   modkit.ClassOf(NewIA),
		IB:   modkit.ClassOf(NewIB),
	}

	s.Meta.Module(s.MB, modkit.Providers(
		modkit.ValueProvider(modkit.NewToken("DA"), "dep1"),
		modkit.ValueProvider(modkit.NewToken("DB"), "dep2"),
	))

	s.Meta.Injectable(s.IA, modkit.NewToken("DA"), modkit.NewToken("DB"))
	s.Meta.Injectable(s.IB, s.IA.Token())
	s.Meta.Module(s.MA, modkit.Providers(s.IA, s.IB))

	s.Meta.Module(s.Root, modkit.Imports(s.MA, s.MB))

	return s
}

// Injector creates the Injector of the root module in a new registry.
func (s *Scenario) Injector() (*modkit.Injector, error) {
	return modkit.NewInjector(modkit.NewModuleRegistry(s.Meta), s.Root)
}

// ========================================
// HTTP application
// ========================================

type (
	AppModule   struct{}
	UsersModule struct{}
)

// User is the resource served by the sample application.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserStore is an in-memory user store.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]User
	next  int
}

// NewUserStore creates a store holding user "1" (alice).
func NewUserStore() *UserStore {
	return &UserStore{
		users: map[string]User{"1": {ID: "1", Name: "alice"}},
		next:  2,
	}
}

// UsersController serves /users.
type UsersController struct {
	Store *UserStore
}

func NewUsersController(store *UserStore) *UsersController {
	return &UsersController{Store: store}
}

func (c *UsersController) List(ctx context.Context) ([]User, error) {
	c.Store.mu.RLock()
	defer c.Store.mu.RUnlock()

	out := make([]User, 0, len(c.Store.users))
	for _, u := range c.Store.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *UsersController) Get(id string) (User, error) {
	c.Store.mu.RLock()
	defer c.Store.mu.RUnlock()

	u, ok := c.Store.users[id]
	if !ok {
		return User{}, modkit.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return u, nil
}

func (c *UsersController) Create(u User) (User, error) {
	if strings.TrimSpace(u.Name) == "" {
		return User{}, modkit.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
	}

	c.Store.mu.Lock()
	defer c.Store.mu.Unlock()

	u.ID = fmt.Sprint(c.Store.next)
	c.Store.next++
	c.Store.users[u.ID] = u
	return u, nil
}

func (c *UsersController) Delete(id string) error {
	c.Store.mu.Lock()
	defer c.Store.mu.Unlock()

	if _, ok := c.Store.users[id]; !ok {
		return modkit.NewHTTPError(http.StatusNotFound, "user not found")
	}
	delete(c.Store.users, id)
	return nil
}

// HealthController serves /health.
type HealthController struct{}

func (h *HealthController) Check() string { return "ok" }

func (h *HealthController) Fail() error { return ErrIntentional }

func (h *HealthController) Raw(c *modkit.Context) {
	c.Writer.Header().Set("X-Raw", "true")
	c.Writer.WriteHeader(http.StatusAccepted)
	_, _ = c.Writer.Write([]byte("raw"))
}

// App is the sample HTTP application fixture.
type App struct {
	Meta   *modkit.Metadata
	Root   modkit.Class
	Users  modkit.Class
	Health modkit.Class
}

// NewApp declares the sample application mounted at /api:
//
//	GET    /api/health
//	GET    /api/health/fail
//	GET    /api/health/raw
//	GET    /api/users
//	POST   /api/users
//	GET    /api/users/:id
//	DELETE /api/users/:id
func NewApp() *App {
	a := &App{
		Meta:   modkit.NewMetadata(),
		Root:   modkit.TypeClass[AppModule](),
		Users:  modkit.TypeClass[UsersModule](),
		Health: modkit.TypeClass[HealthController](),
	}

	ctrl := modkit.ClassOf(NewUsersController)

	a.Meta.Module(a.Root, modkit.Route("/api"), modkit.Imports(a.Users), modkit.Controllers(a.Health))
	a.Meta.Controller(a.Health, modkit.Route("/health"))
	a.Meta.Method(a.Health, "Check", modkit.Get("/"))
	a.Meta.Method(a.Health, "Fail", modkit.Get("/fail"))
	a.Meta.Method(a.Health, "Raw", modkit.Get("/raw"))

	a.Meta.Module(a.Users,
		modkit.Route("/users"),
		modkit.Providers(modkit.ClassOf(NewUserStore)),
		modkit.Controllers(ctrl),
	)
	a.Meta.Controller(ctrl)
	a.Meta.Method(ctrl, "List", modkit.Get(""))
	a.Meta.Method(ctrl, "Create", modkit.Post(""), modkit.WithInputs(modkit.Body[User]()))
	a.Meta.Method(ctrl, "Get", modkit.Get("/:id"), modkit.WithInputs(modkit.Param("id")))
	a.Meta.Method(ctrl, "Delete", modkit.Delete("/:id"), modkit.WithInputs(modkit.Param("id")))

	return a
}

// Compile compiles the application.
func (a *App) Compile(ctx context.Context) (*modkit.CompiledModule, error) {
	return modkit.Compile(ctx, a.Meta, a.Root)
}

// ========================================
// CLI application
// ========================================

type ToolModule struct{}

// ToolController exposes the "greet" and "sum" commands.
type ToolController struct{}

func (t *ToolController) Greet(name string, shout bool) string {
	msg := "hello, " + name
	if shout {
		msg = strings.ToUpper(msg)
	}
	return msg
}

func (t *ToolController) Sum(args modkit.Args) (int, error) {
	total := 0
	for _, p := range args.Positional {
		var n int
		if _, err := fmt.Sscan(p, &n); err != nil {
			return 0, fmt.Errorf("not a number: %q", p)
		}
		total += n
	}
	return total, nil
}

// NewTool declares a CLI application with the subcommands "greet" and
// "sum".
func NewTool() (*modkit.Metadata, modkit.Class) {
	meta := modkit.NewMetadata()
	root := modkit.TypeClass[ToolModule]()
	ctrl := modkit.TypeClass[ToolController]()

	meta.Module(root, modkit.Controllers(ctrl))
	meta.Controller(ctrl)
	meta.Method(ctrl, "Greet",
		modkit.Command("greet"),
		modkit.Describe("Print a greeting"),
		modkit.FlagWithDefault("name", "n", "world", "who to greet"),
		modkit.Flag("shout", "print in upper case"),
		modkit.WithInputs(modkit.FlagInput("name"), modkit.FlagAs[bool]("shout")),
	)
	meta.Method(ctrl, "Sum", modkit.Command("sum"), modkit.Describe("Add numbers"))

	return meta, root
}

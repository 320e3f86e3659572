package modkit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/testutil"
)

type (
	cycleA struct{ B *cycleB }
	cycleB struct{ A *cycleA }

	sharedModule struct{}
	leftModule   struct{}
	rightModule  struct{}
	firstModule  struct{}
	secondModule struct{}
	loopModule   struct{}
	backModule   struct{}
)

func newCycleA(b *cycleB) *cycleA { return &cycleA{B: b} }
func newCycleB(a *cycleA) *cycleB { return &cycleB{A: a} }

func newInjector(t *testing.T, meta *modkit.Metadata, cls modkit.Class) *modkit.Injector {
	t.Helper()
	inj, err := modkit.NewInjector(modkit.NewModuleRegistry(meta), cls)
	require.NoError(t, err)
	return inj
}

func TestInjector_CrossModuleResolution(t *testing.T) {
	s := testutil.NewScenario()
	inj, err := s.Injector()
	require.NoError(t, err)

	ib := testutil.AssertResolvable[*testutil.IB](t, inj)
	require.NotNil(t, ib.IA)
	assert.Equal(t, "dep1", ib.IA.DA)
	assert.Equal(t, "dep2", ib.IA.DB)

	t.Run("resolution is deterministic", func(t *testing.T) {
		again := testutil.AssertResolvable[*testutil.IB](t, inj)
		testutil.AssertSameInstance(t, ib, again)

		ia := testutil.AssertResolvable[*testutil.IA](t, inj)
		testutil.AssertSameInstance(t, ib.IA, ia)
	})

	t.Run("string tokens from a nested import", func(t *testing.T) {
		da := testutil.AssertTokenResolvable[string](t, inj, modkit.NewToken("DA"))
		assert.Equal(t, "dep1", da)
	})

	t.Run("missing token", func(t *testing.T) {
		testutil.AssertNotFound(t, inj, modkit.NewToken("DC"))
	})

	t.Run("imports do not see their siblings", func(t *testing.T) {
		reg := modkit.NewModuleRegistry(s.Meta)
		ma, err := reg.Injector(s.MA)
		require.NoError(t, err)

		_, err = ma.Resolve(context.Background(), s.IA.Token())
		require.Error(t, err)
		assert.True(t, modkit.IsNotFound(err))
		assert.Contains(t, err.Error(), `"DA"`)
	})
}

func TestInjector_SelfProvider(t *testing.T) {
	s := testutil.NewScenario()
	inj, err := s.Injector()
	require.NoError(t, err)

	mod := testutil.AssertResolvable[*testutil.RootModule](t, inj)
	assert.NotNil(t, mod)

	t.Run("declared provider takes precedence", func(t *testing.T) {
		meta := modkit.NewMetadata()
		root := modkit.TypeClass[testutil.RootModule]()
		custom := &testutil.RootModule{}
		meta.Module(root, modkit.Providers(modkit.ValueProvider(root.Token(), custom)))

		inj := newInjector(t, meta, root)
		got := testutil.AssertResolvable[*testutil.RootModule](t, inj)
		testutil.AssertSameInstance(t, custom, got)
	})
}

func TestNewInjector_Errors(t *testing.T) {
	t.Run("already bound", func(t *testing.T) {
		s := testutil.NewScenario()
		reg := modkit.NewModuleRegistry(s.Meta)

		_, err := modkit.NewInjector(reg, s.Root)
		require.NoError(t, err)

		_, err = modkit.NewInjector(reg, s.Root)
		require.Error(t, err)
		assert.ErrorIs(t, err, modkit.ErrAlreadyBound)

		var abe modkit.AlreadyBoundError
		require.ErrorAs(t, err, &abe)
		assert.Equal(t, s.Root.Type(), abe.Type)
	})

	t.Run("separate registries are isolated", func(t *testing.T) {
		s := testutil.NewScenario()

		a, err := s.Injector()
		require.NoError(t, err)
		b, err := s.Injector()
		require.NoError(t, err)

		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("not a module", func(t *testing.T) {
		meta := modkit.NewMetadata()
		_, err := modkit.NewInjector(modkit.NewModuleRegistry(meta), modkit.TypeClass[testutil.RootModule]())

		require.Error(t, err)
		assert.ErrorIs(t, err, modkit.ErrNotAModule)
	})

	t.Run("zero class", func(t *testing.T) {
		_, err := modkit.NewInjector(modkit.NewModuleRegistry(modkit.NewMetadata()), modkit.Class{})
		assert.ErrorIs(t, err, modkit.ErrNotAModule)
		assert.ErrorIs(t, err, modkit.ErrNilClass)
	})

	t.Run("malformed provider", func(t *testing.T) {
		meta := modkit.NewMetadata()
		root := modkit.TypeClass[testutil.RootModule]()
		meta.Module(root, modkit.Providers(42))

		_, err := modkit.NewInjector(modkit.NewModuleRegistry(meta), root)
		require.Error(t, err)
		assert.ErrorIs(t, err, modkit.ErrNotAModule)
		assert.ErrorIs(t, err, modkit.ErrInvalidArgs)
	})

	t.Run("provider without factory", func(t *testing.T) {
		meta := modkit.NewMetadata()
		root := modkit.TypeClass[testutil.RootModule]()
		meta.Module(root, modkit.Providers(modkit.Provider{Provide: modkit.NewToken("x")}))

		_, err := modkit.NewInjector(modkit.NewModuleRegistry(meta), root)
		assert.ErrorIs(t, err, modkit.ErrNilFactory)
	})
}

func TestInjector_CircularDependency(t *testing.T) {
	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	a := modkit.ClassOf(newCycleA)
	b := modkit.ClassOf(newCycleB)
	meta.Module(root, modkit.Providers(a, b))

	inj := newInjector(t, meta, root)

	_, err := inj.Resolve(context.Background(), a.Token())
	require.Error(t, err)
	assert.True(t, modkit.IsCircular(err))

	var cde modkit.CircularDependencyError
	require.ErrorAs(t, err, &cde)
	assert.Equal(t, []modkit.Token{a.Token(), b.Token(), a.Token()}, cde.Path)
	assert.Contains(t, err.Error(), "*cycleA -> *cycleB -> *cycleA")
}

func TestInjector_ConcurrentCycle(t *testing.T) {
	a, b := modkit.NewToken("a"), modkit.NewToken("b")

	var started sync.WaitGroup
	started.Add(2)
	dependsOn := func(dep modkit.Token) modkit.Factory {
		return func(ctx context.Context, r modkit.Resolver) (any, error) {
			started.Done()
			started.Wait()
			return r.Resolve(ctx, dep)
		}
	}

	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	meta.Module(root, modkit.Providers(
		modkit.FactoryProvider(a, dependsOn(b)),
		modkit.FactoryProvider(b, dependsOn(a)),
	))

	inj := newInjector(t, meta, root)

	errs := make(chan error, 2)
	for _, tok := range []modkit.Token{a, b} {
		go func() {
			_, err := inj.Resolve(context.Background(), tok)
			errs <- err
		}()
	}

	for range 2 {
		select {
		case err := <-errs:
			require.Error(t, err)
			assert.True(t, modkit.IsCircular(err))

			var cde modkit.CircularDependencyError
			require.ErrorAs(t, err, &cde)
			require.GreaterOrEqual(t, len(cde.Path), 3)
			assert.Equal(t, cde.Path[len(cde.Path)-1], cde.Path[len(cde.Path)-3])
		case <-time.After(5 * time.Second):
			t.Fatal("resolving a cycle from two goroutines did not return")
		}
	}
}

func TestInjector_ConcurrentResolve(t *testing.T) {
	var calls testutil.Counter
	tok := modkit.NewToken("slow")

	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	meta.Module(root, modkit.Providers(
		modkit.FactoryProvider(tok, func(ctx context.Context, r modkit.Resolver) (any, error) {
			calls.Inc()
			time.Sleep(20 * time.Millisecond)
			return testutil.NewTestService(), nil
		}),
	))

	inj := newInjector(t, meta, root)

	const n = 32
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := inj.Resolve(context.Background(), tok)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Value())
	for _, v := range results {
		assert.Same(t, results[0], v)
	}
}

func TestInjector_InstancesPerRequester(t *testing.T) {
	meta := modkit.NewMetadata()
	shared := modkit.TypeClass[sharedModule]()
	left := modkit.TypeClass[leftModule]()
	right := modkit.TypeClass[rightModule]()

	meta.Module(shared, modkit.Providers(modkit.ClassOf(testutil.NewTestService)))
	meta.Module(left, modkit.Imports(shared))
	meta.Module(right, modkit.Imports(shared))

	reg := modkit.NewModuleRegistry(meta)
	l, err := reg.Injector(left)
	require.NoError(t, err)
	r, err := reg.Injector(right)
	require.NoError(t, err)

	fromLeft := testutil.AssertResolvable[*testutil.TestService](t, l)
	fromRight := testutil.AssertResolvable[*testutil.TestService](t, r)
	testutil.AssertDifferentInstances(t, fromLeft, fromRight)

	again := testutil.AssertResolvable[*testutil.TestService](t, l)
	testutil.AssertSameInstance(t, fromLeft, again)

	sh, ok := reg.Lookup(shared.Type())
	require.True(t, ok, "imported injector is created on demand")
	_, ok = sh.Provider(modkit.TokenOf[*testutil.TestService]())
	assert.True(t, ok)
}

func TestInjector_FirstImportWins(t *testing.T) {
	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	first := modkit.TypeClass[firstModule]()
	second := modkit.TypeClass[secondModule]()
	tok := modkit.NewToken("value")

	meta.Module(first, modkit.Providers(modkit.ValueProvider(tok, "first")))
	meta.Module(second, modkit.Providers(modkit.ValueProvider(tok, "second")))
	meta.Module(root, modkit.Imports(first, second))

	inj := newInjector(t, meta, root)
	assert.Equal(t, "first", testutil.AssertTokenResolvable[string](t, inj, tok))

	t.Run("local provider shadows imports", func(t *testing.T) {
		require.NoError(t, inj.Provide(modkit.ValueProvider(modkit.NewToken("other"), "local")))
		assert.Equal(t, "local", testutil.AssertTokenResolvable[string](t, inj, modkit.NewToken("other")))
	})
}

func TestInjector_ImportCycle(t *testing.T) {
	meta := modkit.NewMetadata()
	loop := modkit.TypeClass[loopModule]()
	back := modkit.TypeClass[backModule]()
	meta.Module(loop, modkit.Imports(back))
	meta.Module(back, modkit.Imports(loop), modkit.Providers(modkit.ValueProvider(modkit.NewToken("x"), 1)))

	inj := newInjector(t, meta, loop)

	assert.Equal(t, 1, testutil.AssertTokenResolvable[int](t, inj, modkit.NewToken("x")))
	testutil.AssertNotFound(t, inj, modkit.NewToken("missing"))
	assert.False(t, inj.Has(modkit.NewToken("missing")))
	assert.True(t, inj.Has(modkit.NewToken("x")))
}

func TestInjector_ProviderFailures(t *testing.T) {
	root := modkit.TypeClass[testutil.RootModule]()

	t.Run("factory error", func(t *testing.T) {
		meta := modkit.NewMetadata()
		tok := modkit.NewToken("broken")
		meta.Module(root, modkit.Providers(modkit.FactoryProvider(tok, func(context.Context, modkit.Resolver) (any, error) {
			return nil, testutil.ErrConstructor
		})))

		_, err := newInjector(t, meta, root).Resolve(context.Background(), tok)
		require.Error(t, err)
		assert.ErrorIs(t, err, testutil.ErrConstructor)

		var pe modkit.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, tok, pe.Token)
	})

	t.Run("failed values are not cached", func(t *testing.T) {
		meta := modkit.NewMetadata()
		tok := modkit.NewToken("flaky")
		var calls testutil.Counter
		meta.Module(root, modkit.Providers(modkit.FactoryProvider(tok, func(context.Context, modkit.Resolver) (any, error) {
			if calls.Inc() == 1 {
				return nil, testutil.ErrTest
			}
			return "ok", nil
		})))

		inj := newInjector(t, meta, root)
		_, err := inj.Resolve(context.Background(), tok)
		require.Error(t, err)

		v, err := inj.Resolve(context.Background(), tok)
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("constructor panic", func(t *testing.T) {
		meta := modkit.NewMetadata()
		cls := modkit.ClassOf(func() *testutil.TestService { panic("boom") })
		meta.Module(root, modkit.Providers(cls))

		_, err := newInjector(t, meta, root).Resolve(context.Background(), cls.Token())
		require.Error(t, err)

		var cpe modkit.ConstructorPanicError
		require.ErrorAs(t, err, &cpe)
		assert.Equal(t, "boom", cpe.Panic)
		assert.Contains(t, err.Error(), "panicked")
	})

	t.Run("dependency count mismatch", func(t *testing.T) {
		meta := modkit.NewMetadata()
		ia := modkit.ClassOf(testutil.NewIA)
		meta.Injectable(ia, modkit.NewToken("only-one"))
		meta.Module(root, modkit.Providers(ia, modkit.ValueProvider(modkit.NewToken("only-one"), "x")))

		_, err := newInjector(t, meta, root).Resolve(context.Background(), ia.Token())
		var ice modkit.InvalidConstructorError
		assert.ErrorAs(t, err, &ice)
	})

	t.Run("dependency type mismatch", func(t *testing.T) {
		meta := modkit.NewMetadata()
		ia := modkit.ClassOf(testutil.NewIA)
		meta.Injectable(ia, modkit.NewToken("a"), modkit.NewToken("b"))
		meta.Module(root, modkit.Providers(
			ia,
			modkit.ValueProvider(modkit.NewToken("a"), "x"),
			modkit.ValueProvider(modkit.NewToken("b"), 7),
		))

		_, err := newInjector(t, meta, root).Resolve(context.Background(), ia.Token())
		var tme modkit.TypeMismatchError
		require.ErrorAs(t, err, &tme)
		assert.Equal(t, modkit.NewToken("b"), tme.Token)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := testutil.NewScenario()
		inj, err := s.Injector()
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = inj.Resolve(ctx, s.IB.Token())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("zero token", func(t *testing.T) {
		s := testutil.NewScenario()
		inj, err := s.Injector()
		require.NoError(t, err)

		_, err = inj.Resolve(context.Background(), modkit.Token{})
		assert.True(t, modkit.IsNotFound(err))
	})
}

func TestInjector_Provide(t *testing.T) {
	s := testutil.NewScenario()
	inj, err := s.Injector()
	require.NoError(t, err)

	err = inj.Provide(modkit.Provider{Factory: func(context.Context, modkit.Resolver) (any, error) { return nil, nil }})
	assert.ErrorIs(t, err, modkit.ErrInvalidArgs)

	err = inj.Provide(modkit.Provider{Provide: modkit.NewToken("x")})
	assert.ErrorIs(t, err, modkit.ErrNilFactory)

	require.NoError(t, inj.Provide(modkit.ValueProvider(modkit.NewToken("x"), 10)))
	p, ok := inj.Provider(modkit.NewToken("x"))
	require.True(t, ok)
	assert.Equal(t, modkit.NewToken("x"), p.Provide)
}

func TestInjector_OnInit(t *testing.T) {
	rec := testutil.NewRecorder()
	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	meta.Module(root, modkit.Providers(
		modkit.ClassOf(func() *testutil.TestDatabase { return testutil.NewTestDatabase("main", rec) }),
	))

	inj := newInjector(t, meta, root)
	db := testutil.AssertResolvable[*testutil.TestDatabase](t, inj)
	assert.True(t, db.Initialized)

	_ = testutil.AssertResolvable[*testutil.TestDatabase](t, inj)
	assert.Equal(t, []string{"init:main"}, rec.Events())
}

type failingInit struct{}

func (failingInit) OnInit(context.Context) error { return testutil.ErrIntentional }

func TestInjector_OnInitFailure(t *testing.T) {
	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	tok := modkit.NewToken("init")
	meta.Module(root, modkit.Providers(modkit.ValueProvider(tok, failingInit{})))

	_, err := newInjector(t, meta, root).Resolve(context.Background(), tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrIntentional)
	assert.True(t, errors.As(err, new(modkit.ProviderError)))
}

func TestResolve_TypeMismatch(t *testing.T) {
	s := testutil.NewScenario()
	inj, err := s.Injector()
	require.NoError(t, err)

	_, err = modkit.Resolve[int](context.Background(), inj, modkit.NewToken("DA"))
	var tme modkit.TypeMismatchError
	require.ErrorAs(t, err, &tme)
	assert.Contains(t, err.Error(), "expected int, got string")
}

type serviceParams struct {
	modkit.In

	Service  *testutil.TestService
	DSN      string                 `inject:"dsn"`
	Database *testutil.TestDatabase `optional:"true"`
}

type paramService struct {
	params serviceParams
}

func newParamService(p serviceParams) *paramService {
	return &paramService{params: p}
}

func TestInjector_ParamObjects(t *testing.T) {
	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	meta.Module(root, modkit.Providers(
		modkit.ClassOf(testutil.NewTestService),
		modkit.ValueProvider(modkit.NewToken("dsn"), "postgres://localhost"),
		modkit.ClassOf(newParamService),
	))

	inj := newInjector(t, meta, root)
	svc := testutil.AssertResolvable[*paramService](t, inj)

	assert.NotNil(t, svc.params.Service)
	assert.Equal(t, "postgres://localhost", svc.params.DSN)
	assert.Nil(t, svc.params.Database)

	t.Run("required field missing", func(t *testing.T) {
		meta := modkit.NewMetadata()
		meta.Module(root, modkit.Providers(modkit.ClassOf(testutil.NewTestService), modkit.ClassOf(newParamService)))

		_, err := newInjector(t, meta, root).Resolve(context.Background(), modkit.TokenOf[*paramService]())
		require.Error(t, err)
		assert.True(t, modkit.IsNotFound(err))
		assert.Contains(t, err.Error(), "field DSN")
	})
}

package modkit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/testutil"
)

func TestFromDig(t *testing.T) {
	var built testutil.Counter
	c := dig.New()
	require.NoError(t, c.Provide(func() *testutil.TestService {
		built.Inc()
		return testutil.NewTestService()
	}))

	meta := modkit.NewMetadata()
	root := modkit.TypeClass[testutil.RootModule]()
	meta.Module(root, modkit.Providers(
		modkit.FromDig[*testutil.TestService](c),
		modkit.DigProvider[*testutil.TestService](c, modkit.NewToken("legacy")),
	))

	inj := newInjector(t, meta, root)

	svc := testutil.AssertResolvable[*testutil.TestService](t, inj)
	legacy := testutil.AssertTokenResolvable[*testutil.TestService](t, inj, modkit.NewToken("legacy"))
	testutil.AssertSameInstance(t, svc, legacy)
	assert.Equal(t, int64(1), built.Value())

	t.Run("missing type", func(t *testing.T) {
		meta := modkit.NewMetadata()
		meta.Module(root, modkit.Providers(modkit.FromDig[*testutil.TestDatabase](dig.New())))

		_, err := newInjector(t, meta, root).Resolve(context.Background(), modkit.TokenOf[*testutil.TestDatabase]())
		var pe modkit.ProviderError
		assert.ErrorAs(t, err, &pe)
	})
}

func TestExportToDig(t *testing.T) {
	s := testutil.NewScenario()
	inj, err := s.Injector()
	require.NoError(t, err)

	c := dig.New()
	require.NoError(t, modkit.ExportToDig[*testutil.IB](context.Background(), c, inj, s.IB.Token()))

	var got *testutil.IB
	require.NoError(t, c.Invoke(func(ib *testutil.IB) { got = ib }))

	want := testutil.AssertResolvable[*testutil.IB](t, inj)
	testutil.AssertSameInstance(t, want, got)
}

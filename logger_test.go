package modkit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/testutil"
)

func observedLogger() (modkit.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return modkit.NewZapLogger(zap.New(core)), logs
}

func TestZapLogger(t *testing.T) {
	t.Run("levels and fields", func(t *testing.T) {
		logger, logs := observedLogger()

		logger.Debug("d", "k", 1)
		logger.Info("i")
		logger.Warn("w")
		logger.Error("e")

		entries := logs.AllUntimed()
		require.Len(t, entries, 4)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, int64(1), entries[0].ContextMap()["k"])
		assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	})

	t.Run("nil logger", func(t *testing.T) {
		assert.NotPanics(t, func() {
			modkit.NewZapLogger(nil).Info("discarded")
			modkit.NopLogger().Error("discarded")
		})
	})

	t.Run("compile and link events", func(t *testing.T) {
		logger, logs := observedLogger()
		meta, root := testutil.NewTool()

		app, err := modkit.Compile(context.Background(), meta, root, modkit.WithLogger(logger))
		require.NoError(t, err)
		_, err = modkit.LinkCommands(app, modkit.WithLogger(logger))
		require.NoError(t, err)

		assert.NotZero(t, logs.FilterMessage("injector created").Len())
		assert.Equal(t, 1, logs.FilterMessage("module compiled").Len())
		assert.Equal(t, 2, logs.FilterMessage("command linked").Len())
	})

	t.Run("provider override warning", func(t *testing.T) {
		logger, logs := observedLogger()
		meta := modkit.NewMetadata()
		mod := modkit.TypeClass[firstModule]()
		tok := modkit.NewToken("dup")
		meta.Module(mod, modkit.Providers(
			modkit.ValueProvider(tok, "a"),
			modkit.ValueProvider(tok, "b"),
		))

		inj, err := modkit.NewInjector(modkit.NewModuleRegistry(meta, modkit.WithLogger(logger)), mod)
		require.NoError(t, err)

		v, err := inj.Resolve(context.Background(), tok)
		require.NoError(t, err)
		assert.Equal(t, "b", v)
		assert.Equal(t, 1, logs.FilterMessage("provider overridden").FilterLevelExact(zapcore.WarnLevel).Len())
	})
}

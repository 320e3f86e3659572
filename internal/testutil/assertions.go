package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/modkit"
)

// AssertResolvable checks that T resolves through r and returns it.
func AssertResolvable[T any](t *testing.T, r modkit.Resolver) T {
	t.Helper()
	v, err := modkit.ResolveType[T](context.Background(), r)
	require.NoError(t, err, "failed to resolve %T", *new(T))
	return v
}

// AssertTokenResolvable checks that token resolves through r to a T.
func AssertTokenResolvable[T any](t *testing.T, r modkit.Resolver, token modkit.Token) T {
	t.Helper()
	v, err := modkit.Resolve[T](context.Background(), r, token)
	require.NoError(t, err, "failed to resolve %s", token)
	return v
}

// AssertNotFound checks that token fails to resolve with a not-found error
// naming it.
func AssertNotFound(t *testing.T, r modkit.Resolver, token modkit.Token) {
	t.Helper()
	_, err := r.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.True(t, modkit.IsNotFound(err), "expected not found error, got: %v", err)
	assert.Contains(t, err.Error(), token.String())
}

// AssertPanicsWithError checks if a function panics with specific error
func AssertPanicsWithError(t *testing.T, expectedError error, f func(), msgAndArgs ...any) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			assert.Fail(t, "function did not panic", msgAndArgs...)
			return
		}

		err, ok := r.(error)
		if !ok {
			assert.Fail(t, "panic value is not an error: %v", r)
			return
		}

		assert.ErrorIs(t, err, expectedError, msgAndArgs...)
	}()
	f()
}

// AssertSameInstance verifies two values are the same instance
func AssertSameInstance(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	assert.Same(t, expected, actual, msgAndArgs...)
}

// AssertDifferentInstances verifies two values are different instances
func AssertDifferentInstances(t *testing.T, first, second any, msgAndArgs ...any) {
	t.Helper()
	assert.NotSame(t, first, second, msgAndArgs...)
}

// MustCompile compiles root or fails the test.
func MustCompile(t *testing.T, meta *modkit.Metadata, root modkit.Class) *modkit.CompiledModule {
	t.Helper()
	app, err := modkit.Compile(context.Background(), meta, root)
	require.NoError(t, err)
	return app
}

// FindMethod returns the compiled method name of the first controller that
// declares it, searching root and its imports.
func FindMethod(t *testing.T, root *modkit.CompiledModule, name string) *modkit.CompiledMethod {
	t.Helper()

	var found *modkit.CompiledMethod
	root.Walk(func(m *modkit.CompiledModule) bool {
		for _, c := range m.Controllers {
			for _, cm := range c.Methods {
				if cm.Meta.Name == name {
					found = cm
					return false
				}
			}
		}
		return true
	})

	require.NotNil(t, found, "method %s not found", name)
	return found
}

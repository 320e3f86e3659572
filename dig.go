package modkit

import (
	"context"

	"go.uber.org/dig"
)

// DigProvider provides token with the T held by a dig container. The value
// is looked up when the token is first resolved.
//
//	c := dig.New()
//	_ = c.Provide(NewDatabase)
//	meta.Module(AppModule, modkit.Providers(modkit.DigProvider[*Database](c, modkit.TokenOf[*Database]())))
func DigProvider[T any](c *dig.Container, token Token) Provider {
	return FactoryProvider(token, func(context.Context, Resolver) (any, error) {
		var out T
		if err := c.Invoke(func(v T) { out = v }); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// FromDig provides the type token of T from a dig container.
func FromDig[T any](c *dig.Container) Provider {
	return DigProvider[T](c, TokenOf[T]())
}

// ExportToDig makes token, resolved through r, available to a dig container
// as a T.
func ExportToDig[T any](ctx context.Context, c *dig.Container, r Resolver, token Token) error {
	return c.Provide(func() (T, error) {
		return Resolve[T](ctx, r, token)
	})
}

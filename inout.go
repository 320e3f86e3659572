package modkit

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/junioryono/modkit/internal/reflection"
)

// In marks a parameter object. When a constructor without declared Deps
// accepts a struct embedding In, every exported field of that struct is
// resolved and the struct is passed as the argument.
//
// Field tags:
//   - `inject:"name"` resolves the string token name instead of the field type
//   - `optional:"true"` leaves the field zero when no provider exists
//
// Example:
//
//	type ServiceParams struct {
//	    modkit.In
//
//	    Store  *UserStore
//	    DSN    string `inject:"database.dsn"`
//	    Audit  *AuditLog `optional:"true"`
//	}
//
//	func NewService(p ServiceParams) *Service {
//	    return &Service{store: p.Store, dsn: p.DSN, audit: p.Audit}
//	}
//
// The In struct must be embedded anonymously:
//
//	type ServiceParams struct {
//	    modkit.In  // ✓ Correct - anonymous embedding
//	    // ...
//	}
//
//	type ServiceParams struct {
//	    In modkit.In  // ✗ Wrong - named field
//	    // ...
//	}
type In struct{}

var inType = reflect.TypeOf(In{})

// isParamObject reports whether t is a struct embedding In.
func isParamObject(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == inType {
			return true
		}
	}
	return false
}

type paramField struct {
	index int
	token Token
}

// paramObjectFields returns the injectable fields of t in declaration order.
func paramObjectFields(t reflect.Type) []paramField {
	var fields []paramField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == inType {
			continue
		}
		if !f.IsExported() {
			continue
		}

		tok := TokenFor(f.Type)
		if name := f.Tag.Get("inject"); name != "" {
			tok = NewToken(name)
		}
		fields = append(fields, paramField{index: i, token: tok})
	}
	return fields
}

// buildParamObject resolves the fields of the parameter object type t.
func buildParamObject(ctx context.Context, r Resolver, t reflect.Type) (reflect.Value, error) {
	obj := reflect.New(t).Elem()

	for _, pf := range paramObjectFields(t) {
		f := t.Field(pf.index)
		tok := pf.token

		v, err := r.Resolve(ctx, tok)
		if err != nil {
			var nf NotFoundError
			if f.Tag.Get("optional") == "true" && errors.As(err, &nf) && nf.Token == tok {
				continue
			}
			return reflect.Value{}, fmt.Errorf("field %s of %s: %w", f.Name, t, err)
		}

		fv, err := reflection.Convert(v, f.Type)
		if err != nil {
			return reflect.Value{}, TypeMismatchError{Token: tok, Expected: f.Type, Actual: reflect.TypeOf(v)}
		}
		obj.Field(pf.index).Set(fv)
	}

	return obj, nil
}

package modkit

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// TokenKind tags the variant of a Token.
type TokenKind uint8

const (
	// StringToken tokens are equal when their names are equal.
	StringToken TokenKind = iota + 1

	// SymbolToken tokens are unique per NewSymbol call.
	SymbolToken

	// TypeToken tokens identify a Go type, typically a class.
	TypeToken
)

func (k TokenKind) String() string {
	switch k {
	case StringToken:
		return "string"
	case SymbolToken:
		return "symbol"
	case TypeToken:
		return "type"
	default:
		return "invalid"
	}
}

// Token identifies a requestable dependency. Tokens are comparable and can be
// used as map keys.
type Token struct {
	kind TokenKind
	name string
	id   string
	typ  reflect.Type
}

// NewToken creates a string token. Two string tokens with the same name are
// the same token.
func NewToken(name string) Token {
	return Token{kind: StringToken, name: name}
}

// NewSymbol creates a token that is unique for each call, even when the
// descriptions match.
func NewSymbol(description string) Token {
	return Token{kind: SymbolToken, name: description, id: uuid.NewString()}
}

// TokenFor returns the type token for t.
func TokenFor(t reflect.Type) Token {
	return Token{kind: TypeToken, typ: t}
}

// TokenOf returns the type token for T.
//
//	tok := modkit.TokenOf[*UserService]()
func TokenOf[T any]() Token {
	return TokenFor(reflect.TypeOf((*T)(nil)).Elem())
}

// Kind returns the token variant.
func (t Token) Kind() TokenKind { return t.kind }

// Name returns the name of a string token or the description of a symbol.
func (t Token) Name() string { return t.name }

// Type returns the type of a type token, or nil.
func (t Token) Type() reflect.Type { return t.typ }

// IsZero reports whether t is the zero Token.
func (t Token) IsZero() bool { return t.kind == 0 }

func (t Token) String() string {
	switch t.kind {
	case StringToken:
		return fmt.Sprintf("%q", t.name)
	case SymbolToken:
		return fmt.Sprintf("Symbol(%s)", t.name)
	case TypeToken:
		return formatType(t.typ)
	default:
		return "<invalid token>"
	}
}

// key returns a string that is unique per token, for use with string-keyed
// structures.
func (t Token) key() string {
	switch t.kind {
	case StringToken:
		return "s:" + t.name
	case SymbolToken:
		return "y:" + t.id
	case TypeToken:
		return "t:" + typeKey(t.typ)
	default:
		return ""
	}
}

func typeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeKey(t.Elem())
	case reflect.Slice:
		return "[]" + typeKey(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

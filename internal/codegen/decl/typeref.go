package decl

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
)

var (
	ErrInvalidTypeRef     = errors.New("invalid type reference")
	ErrInvalidDeclaration = errors.New("invalid declaration")
)

// Wrapper is the generic wrapper a parameter type is spelled with.
type Wrapper uint8

const (
	NoWrapper Wrapper = iota
	RefRO
	RefRW
	EnabledRefRO
	EnabledRefRW
	DynamicBuffer
)

var wrapperNames = map[string]Wrapper{
	"RefRO":         RefRO,
	"RefRW":         RefRW,
	"EnabledRefRO":  EnabledRefRO,
	"EnabledRefRW":  EnabledRefRW,
	"DynamicBuffer": DynamicBuffer,
}

func (w Wrapper) String() string {
	for name, v := range wrapperNames {
		if v == w {
			return name
		}
	}
	return ""
}

// TypeRef is a parsed parameter type: a type name optionally wrapped once.
type TypeRef struct {
	Wrapper Wrapper
	Elem    string
}

// ParseTypeRef parses "Name" or "Wrapper[Name]".
func ParseTypeRef(s string) (TypeRef, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if !token.IsIdentifier(s) {
			return TypeRef{}, fmt.Errorf("%w: %q", ErrInvalidTypeRef, s)
		}
		return TypeRef{Elem: s}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return TypeRef{}, fmt.Errorf("%w: %q: unbalanced brackets", ErrInvalidTypeRef, s)
	}
	w, ok := wrapperNames[s[:open]]
	if !ok {
		return TypeRef{}, fmt.Errorf("%w: %q: unknown wrapper %q", ErrInvalidTypeRef, s, s[:open])
	}
	elem := strings.TrimSpace(s[open+1 : len(s)-1])
	if !token.IsIdentifier(elem) {
		return TypeRef{}, fmt.Errorf("%w: %q: element must be a type name", ErrInvalidTypeRef, s)
	}
	return TypeRef{Wrapper: w, Elem: elem}, nil
}

func (r TypeRef) String() string {
	if r.Wrapper == NoWrapper {
		return r.Elem
	}
	return r.Wrapper.String() + "[" + r.Elem + "]"
}

// RefKind is how a parameter is passed.
type RefKind uint8

const (
	ByValue RefKind = iota
	In
	Ref
)

func (k RefKind) String() string {
	switch k {
	case In:
		return "in"
	case Ref:
		return "ref"
	default:
		return ""
	}
}

func (k *RefKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "value", "none":
		*k = ByValue
	case "in":
		*k = In
	case "ref":
		*k = Ref
	default:
		return fmt.Errorf("%w: unknown ref kind %q", ErrInvalidDeclaration, text)
	}
	return nil
}

func (k RefKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// IndexRole is the positional index an int parameter receives.
type IndexRole uint8

const (
	NoIndex IndexRole = iota
	EntityIndexInQuery
	EntityIndexInChunk
	ChunkIndexInQuery
)

func (r IndexRole) String() string {
	switch r {
	case EntityIndexInQuery:
		return "EntityIndexInQuery"
	case EntityIndexInChunk:
		return "EntityIndexInChunk"
	case ChunkIndexInQuery:
		return "ChunkIndexInQuery"
	default:
		return ""
	}
}

func (r *IndexRole) UnmarshalText(text []byte) error {
	for _, role := range []IndexRole{NoIndex, EntityIndexInQuery, EntityIndexInChunk, ChunkIndexInQuery} {
		if role.String() == string(text) {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("%w: unknown index role %q", ErrInvalidDeclaration, text)
}

func (r IndexRole) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

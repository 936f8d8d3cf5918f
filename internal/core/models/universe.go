// Package models describes the types declarations are generated against: their
// storage kind, accessibility and the generated names derived from them.
package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Accessibility orders visibility levels from least to most accessible. The zero
// value is an unspecified level, treated as Public.
type Accessibility uint8

const (
	Private Accessibility = iota + 1
	Internal
	Public
)

// Level returns a with the unspecified level resolved to Public.
func (a Accessibility) Level() Accessibility {
	if a == 0 {
		return Public
	}
	return a
}

func (a Accessibility) String() string {
	switch a.Level() {
	case Private:
		return "private"
	case Internal:
		return "internal"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("Accessibility(%d)", uint8(a))
	}
}

func ParseAccessibility(s string) (Accessibility, error) {
	switch strings.ToLower(s) {
	case "private":
		return Private, nil
	case "internal":
		return Internal, nil
	case "", "public":
		return Public, nil
	default:
		return Public, fmt.Errorf("unknown accessibility %q", s)
	}
}

func (a *Accessibility) UnmarshalText(text []byte) error {
	v, err := ParseAccessibility(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Accessibility) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Kind is the storage category of a type.
type Kind uint8

const (
	KindComponent Kind = iota
	KindTag
	KindBufferElement
	KindShared
	KindManaged
	KindAspect
	KindEntity
	KindInt
)

var kindNames = [...]string{
	KindComponent:     "component",
	KindTag:           "tag",
	KindBufferElement: "buffer",
	KindShared:        "shared",
	KindManaged:       "managed",
	KindAspect:        "aspect",
	KindEntity:        "entity",
	KindInt:           "int",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return KindComponent, fmt.Errorf("unknown type kind %q", s)
}

func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// IsComponent reports whether values of the kind live in chunk storage.
func (k Kind) IsComponent() bool {
	switch k {
	case KindComponent, KindTag, KindBufferElement, KindShared, KindManaged:
		return true
	default:
		return false
	}
}

// Container is one enclosing type of a nested type, innermost first.
type Container struct {
	Name   string        `yaml:"name"`
	Access Accessibility `yaml:"access"`
}

// Requirement is one component an aspect reads or writes.
type Requirement struct {
	Type     string `yaml:"type"`
	ReadOnly bool   `yaml:"read_only"`
}

// TypeInfo describes one type known to the generator.
type TypeInfo struct {
	Name string `yaml:"name"`
	// GoType is the Go spelling of the type, qualified by an import alias when
	// declared in another package.
	GoType     string        `yaml:"go"`
	Kind       Kind          `yaml:"kind"`
	Enableable bool          `yaml:"enableable"`
	Access     Accessibility `yaml:"access"`
	Containers []Container   `yaml:"containers"`
	// Requires lists the components of an aspect.
	Requires []Requirement `yaml:"requires"`
}

// EffectiveAccess is the least accessible level along the containing-type chain.
func (t TypeInfo) EffectiveAccess() Accessibility {
	return EffectiveAccess(t.Access, t.Containers)
}

// EffectiveAccess is the least accessible level of access and its containers.
func EffectiveAccess(access Accessibility, containers []Container) Accessibility {
	least := access.Level()
	for _, c := range containers {
		least = min(least, c.Access.Level())
	}
	return least
}

// Qualifier returns the import alias of GoType, or "".
func (t TypeInfo) Qualifier() string {
	if i := strings.LastIndexByte(t.GoType, '.'); i >= 0 {
		return t.GoType[:i]
	}
	return ""
}

// Ident returns GoType without its qualifier.
func (t TypeInfo) Ident() string {
	return t.GoType[strings.LastIndexByte(t.GoType, '.')+1:]
}

// Qualified derives a name from the identifier of GoType, keeping its qualifier:
// Qualified("New", "TypeHandle") of aspects.Transform is aspects.NewTransformTypeHandle.
func (t TypeInfo) Qualified(prefix, suffix string) string {
	name := prefix + t.Ident() + suffix
	if q := t.Qualifier(); q != "" {
		return q + "." + name
	}
	return name
}

// Builtin type names.
const (
	EntityType = "Entity"
	IntType    = "int"
)

// Universe indexes the types of one declaration file by name.
type Universe struct {
	types map[string]TypeInfo
}

// NewUniverse returns a universe holding types and the builtin Entity and int types.
// Later duplicates replace earlier ones.
func NewUniverse(types ...TypeInfo) *Universe {
	u := &Universe{types: make(map[string]TypeInfo, len(types)+2)}
	u.types[EntityType] = TypeInfo{Name: EntityType, GoType: "ecs.Entity", Kind: KindEntity, Access: Public}
	u.types[IntType] = TypeInfo{Name: IntType, GoType: "int", Kind: KindInt, Access: Public}
	for _, t := range types {
		if t.GoType == "" {
			t.GoType = t.Name
		}
		u.types[t.Name] = t
	}
	return u
}

func (u *Universe) Lookup(name string) (TypeInfo, bool) {
	t, ok := u.types[name]
	return t, ok
}

func (u *Universe) Len() int { return len(u.types) }

// Names returns the type names in sorted order.
func (u *Universe) Names() []string {
	names := make([]string, 0, len(u.types))
	for name := range u.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hash is a content hash of every type, stable across runs.
func (u *Universe) Hash() uint64 {
	d := xxhash.New()
	for _, name := range u.Names() {
		t := u.types[name]
		_, _ = fmt.Fprintf(d, "%s|%s|%s|%t|%s|%v|%v\n", t.Name, t.GoType, t.Kind, t.Enableable, t.Access, t.Containers, t.Requires)
	}
	return d.Sum64()
}

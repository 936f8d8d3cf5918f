package ecs

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// TypeKind is the storage category of a registered type.
type TypeKind uint8

const (
	KindComponent TypeKind = iota
	KindTag
	KindBufferElement
	KindShared
	KindManaged
)

func (k TypeKind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindTag:
		return "tag"
	case KindBufferElement:
		return "buffer"
	case KindShared:
		return "shared"
	case KindManaged:
		return "managed"
	default:
		return fmt.Sprintf("TypeKind(%d)", uint8(k))
	}
}

// TypeInfo describes a registered component type.
type TypeInfo struct {
	ID         ComponentID
	Name       string
	Kind       TypeKind
	Enableable bool
	// Hash is stable across processes for the same fully qualified type name.
	Hash uint64
	Type reflect.Type
}

type TypeOption func(*TypeInfo)

// Enableable marks a component type as carrying a per-entity enabled bit.
func Enableable() TypeOption {
	return func(info *TypeInfo) { info.Enableable = true }
}

// TypeRegistry assigns component ids. Ids are never reused; every registration
// advances the generation that handles revalidate against.
type TypeRegistry struct {
	mu         sync.RWMutex
	byType     map[reflect.Type]ComponentID
	byHash     map[uint64]ComponentID
	infos      []TypeInfo
	generation atomic.Uint32
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byType: make(map[reflect.Type]ComponentID),
		byHash: make(map[uint64]ComponentID),
	}
}

// Register registers T with the given kind and returns its id. Registering the same
// type again returns the existing id and ignores kind and options.
func Register[T any](r *TypeRegistry, kind TypeKind, opts ...TypeOption) ComponentID {
	return r.RegisterType(reflect.TypeFor[T](), kind, opts...)
}

// RegisterType is the non-generic form of Register. Zero-sized components are
// registered as tags.
func (r *TypeRegistry) RegisterType(t reflect.Type, kind TypeKind, opts ...TypeOption) ComponentID {
	r.mu.RLock()
	id, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok = r.byType[t]; ok {
		return id
	}

	if kind == KindComponent && t.Size() == 0 {
		kind = KindTag
	}
	info := TypeInfo{
		ID:   ComponentID(len(r.infos)),
		Name: qualifiedName(t),
		Kind: kind,
		Hash: StableTypeHash(t),
		Type: t,
	}
	for _, opt := range opts {
		opt(&info)
	}

	r.infos = append(r.infos, info)
	r.byType[t] = info.ID
	r.byHash[info.Hash] = info.ID
	r.generation.Add(1)
	return info.ID
}

// Lookup returns the id of a registered type.
func (r *TypeRegistry) Lookup(t reflect.Type) (ComponentID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[t]
	return id, ok
}

// LookupHash returns the id registered for a stable type hash.
func (r *TypeRegistry) LookupHash(hash uint64) (ComponentID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHash[hash]
	return id, ok
}

// LookupType returns the id of T if it is registered.
func LookupType[T any](r *TypeRegistry) (ComponentID, bool) {
	return r.Lookup(reflect.TypeFor[T]())
}

func (r *TypeRegistry) Info(id ComponentID) (TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.infos) {
		return TypeInfo{}, false
	}
	return r.infos[id], true
}

// Name returns the qualified name of a registered type, or a placeholder.
func (r *TypeRegistry) Name(id ComponentID) string {
	if info, ok := r.Info(id); ok {
		return info.Name
	}
	return fmt.Sprintf("<unregistered #%d>", id)
}

func (r *TypeRegistry) Generation() uint32 { return r.generation.Load() }

func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}

// StableTypeHash hashes the fully qualified name of t.
func StableTypeHash(t reflect.Type) uint64 {
	return xxhash.Sum64String(qualifiedName(t))
}

func qualifiedName(t reflect.Type) string {
	if t.PkgPath() != "" && t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// TypeOf returns the component type of T with the given access mode, registering T
// with kind and opts on first use.
func TypeOf[T any](state *SystemState, kind TypeKind, mode AccessMode, opts ...TypeOption) ComponentType {
	return ComponentType{ID: state.Types.RegisterType(reflect.TypeFor[T](), kind, opts...), Mode: mode}
}

package ecs

import (
	"fmt"
	"reflect"
)

// ChunkResolvable resolves per-chunk storage once per chunk.
type ChunkResolvable[R any] interface {
	ResolveChunk(c Chunk) R
}

// EntityAccessible extracts one entity's value from a resolved chunk view.
type EntityAccessible[R, V any] interface {
	GetAt(resolved R, index int) V
}

// Accessor is the two-level resolve protocol every handle kind implements.
type Accessor[R, V any] interface {
	ChunkResolvable[R]
	EntityAccessible[R, V]
}

var (
	_ Accessor[[]struct{}, *struct{}]                   = (*ComponentTypeHandle[struct{}])(nil)
	_ Accessor[BufferAccessor[int], DynamicBuffer[int]] = (*BufferTypeHandle[int])(nil)
	_ Accessor[int, int]                                = (*SharedComponentTypeHandle[int])(nil)
	_ Accessor[[]Entity, Entity]                        = (*EntityTypeHandle)(nil)
	_ Accessor[*EnabledMask, EnabledRefRW[struct{}]]    = EnabledAccessor[struct{}]{}
	_ EntityAccessible[[]struct{}, RefRW[struct{}]]     = RefAccessor[struct{}]{}
	_ EntityAccessible[[]struct{}, RefRO[struct{}]]     = RefROAccessor[struct{}]{}
	_ EntityAccessible[[]struct{}, struct{}]            = ValueAccessor[struct{}]{}
)

// handleBase carries the generation-sensitive id of one component type.
type handleBase struct {
	typ                 reflect.Type
	kind                TypeKind
	id                  ComponentID
	mode                AccessMode
	globalSystemVersion uint32
	generation          uint32
}

func newHandleBase(s *SystemState, t reflect.Type, kind TypeKind, readOnly bool) handleBase {
	h := handleBase{typ: t, kind: kind, mode: modeOf(readOnly)}
	h.id = s.Types.RegisterType(t, kind)
	h.generation = s.Types.Generation()
	h.globalSystemVersion = s.GlobalSystemVersion()
	return h
}

// update revalidates the id against the registry and captures the current system
// version. Calling it twice without intervening structural change is a no-op.
func (h *handleBase) update(s *SystemState) {
	if gen := s.Types.Generation(); gen != h.generation {
		if id, ok := s.Types.Lookup(h.typ); ok {
			h.id = id
		} else {
			h.id = s.Types.RegisterType(h.typ, h.kind)
		}
		h.generation = s.Types.Generation()
	}
	h.globalSystemVersion = s.GlobalSystemVersion()
}

func (h *handleBase) ID() ComponentID { return h.id }

func (h *handleBase) Type() ComponentType { return ComponentType{ID: h.id, Mode: h.mode} }

func (h *handleBase) IsReadOnly() bool { return h.mode == ReadOnly }

func (h *handleBase) GlobalSystemVersion() uint32 { return h.globalSystemVersion }

func (h *handleBase) markChanged(c Chunk) {
	if h.mode == ReadWrite {
		c.MarkChanged(h.id, h.globalSystemVersion)
	}
}

// ComponentTypeHandle resolves the column of a plain or enableable component.
type ComponentTypeHandle[T any] struct {
	handleBase
}

func GetComponentTypeHandle[T any](s *SystemState, readOnly bool) ComponentTypeHandle[T] {
	return ComponentTypeHandle[T]{newHandleBase(s, reflect.TypeFor[T](), KindComponent, readOnly)}
}

func (h *ComponentTypeHandle[T]) Update(s *SystemState) { h.update(s) }

// ResolveChunk returns the column of T in c, nil when c does not store T.
// Resolving with a read-write handle bumps the change version of the column.
func (h *ComponentTypeHandle[T]) ResolveChunk(c Chunk) []T {
	col := c.Column(h.id)
	if col == nil {
		return nil
	}
	data, ok := col.([]T)
	if !ok {
		panic(fmt.Sprintf("ecs: column %d holds %T, want %T", h.id, col, data))
	}
	h.markChanged(c)
	return data
}

func (h *ComponentTypeHandle[T]) GetAt(col []T, index int) *T { return PtrAt(col, index) }

// ResolveEnabledMask returns the enabled bits of T in c.
func (h *ComponentTypeHandle[T]) ResolveEnabledMask(c Chunk) *EnabledMask {
	if h.mode == ReadWrite {
		c.MarkChanged(h.id, h.globalSystemVersion)
	}
	return c.EnabledMask(h.id)
}

// Enabled returns the accessor resolving the enabled bits of T.
func (h *ComponentTypeHandle[T]) Enabled() EnabledAccessor[T] {
	return EnabledAccessor[T]{handle: h}
}

// Refs returns the accessor wrapping elements of T into RefRW.
func (h *ComponentTypeHandle[T]) Refs() RefAccessor[T] { return RefAccessor[T]{} }

// RefsRO returns the accessor wrapping elements of T into RefRO.
func (h *ComponentTypeHandle[T]) RefsRO() RefROAccessor[T] { return RefROAccessor[T]{} }

// Values returns the accessor copying elements of T out of the column.
func (h *ComponentTypeHandle[T]) Values() ValueAccessor[T] { return ValueAccessor[T]{} }

// EnabledAccessor resolves an enabled mask per chunk and yields enabled refs.
type EnabledAccessor[T any] struct {
	handle *ComponentTypeHandle[T]
}

func (a EnabledAccessor[T]) ResolveChunk(c Chunk) *EnabledMask {
	return a.handle.ResolveEnabledMask(c)
}

func (a EnabledAccessor[T]) GetAt(mask *EnabledMask, index int) EnabledRefRW[T] {
	return EnabledRefRW[T]{EnabledRefRO[T]{mask: mask, index: index}}
}

// RefAccessor wraps column elements into RefRW.
type RefAccessor[T any] struct{}

func (RefAccessor[T]) GetAt(col []T, index int) RefRW[T] { return NewRefRW(col, index) }

// RefROAccessor wraps column elements into RefRO.
type RefROAccessor[T any] struct{}

func (RefROAccessor[T]) GetAt(col []T, index int) RefRO[T] { return NewRefRO(col, index) }

// ValueAccessor copies column elements, yielding the zero value past the column.
type ValueAccessor[T any] struct{}

func (ValueAccessor[T]) GetAt(col []T, index int) T { return ValueAt(col, index) }

// BufferTypeHandle resolves the per-entity dynamic buffers of an element type.
type BufferTypeHandle[T any] struct {
	handleBase
}

func GetBufferTypeHandle[T any](s *SystemState, readOnly bool) BufferTypeHandle[T] {
	return BufferTypeHandle[T]{newHandleBase(s, reflect.TypeFor[T](), KindBufferElement, readOnly)}
}

func (h *BufferTypeHandle[T]) Update(s *SystemState) { h.update(s) }

func (h *BufferTypeHandle[T]) ResolveChunk(c Chunk) BufferAccessor[T] {
	col := c.Column(h.id)
	if col == nil {
		return BufferAccessor[T]{readOnly: h.IsReadOnly()}
	}
	data, ok := col.([][]T)
	if !ok {
		panic(fmt.Sprintf("ecs: buffer column %d holds %T, want %T", h.id, col, data))
	}
	h.markChanged(c)
	return BufferAccessor[T]{buffers: data, readOnly: h.IsReadOnly()}
}

func (h *BufferTypeHandle[T]) GetAt(acc BufferAccessor[T], index int) DynamicBuffer[T] {
	return acc.At(index)
}

// SharedComponentTypeHandle resolves a chunk-granular shared value. Shared
// components are always read-only.
type SharedComponentTypeHandle[T comparable] struct {
	handleBase
}

func GetSharedComponentTypeHandle[T comparable](s *SystemState) SharedComponentTypeHandle[T] {
	return SharedComponentTypeHandle[T]{newHandleBase(s, reflect.TypeFor[T](), KindShared, true)}
}

func (h *SharedComponentTypeHandle[T]) Update(s *SystemState) { h.update(s) }

func (h *SharedComponentTypeHandle[T]) ResolveChunk(c Chunk) T {
	v, _ := c.SharedValue(h.id).(T)
	return v
}

func (h *SharedComponentTypeHandle[T]) GetAt(v T, _ int) T { return v }

// EntityTypeHandle resolves the entity column of a chunk.
type EntityTypeHandle struct {
	globalSystemVersion uint32
}

func GetEntityTypeHandle(s *SystemState) EntityTypeHandle {
	return EntityTypeHandle{globalSystemVersion: s.GlobalSystemVersion()}
}

func (h *EntityTypeHandle) Update(s *SystemState) { h.globalSystemVersion = s.GlobalSystemVersion() }

func (h *EntityTypeHandle) ResolveChunk(c Chunk) []Entity { return c.Entities() }

func (h *EntityTypeHandle) GetAt(entities []Entity, index int) Entity { return entities[index] }

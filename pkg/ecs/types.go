// Package ecs is the runtime that ecsgen-generated code targets.
//
// It defines the contracts of the chunk storage engine, the query object and the
// dependency tracker as interfaces, and provides the typed handles, enabled-bit masks,
// the generic two-level enumerator and the job scheduling primitives the generated
// trampolines dispatch to.
package ecs

// ComponentID indexes a component type inside a TypeRegistry.
type ComponentID uint32

// AccessMode is the access a handle or a query requests for a component type.
type AccessMode uint8

const (
	ReadWrite AccessMode = iota
	ReadOnly
)

func (m AccessMode) String() string {
	if m == ReadOnly {
		return "ReadOnly"
	}
	return "ReadWrite"
}

func modeOf(readOnly bool) AccessMode {
	if readOnly {
		return ReadOnly
	}
	return ReadWrite
}

// ComponentType pairs a component id with an access mode.
type ComponentType struct {
	ID   ComponentID
	Mode AccessMode
}

func (t ComponentType) IsReadOnly() bool { return t.Mode == ReadOnly }

// Entity identifies one entity. Version distinguishes reuses of the same index.
type Entity struct {
	Index   int32
	Version int32
}

// ChunkCapacity is the maximum number of entities stored in one chunk.
// Enabled masks are sized for it.
const ChunkCapacity = 128

// Chunk is one fixed-capacity block of entities sharing an archetype.
//
// Typed storage is returned as any because interface methods cannot be generic:
// handles type-assert the result once per chunk, never per entity.
type Chunk interface {
	// Len returns the number of entities stored in the chunk.
	Len() int
	// Has reports whether the archetype of the chunk contains the component.
	Has(id ComponentID) bool
	// Column returns the []T backing a component, or [][]T for a buffer element type.
	// It returns nil when the chunk does not store the component.
	Column(id ComponentID) any
	// EnabledMask returns the enabled bits of an enableable component, nil otherwise.
	EnabledMask(id ComponentID) *EnabledMask
	// SharedValue returns the chunk-granular value of a shared component.
	SharedValue(id ComponentID) any
	// Entities returns the entities stored in the chunk.
	Entities() []Entity
	// MarkChanged records a write to the component at the given system version.
	MarkChanged(id ComponentID, version uint32)
	// ChangeVersion returns the version of the last write to the component.
	ChangeVersion(id ComponentID) uint32
}

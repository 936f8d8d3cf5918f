package ecs

// RefRO is a read-only reference to one component value inside a chunk column.
type RefRO[T any] struct {
	ptr *T
}

func NewRefRO[T any](col []T, index int) RefRO[T] {
	return RefRO[T]{ptr: PtrAt(col, index)}
}

func (r RefRO[T]) IsValid() bool { return r.ptr != nil }

// ValueRO returns a copy of the referenced value, or the zero value when r is invalid.
func (r RefRO[T]) ValueRO() T {
	if r.ptr == nil {
		var zero T
		return zero
	}
	return *r.ptr
}

// RefRW is a read-write reference to one component value inside a chunk column.
type RefRW[T any] struct {
	RefRO[T]
}

func NewRefRW[T any](col []T, index int) RefRW[T] {
	return RefRW[T]{NewRefRO(col, index)}
}

// ValueRW returns the pointer into the chunk column.
func (r RefRW[T]) ValueRW() *T { return r.ptr }

// ReadOnly narrows r to a read-only reference.
func (r RefRW[T]) ReadOnly() RefRO[T] { return r.RefRO }

// EnabledRefRO reads the enabled bit of one entity's component.
type EnabledRefRO[T any] struct {
	mask  *EnabledMask
	index int
}

func NewEnabledRefRO[T any](mask *EnabledMask, index int) EnabledRefRO[T] {
	return EnabledRefRO[T]{mask: mask, index: index}
}

func (r EnabledRefRO[T]) IsValid() bool { return r.mask != nil }

// IsEnabled reports the bit. An invalid ref reports false.
func (r EnabledRefRO[T]) IsEnabled() bool {
	return r.mask != nil && r.mask.Get(r.index)
}

// EnabledRefRW reads and writes the enabled bit of one entity's component.
type EnabledRefRW[T any] struct {
	EnabledRefRO[T]
}

func NewEnabledRefRW[T any](mask *EnabledMask, index int) EnabledRefRW[T] {
	return EnabledRefRW[T]{NewEnabledRefRO[T](mask, index)}
}

// SetEnabled writes the bit. It is a no-op on an invalid ref.
func (r EnabledRefRW[T]) SetEnabled(enabled bool) {
	if r.mask != nil {
		r.mask.Set(r.index, enabled)
	}
}

func (r EnabledRefRW[T]) ReadOnly() EnabledRefRO[T] { return r.EnabledRefRO }

// ValueAt returns col[index], or the zero value when the column is not present in
// the chunk. Optional memberships (Any, None) resolve to nil columns.
func ValueAt[T any](col []T, index int) T {
	if index < 0 || index >= len(col) {
		var zero T
		return zero
	}
	return col[index]
}

// PtrAt returns &col[index], or nil when the column is not present in the chunk.
func PtrAt[T any](col []T, index int) *T {
	if index < 0 || index >= len(col) {
		return nil
	}
	return &col[index]
}

package ecs

// BufferAccessor gives access to the dynamic buffers of every entity in a chunk.
type BufferAccessor[T any] struct {
	buffers  [][]T
	readOnly bool
}

func NewBufferAccessor[T any](buffers [][]T, readOnly bool) BufferAccessor[T] {
	return BufferAccessor[T]{buffers: buffers, readOnly: readOnly}
}

func (a BufferAccessor[T]) Len() int { return len(a.buffers) }

// At returns the buffer of the entity at index. The result is invalid when the
// chunk stores no buffer of T.
func (a BufferAccessor[T]) At(index int) DynamicBuffer[T] {
	if index < 0 || index >= len(a.buffers) {
		return DynamicBuffer[T]{readOnly: a.readOnly}
	}
	return DynamicBuffer[T]{data: &a.buffers[index], readOnly: a.readOnly}
}

// DynamicBuffer is one entity's variable-length list of buffer elements.
type DynamicBuffer[T any] struct {
	data     *[]T
	readOnly bool
}

func (b DynamicBuffer[T]) IsValid() bool { return b.data != nil }

func (b DynamicBuffer[T]) IsReadOnly() bool { return b.readOnly }

func (b DynamicBuffer[T]) Len() int {
	if b.data == nil {
		return 0
	}
	return len(*b.data)
}

// At returns the element at i. It panics when i is out of range.
func (b DynamicBuffer[T]) At(i int) T {
	return (*b.data)[i]
}

// Slice returns the elements. The slice aliases chunk storage until the next
// write to the buffer.
func (b DynamicBuffer[T]) Slice() []T {
	if b.data == nil {
		return nil
	}
	return *b.data
}

func (b DynamicBuffer[T]) Append(values ...T) error {
	if err := b.writable(); err != nil {
		return err
	}
	*b.data = append(*b.data, values...)
	return nil
}

func (b DynamicBuffer[T]) Set(i int, v T) error {
	if err := b.writable(); err != nil {
		return err
	}
	if i < 0 || i >= len(*b.data) {
		return ErrBufferIndex
	}
	(*b.data)[i] = v
	return nil
}

func (b DynamicBuffer[T]) Clear() error {
	if err := b.writable(); err != nil {
		return err
	}
	*b.data = (*b.data)[:0]
	return nil
}

func (b DynamicBuffer[T]) writable() error {
	switch {
	case b.data == nil:
		return ErrInvalidBuffer
	case b.readOnly:
		return ErrReadOnlyBuffer
	default:
		return nil
	}
}

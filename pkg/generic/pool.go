package generic

import (
	"bytes"
	"sync"
)

type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewResetPool returns a pool that runs reset on every value put back.
func NewResetPool[T any](generate func() T, reset func(T)) *Pool[T] {
	p := NewPool(generate)
	p.reset = reset
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}

// BufferPool pools byte buffers for source rendering.
var BufferPool = NewResetPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

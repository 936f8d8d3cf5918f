package ecs

import "iter"

// IterationStrategy is fixed per declaration when its code is generated.
type IterationStrategy uint8

const (
	// IterateDense visits every index of a chunk range in order, testing the range
	// mask bit by bit when a caller-supplied query attached one.
	IterateDense IterationStrategy = iota
	// IterateSparse visits only the indices whose enabled bit is set, choosing per
	// chunk between a range walk and a word scan.
	IterateSparse
)

func (s IterationStrategy) String() string {
	if s == IterateSparse {
		return "sparse"
	}
	return "dense"
}

// Cursor locates the current entity of an enumeration.
type Cursor struct {
	// Index is the storage index of the entity inside its chunk.
	Index int
	// EntityIndexInChunk counts the entities matched so far in the chunk.
	EntityIndexInChunk int
	ChunkIndexInQuery  int
	// EntityIndexInQuery counts the entities matched so far in the query.
	EntityIndexInQuery int
}

// Enumerator walks the matching entities of a query, resolving chunk storage once
// per chunk with resolve and extracting one value per entity with get.
//
// Shared component filters are applied to the query on the first MoveNext and reset
// when the enumeration completes or is disposed.
type Enumerator[R, V any] struct {
	query    Query
	strategy IterationStrategy
	resolve  func(ChunkRange) R
	get      func(*R, Cursor) V
	filters  []SharedFilterValue

	ranges    []ChunkRange
	next      int
	chunk     ChunkRange
	resolved  R
	indices   []int
	pos       int
	base      int
	matched   int
	current   V
	started   bool
	done      bool
	filterSet bool
}

func NewEnumerator[R, V any](query Query, strategy IterationStrategy, resolve func(ChunkRange) R, get func(*R, Cursor) V) *Enumerator[R, V] {
	return &Enumerator[R, V]{
		query:    query,
		strategy: strategy,
		resolve:  resolve,
		get:      get,
	}
}

// SetSharedFilter sets the shared component filter applied for the lifetime of the
// enumeration. It has no effect once enumeration started.
func (e *Enumerator[R, V]) SetSharedFilter(values ...SharedFilterValue) {
	if e.started {
		return
	}
	e.filters = append(e.filters[:0], values...)
}

func (e *Enumerator[R, V]) Strategy() IterationStrategy { return e.strategy }

func (e *Enumerator[R, V]) MoveNext() bool {
	if e.done {
		return false
	}
	if !e.started {
		e.start()
	}
	for e.pos >= len(e.indices) {
		if !e.advance() {
			e.Dispose()
			return false
		}
	}

	c := Cursor{
		Index:              e.indices[e.pos],
		EntityIndexInChunk: e.pos,
		ChunkIndexInQuery:  e.chunk.ChunkIndex,
		EntityIndexInQuery: e.base + e.pos,
	}
	e.pos++
	e.current = e.get(&e.resolved, c)
	return true
}

func (e *Enumerator[R, V]) Current() V { return e.current }

// Dispose ends the enumeration and resets any shared component filter it applied.
// It is safe to call more than once.
func (e *Enumerator[R, V]) Dispose() {
	e.done = true
	if e.filterSet {
		e.query.ResetFilter()
		e.filterSet = false
	}
	e.ranges = nil
	e.indices = e.indices[:0]
}

// All returns the remaining values as a sequence. The enumerator is disposed when
// the loop ends, including on break.
func (e *Enumerator[R, V]) All() iter.Seq[V] {
	return func(yield func(V) bool) {
		defer e.Dispose()
		for e.MoveNext() {
			if !yield(e.current) {
				return
			}
		}
	}
}

func (e *Enumerator[R, V]) start() {
	e.started = true
	if len(e.filters) > 0 {
		e.query.SetSharedComponentFilter(e.filters...)
		e.filterSet = true
	}
	e.ranges = e.query.Ranges()
}

// advance moves the cursor to the next chunk range with at least one match and
// redoes every per-chunk resolution.
func (e *Enumerator[R, V]) advance() bool {
	for e.next < len(e.ranges) {
		r := e.ranges[e.next]
		e.next++

		e.base += e.matched
		e.indices = e.indices[:0]
		switch {
		case !r.UseEnabledMask:
			for i := r.Start; i < r.End; i++ {
				e.indices = append(e.indices, i)
			}
		case e.strategy == IterateSparse:
			ForEachEnabled(r.Mask.Window(r.Start, r.End), func(i int) bool {
				e.indices = append(e.indices, i)
				return true
			})
		default:
			// a caller-supplied query may mask chunks of a dense declaration
			for i := r.Start; i < r.End; i++ {
				if r.Mask.Get(i) {
					e.indices = append(e.indices, i)
				}
			}
		}
		e.matched = len(e.indices)
		e.pos = 0
		if e.matched == 0 {
			continue
		}

		e.chunk = r
		e.resolved = e.resolve(r)
		return true
	}
	return false
}

package memstore

import (
	"reflect"
	"sync/atomic"

	"github.com/zeusync/ecsgen/pkg/ecs"
)

type archetype struct {
	ids        []ecs.ComponentID
	infos      map[ecs.ComponentID]ecs.TypeInfo
	enableable map[ecs.ComponentID]bool
	chunks     []*chunk
}

func newArchetype(types *ecs.TypeRegistry, values []spawnValue) *archetype {
	a := &archetype{
		infos:      make(map[ecs.ComponentID]ecs.TypeInfo, len(values)),
		enableable: make(map[ecs.ComponentID]bool),
	}
	for _, v := range values {
		a.ids = append(a.ids, v.info.ID)
		a.infos[v.info.ID] = v.info
		if v.info.Enableable {
			a.enableable[v.info.ID] = true
		}
	}
	return a
}

func (a *archetype) has(id ecs.ComponentID) bool {
	_, ok := a.infos[id]
	return ok
}

// chunkFor returns a chunk with free space holding the given shared values.
func (a *archetype) chunkFor(shared map[ecs.ComponentID]any, version uint32) *chunk {
	for _, c := range a.chunks {
		if c.count < ecs.ChunkCapacity && sameShared(c.shared, shared) {
			return c
		}
	}
	c := newChunk(a, shared, version)
	a.chunks = append(a.chunks, c)
	return c
}

func sameShared(a, b map[ecs.ComponentID]any) bool {
	if len(a) != len(b) {
		return false
	}
	for id, v := range a {
		if b[id] != v {
			return false
		}
	}
	return true
}

// chunk implements ecs.Chunk. Columns are allocated at full capacity so pointers
// into them stay valid for the lifetime of the chunk.
type chunk struct {
	arch     *archetype
	count    int
	columns  map[ecs.ComponentID]reflect.Value
	masks    map[ecs.ComponentID]*ecs.EnabledMask
	shared   map[ecs.ComponentID]any
	entities []ecs.Entity
	versions map[ecs.ComponentID]*atomic.Uint32
}

var _ ecs.Chunk = (*chunk)(nil)

func newChunk(a *archetype, shared map[ecs.ComponentID]any, version uint32) *chunk {
	c := &chunk{
		arch:     a,
		columns:  make(map[ecs.ComponentID]reflect.Value),
		masks:    make(map[ecs.ComponentID]*ecs.EnabledMask),
		shared:   shared,
		entities: make([]ecs.Entity, ecs.ChunkCapacity),
		versions: make(map[ecs.ComponentID]*atomic.Uint32, len(a.ids)),
	}
	for _, id := range a.ids {
		info := a.infos[id]
		v := new(atomic.Uint32)
		v.Store(version)
		c.versions[id] = v
		if info.Enableable {
			c.masks[id] = new(ecs.EnabledMask)
		}
		switch info.Kind {
		case ecs.KindComponent, ecs.KindManaged:
			c.columns[id] = reflect.MakeSlice(reflect.SliceOf(info.Type), ecs.ChunkCapacity, ecs.ChunkCapacity)
		case ecs.KindBufferElement:
			c.columns[id] = reflect.MakeSlice(reflect.SliceOf(reflect.SliceOf(info.Type)), ecs.ChunkCapacity, ecs.ChunkCapacity)
		}
	}
	return c
}

func (c *chunk) push(e ecs.Entity, values []spawnValue, version uint32) int {
	row := c.count
	c.count++
	c.entities[row] = e
	for _, v := range values {
		if col, ok := c.columns[v.info.ID]; ok {
			col.Index(row).Set(v.value)
		}
		if m := c.masks[v.info.ID]; m != nil {
			m.Set(row, true)
		}
	}
	c.touch(version)
	return row
}

// swapRemove moves the last row into row and returns the moved entity.
func (c *chunk) swapRemove(row int, version uint32) (ecs.Entity, bool) {
	last := c.count - 1
	moved := row != last
	if moved {
		c.entities[row] = c.entities[last]
		for _, col := range c.columns {
			col.Index(row).Set(col.Index(last))
		}
		for _, m := range c.masks {
			m.Set(row, m.Get(last))
		}
	}
	for _, col := range c.columns {
		col.Index(last).SetZero()
	}
	for _, m := range c.masks {
		m.Set(last, false)
	}
	c.entities[last] = ecs.Entity{}
	c.count--
	c.touch(version)
	return c.entities[row], moved
}

func (c *chunk) touch(version uint32) {
	for _, v := range c.versions {
		v.Store(version)
	}
}

func (c *chunk) Len() int { return c.count }

func (c *chunk) Has(id ecs.ComponentID) bool { return c.arch.has(id) }

func (c *chunk) Column(id ecs.ComponentID) any {
	col, ok := c.columns[id]
	if !ok {
		return nil
	}
	return col.Slice(0, c.count).Interface()
}

func (c *chunk) EnabledMask(id ecs.ComponentID) *ecs.EnabledMask { return c.masks[id] }

func (c *chunk) SharedValue(id ecs.ComponentID) any { return c.shared[id] }

func (c *chunk) Entities() []ecs.Entity { return c.entities[:c.count] }

func (c *chunk) MarkChanged(id ecs.ComponentID, version uint32) {
	if v, ok := c.versions[id]; ok {
		v.Store(version)
	}
}

func (c *chunk) ChangeVersion(id ecs.ComponentID) uint32 {
	if v, ok := c.versions[id]; ok {
		return v.Load()
	}
	return 0
}

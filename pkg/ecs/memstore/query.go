package memstore

import (
	"github.com/zeusync/ecsgen/pkg/ecs"
)

// Query evaluates an ecs.QueryDesc against the chunks of a World.
//
// IncludePrefab, IncludeDisabledEntities and FilterWriteGroup are accepted but
// have no effect: the store has no prefab, disabled-entity or write-group state.
type Query struct {
	world       *World
	desc        ecs.QueryDesc
	filter      []ecs.SharedFilterValue
	lastVersion uint32
}

var _ ecs.VersionedQuery = (*Query)(nil)

// GetQuery implements ecs.QueryProvider.
func (w *World) GetQuery(desc ecs.QueryDesc) ecs.Query {
	return w.NewQuery(desc)
}

func (w *World) NewQuery(desc ecs.QueryDesc) *Query {
	return &Query{world: w, desc: desc}
}

func (q *Query) Desc() ecs.QueryDesc { return q.desc }

func (q *Query) SetSharedComponentFilter(values ...ecs.SharedFilterValue) {
	q.filter = append(q.filter[:0], values...)
}

func (q *Query) ResetFilter() { q.filter = q.filter[:0] }

// Filter returns the active shared component filter.
func (q *Query) Filter() []ecs.SharedFilterValue { return q.filter }

func (q *Query) SetLastSystemVersion(version uint32) { q.lastVersion = version }

// Ranges returns one range per matching chunk with at least one matching entity.
func (q *Query) Ranges() []ecs.ChunkRange {
	q.world.mu.RLock()
	defer q.world.mu.RUnlock()

	var out []ecs.ChunkRange
	for _, a := range q.world.order {
		if !q.matchesArchetype(a) {
			continue
		}
		for _, c := range a.chunks {
			if c.count == 0 || !q.matchesChunk(c) {
				continue
			}
			full := ecs.FullMask(c.count)
			mask := q.entityMask(c, full)
			if mask.IsEmpty() {
				continue
			}
			out = append(out, ecs.ChunkRange{
				Chunk:          c,
				Start:          0,
				End:            c.count,
				UseEnabledMask: mask != full,
				Mask:           mask,
				ChunkIndex:     len(out),
			})
		}
	}
	return out
}

func (q *Query) ignoreEnabled() bool {
	return q.desc.Options.Has(ecs.IgnoreComponentEnabledState)
}

func (q *Query) matchesArchetype(a *archetype) bool {
	for _, set := range [][]ecs.ComponentType{q.desc.All, q.desc.Disabled, q.desc.Present} {
		for _, t := range set {
			if !a.has(t.ID) {
				return false
			}
		}
	}
	for _, t := range q.desc.Absent {
		if a.has(t.ID) {
			return false
		}
	}
	for _, t := range q.desc.None {
		if a.has(t.ID) && (!a.enableable[t.ID] || q.ignoreEnabled()) {
			return false
		}
	}
	if len(q.desc.Any) == 0 {
		return true
	}
	for _, t := range q.desc.Any {
		if a.has(t.ID) {
			return true
		}
	}
	return false
}

func (q *Query) matchesChunk(c *chunk) bool {
	for _, f := range q.filter {
		if c.shared[f.ID] != f.Value {
			return false
		}
	}
	if len(q.desc.ChangeFilter) == 0 {
		return true
	}
	for _, id := range q.desc.ChangeFilter {
		if c.ChangeVersion(id) > q.lastVersion {
			return true
		}
	}
	return false
}

// entityMask combines the enabled bits of every enableable type of the descriptor.
func (q *Query) entityMask(c *chunk, full ecs.EnabledMask) ecs.EnabledMask {
	if q.ignoreEnabled() {
		return full
	}
	mask := full
	for _, t := range q.desc.All {
		if m := c.masks[t.ID]; m != nil {
			mask = mask.And(*m)
		}
	}
	for _, t := range q.desc.Disabled {
		m := c.masks[t.ID]
		if m == nil {
			return ecs.EnabledMask{}
		}
		mask = mask.AndNot(*m)
	}
	for _, t := range q.desc.None {
		if m := c.masks[t.ID]; m != nil {
			mask = mask.AndNot(*m)
		}
	}
	if len(q.desc.Any) > 0 {
		var anyMask ecs.EnabledMask
		for _, t := range q.desc.Any {
			switch m := c.masks[t.ID]; {
			case m != nil:
				anyMask = anyMask.Or(*m)
			case c.Has(t.ID):
				anyMask = full
			}
		}
		mask = mask.And(anyMask)
	}
	return mask.And(full)
}

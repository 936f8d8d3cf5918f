// Package memstore is an in-memory archetype/chunk store implementing the chunk,
// query and dependency contracts of package ecs.
package memstore

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zeusync/ecsgen/pkg/ecs"
)

type location struct {
	version int32
	chunk   *chunk
	row     int
}

// World owns the entities and their chunks.
type World struct {
	mu         sync.RWMutex
	types      *ecs.TypeRegistry
	archetypes map[string]*archetype
	order      []*archetype
	locations  map[int32]*location
	free       []int32
	nextIndex  int32
	version    atomic.Uint32
	deps       *ecs.DependencyTracker
}

func NewWorld(types *ecs.TypeRegistry) *World {
	if types == nil {
		types = ecs.NewTypeRegistry()
	}
	w := &World{
		types:      types,
		archetypes: make(map[string]*archetype),
		locations:  make(map[int32]*location),
		deps:       ecs.NewDependencyTracker(),
	}
	w.version.Store(1)
	return w
}

func (w *World) Types() *ecs.TypeRegistry { return w.types }

func (w *World) Dependencies() *ecs.DependencyTracker { return w.deps }

// Version is the global system version.
func (w *World) Version() uint32 { return w.version.Load() }

// NewSystemState returns a system state bound to this world.
func (w *World) NewSystemState(name string) *ecs.SystemState {
	s := ecs.NewSystemState(name, w.types, w, w.deps)
	s.BeginUpdate(w.Version())
	return s
}

// BeginSystemUpdate advances the global version and starts an update of state.
func (w *World) BeginSystemUpdate(state *ecs.SystemState) {
	state.BeginUpdate(w.version.Add(1))
}

type spawnValue struct {
	info  ecs.TypeInfo
	value reflect.Value
}

// Spawn creates an entity with the given component values. A []T value stores a
// dynamic buffer when T is a registered buffer element type. Shared component values
// select the chunk.
func (w *World) Spawn(components ...any) (ecs.Entity, error) {
	values := make([]spawnValue, 0, len(components))
	for _, c := range components {
		sv, err := w.classify(c)
		if err != nil {
			return ecs.Entity{}, err
		}
		values = append(values, sv)
	}
	slices.SortFunc(values, func(a, b spawnValue) int { return int(a.info.ID) - int(b.info.ID) })

	w.mu.Lock()
	defer w.mu.Unlock()

	arch := w.archetypeFor(values)
	shared := make(map[ecs.ComponentID]any)
	for _, v := range values {
		if v.info.Kind == ecs.KindShared {
			shared[v.info.ID] = v.value.Interface()
		}
	}
	ch := arch.chunkFor(shared, w.Version())

	e := w.allocate()
	row := ch.push(e, values, w.Version())
	w.locations[e.Index] = &location{version: e.Version, chunk: ch, row: row}
	return e, nil
}

func (w *World) classify(c any) (spawnValue, error) {
	t := reflect.TypeOf(c)
	if t == nil {
		return spawnValue{}, fmt.Errorf("%w: nil component", ecs.ErrUnregisteredType)
	}
	if id, ok := w.types.Lookup(t); ok {
		info, _ := w.types.Info(id)
		return spawnValue{info: info, value: reflect.ValueOf(c)}, nil
	}
	if t.Kind() == reflect.Slice {
		if id, ok := w.types.Lookup(t.Elem()); ok {
			if info, _ := w.types.Info(id); info.Kind == ecs.KindBufferElement {
				return spawnValue{info: info, value: reflect.ValueOf(c)}, nil
			}
		}
	}
	return spawnValue{}, fmt.Errorf("%w: %s", ecs.ErrUnregisteredType, t)
}

func (w *World) allocate() ecs.Entity {
	if n := len(w.free); n > 0 {
		idx := w.free[n-1]
		w.free = w.free[:n-1]
		return ecs.Entity{Index: idx, Version: w.locations[idx].version + 1}
	}
	w.nextIndex++
	return ecs.Entity{Index: w.nextIndex, Version: 1}
}

func (w *World) archetypeFor(values []spawnValue) *archetype {
	ids := make([]ecs.ComponentID, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.info.ID)
	}
	key := archetypeKey(ids)
	if a, ok := w.archetypes[key]; ok {
		return a
	}
	a := newArchetype(w.types, values)
	w.archetypes[key] = a
	w.order = append(w.order, a)
	return a
}

func archetypeKey(ids []ecs.ComponentID) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprint(&sb, id)
	}
	return sb.String()
}

func (w *World) lookup(e ecs.Entity) (*location, error) {
	loc, ok := w.locations[e.Index]
	if !ok || loc.chunk == nil || loc.version != e.Version {
		return nil, fmt.Errorf("%w: %d:%d", ecs.ErrEntityNotFound, e.Index, e.Version)
	}
	return loc, nil
}

// Destroy removes an entity. The last entity of its chunk moves into its row.
func (w *World) Destroy(e ecs.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	loc, err := w.lookup(e)
	if err != nil {
		return err
	}
	if moved, ok := loc.chunk.swapRemove(loc.row, w.Version()); ok {
		w.locations[moved.Index].row = loc.row
	}
	loc.chunk = nil
	w.free = append(w.free, e.Index)
	return nil
}

func (w *World) Alive(e ecs.Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, err := w.lookup(e)
	return err == nil
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, a := range w.order {
		for _, c := range a.chunks {
			n += c.count
		}
	}
	return n
}

// SetEnabled writes the enabled bit of an enableable component.
func (w *World) SetEnabled(e ecs.Entity, id ecs.ComponentID, enabled bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	loc, mask, err := w.maskOf(e, id)
	if err != nil {
		return err
	}
	mask.Set(loc.row, enabled)
	loc.chunk.MarkChanged(id, w.Version())
	return nil
}

func (w *World) IsEnabled(e ecs.Entity, id ecs.ComponentID) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	loc, mask, err := w.maskOf(e, id)
	if err != nil {
		return false, err
	}
	return mask.Get(loc.row), nil
}

func (w *World) maskOf(e ecs.Entity, id ecs.ComponentID) (*location, *ecs.EnabledMask, error) {
	loc, err := w.lookup(e)
	if err != nil {
		return nil, nil, err
	}
	if !loc.chunk.Has(id) {
		return nil, nil, fmt.Errorf("%w: %s", ecs.ErrComponentNotFound, w.types.Name(id))
	}
	mask := loc.chunk.EnabledMask(id)
	if mask == nil {
		return nil, nil, fmt.Errorf("%w: %s", ecs.ErrNotEnableable, w.types.Name(id))
	}
	return loc, mask, nil
}

// Get returns a copy of the T component of e.
func Get[T any](w *World, e ecs.Entity) (T, error) {
	var zero T
	w.mu.RLock()
	defer w.mu.RUnlock()
	col, row, err := column[T](w, e)
	if err != nil {
		return zero, err
	}
	return col[row], nil
}

// Set overwrites the T component of e.
func Set[T any](w *World, e ecs.Entity, v T) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	col, row, err := column[T](w, e)
	if err != nil {
		return err
	}
	col[row] = v
	id, _ := ecs.LookupType[T](w.types)
	w.locations[e.Index].chunk.MarkChanged(id, w.Version())
	return nil
}

func column[T any](w *World, e ecs.Entity) ([]T, int, error) {
	loc, err := w.lookup(e)
	if err != nil {
		return nil, 0, err
	}
	id, ok := ecs.LookupType[T](w.types)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ecs.ErrUnregisteredType, reflect.TypeFor[T]())
	}
	col, ok := loc.chunk.Column(id).([]T)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ecs.ErrComponentNotFound, w.types.Name(id))
	}
	return col, loc.row, nil
}

// Buffer returns the dynamic buffer of element type T of e.
func Buffer[T any](w *World, e ecs.Entity) (ecs.DynamicBuffer[T], error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	loc, err := w.lookup(e)
	if err != nil {
		return ecs.DynamicBuffer[T]{}, err
	}
	id, ok := ecs.LookupType[T](w.types)
	if !ok {
		return ecs.DynamicBuffer[T]{}, fmt.Errorf("%w: %s", ecs.ErrUnregisteredType, reflect.TypeFor[T]())
	}
	bufs, ok := loc.chunk.Column(id).([][]T)
	if !ok {
		return ecs.DynamicBuffer[T]{}, fmt.Errorf("%w: %s", ecs.ErrComponentNotFound, w.types.Name(id))
	}
	return ecs.NewBufferAccessor(bufs, false).At(loc.row), nil
}

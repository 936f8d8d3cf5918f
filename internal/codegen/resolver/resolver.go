// Package resolver plans the two-level resolve of a declaration site (storage once
// per chunk, one value per entity) and emits the resolved chunk, the item, the
// enumerator and the chunk iteration of the site.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/ecsgen/internal/codegen/classify"
	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/emit"
	"github.com/zeusync/ecsgen/internal/codegen/handles"
	"github.com/zeusync/ecsgen/internal/codegen/query"
	"github.com/zeusync/ecsgen/pkg/ecs"
)

// Slot is the resolution of one parameter.
type Slot struct {
	Param classify.Parameter
	// Field, GoType and Resolve describe the resolved chunk field. Field is empty
	// for parameters that resolve no storage.
	Field   string
	GoType  string
	Resolve string
	// Value builds the item field from the handle h, rc and the cursor c. Empty
	// means the zero value.
	Value string
}

// Filter is one shared component filter argument of the Query entry point.
type Filter struct {
	Param  string
	GoType string
	Field  string
}

// Shape is the resolve plan of one site.
type Shape struct {
	Site     string
	Slots    []Slot
	Filters  []Filter
	Strategy ecs.IterationStrategy
}

// Resolved returns the slots that own a resolved chunk field.
func (s Shape) Resolved() []Slot {
	var out []Slot
	for _, slot := range s.Slots {
		if slot.Field != "" {
			out = append(out, slot)
		}
	}
	return out
}

// Sparse reports whether iteration honours enabled bits.
func (s Shape) Sparse() bool { return s.Strategy == ecs.IterateSparse }

// Args is the argument list of the Execute call, read from a variable named item.
func (s Shape) Args() string {
	args := make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		args[i] = "item." + slot.Param.Field()
	}
	return strings.Join(args, ", ")
}

// StrategyName is the runtime constant of the strategy.
func (s Shape) StrategyName() string {
	if s.Sparse() {
		return "IterateSparse"
	}
	return "IterateDense"
}

// Plan builds the shape of a site. Every parameter that reads storage must have
// its handle in reg.
func Plan(site string, params []classify.Parameter, desc query.Descriptor, reg *handles.Registry) (Shape, error) {
	shape := Shape{Site: site, Strategy: ecs.IterateDense}
	if desc.UsesEnabledMask {
		shape.Strategy = ecs.IterateSparse
	}

	// handle is the back reference of the resolved chunk
	used := map[string]bool{"handle": true}
	for _, p := range params {
		slot := Slot{Param: p}
		if kind, ok := handles.KindOf(p); ok {
			f, ok := reg.Lookup(p.Info.Name, kind)
			if !ok {
				return Shape{}, fmt.Errorf("%s: no %s handle for %s", site, kind, p.Info.Name)
			}
			slot.Field = unique(used, emit.Unexport(p.Name))
			planSlot(&slot, f.Name)
		} else {
			planValue(&slot)
		}
		shape.Slots = append(shape.Slots, slot)
	}

	for _, t := range desc.SharedFilter {
		f, ok := reg.Lookup(t.Name, handles.Shared)
		if !ok {
			return Shape{}, fmt.Errorf("%s: no shared handle for filter %s", site, t.Name)
		}
		shape.Filters = append(shape.Filters, Filter{
			Param:  emit.Unexport(t.Ident()) + "Filter",
			GoType: t.GoType,
			Field:  f.Name,
		})
	}
	return shape, nil
}

func unique(used map[string]bool, name string) string {
	out := name
	for i := 2; used[out]; i++ {
		out = name + strconv.Itoa(i)
	}
	used[out] = true
	return out
}

// planSlot resolves storage through the handle once per chunk and reads the
// entity's value through the matching accessor of the same handle.
func planSlot(s *Slot, handle string) {
	p := s.Param
	t := p.Info.GoType
	rc := "rc." + s.Field
	h := "h." + handle
	s.Resolve = h + ".ResolveChunk(r.Chunk)"

	switch p.Kind {
	case classify.EnabledReadRef, classify.EnabledWriteRef:
		s.GoType = "*ecs.EnabledMask"
		s.Resolve = h + ".Enabled().ResolveChunk(r.Chunk)"
		s.Value = h + ".Enabled().GetAt(" + rc + ", c.Index)"
		if p.Kind == classify.EnabledReadRef {
			s.Value += ".ReadOnly()"
		}
	case classify.Buffer:
		s.GoType = "ecs.BufferAccessor[" + t + "]"
		s.Value = h + ".GetAt(" + rc + ", c.Index)"
	case classify.SharedComponent:
		s.GoType = t
		s.Value = h + ".GetAt(" + rc + ", c.Index)"
	case classify.Aspect:
		s.GoType = p.Info.Qualified("", "ResolvedChunk")
		s.Resolve = h + ".Resolve(r)"
		s.Value = rc + ".Get(c.Index)"
	case classify.Entity:
		s.GoType = "[]ecs.Entity"
		s.Value = h + ".GetAt(" + rc + ", c.Index)"
	case classify.ReadOnlyRef:
		s.GoType = "[]" + t
		s.Value = h + ".RefsRO().GetAt(" + rc + ", c.Index)"
	case classify.ReadWriteRef:
		s.GoType = "[]" + t
		s.Value = h + ".Refs().GetAt(" + rc + ", c.Index)"
	default:
		// plain and managed components
		s.GoType = "[]" + t
		if p.Ref == decl.Ref {
			s.Value = h + ".GetAt(" + rc + ", c.Index)"
		} else {
			s.Value = h + ".Values().GetAt(" + rc + ", c.Index)"
		}
	}
}

func planValue(s *Slot) {
	switch s.Param.Index {
	case decl.EntityIndexInQuery:
		s.Value = "c.EntityIndexInQuery"
	case decl.EntityIndexInChunk:
		s.Value = "c.EntityIndexInChunk"
	case decl.ChunkIndexInQuery:
		s.Value = "c.ChunkIndexInQuery"
	}
}

var resolverTemplate = emit.Parse("resolver", `// {{.Site}}ResolvedChunk is the storage of one chunk resolved for {{.Site}}.
type {{.Site}}ResolvedChunk struct {
	handle *{{.Site}}TypeHandle
{{- range .Resolved}}
	{{.Field}} {{.GoType}}
{{- end}}
}

// {{.Site}}Item is what {{.Site}} receives for one entity.
type {{.Site}}Item struct {
{{- range .Slots}}
	{{.Param.Field}} {{.Param.ValueType}}
{{- end}}
}

// Resolve resolves the storage of r.Chunk once for every entity of the range.
func (h *{{.Site}}TypeHandle) Resolve(r ecs.ChunkRange) {{.Site}}ResolvedChunk {
	return {{.Site}}ResolvedChunk{
		handle: h,
{{- range .Resolved}}
		{{.Field}}: {{.Resolve}},
{{- end}}
	}
}

// Get returns the item of the entity stored at index.
func (rc *{{.Site}}ResolvedChunk) Get(index int) {{.Site}}Item {
	return rc.handle.itemAt(rc, ecs.Cursor{Index: index, EntityIndexInChunk: index})
}

func (h *{{.Site}}TypeHandle) itemAt(rc *{{.Site}}ResolvedChunk, c ecs.Cursor) {{.Site}}Item {
	return {{.Site}}Item{
{{- range .Slots}}
{{- if .Value}}
		{{.Param.Field}}: {{.Value}},
{{- end}}
{{- end}}
	}
}

// {{.Site}}Enumerator walks the entities of a {{.Site}} query.
type {{.Site}}Enumerator struct {
	*ecs.Enumerator[{{.Site}}ResolvedChunk, {{.Site}}Item]
}

func (e {{.Site}}Enumerator) GetEnumerator() {{.Site}}Enumerator { return e }

// Query returns an enumerator over the entities matching query.
{{- if .Filters}} The shared component
// filter is set when enumeration starts and reset when it completes or is disposed.
{{- end}}
func (h *{{.Site}}TypeHandle) Query(query ecs.Query{{range .Filters}}, {{.Param}} {{.GoType}}{{end}}) {{.Site}}Enumerator {
	e := ecs.NewEnumerator(query, ecs.{{.StrategyName}}, h.Resolve, h.itemAt)
{{- if .Filters}}
	e.SetSharedFilter(
{{- range .Filters}}
		ecs.SharedFilterValue{ID: h.{{.Field}}.ID(), Value: {{.Param}}},
{{- end}}
	)
{{- end}}
	return {{.Site}}Enumerator{e}
}

// executeChunk runs job for every matching entity of r and returns how many it visited.
func (h *{{.Site}}TypeHandle) executeChunk(job *{{.Site}}, r ecs.ChunkRange, base int) int {
	rc := h.Resolve(r)
	matched := 0
{{- if .Sparse}}
	ecs.ForEachInRange(r, func(i int) bool {
		{{if .Slots}}item := {{end}}h.itemAt(&rc, ecs.Cursor{Index: i, EntityIndexInChunk: matched, ChunkIndexInQuery: r.ChunkIndex, EntityIndexInQuery: base + matched})
		job.Execute({{.Args}})
		matched++
		return true
	})
{{- else}}
	for i := r.Start; i < r.End; i++ {
		if r.UseEnabledMask && !r.Mask.Get(i) {
			continue
		}
		{{if .Slots}}item := {{end}}h.itemAt(&rc, ecs.Cursor{Index: i, EntityIndexInChunk: matched, ChunkIndexInQuery: r.ChunkIndex, EntityIndexInQuery: base + matched})
		job.Execute({{.Args}})
		matched++
	}
{{- end}}
	return matched
}
`)

// Emit renders the resolver, item, enumerator and chunk iteration of a site.
func Emit(shape Shape) (emit.Fragment, error) {
	return emit.Execute(resolverTemplate, shape.Site, "resolver", shape)
}

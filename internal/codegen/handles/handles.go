// Package handles deduplicates the type handles of one declaration site and emits
// the handle struct that acquires and refreshes them.
package handles

import (
	"fmt"
	"strconv"

	"github.com/zeusync/ecsgen/internal/codegen/classify"
	"github.com/zeusync/ecsgen/internal/codegen/emit"
	"github.com/zeusync/ecsgen/internal/codegen/query"
	"github.com/zeusync/ecsgen/internal/core/models"
)

// Kind is the runtime handle kind of a field.
type Kind uint8

const (
	Component Kind = iota
	Buffer
	Shared
	Entity
	Aspect
)

func (k Kind) String() string {
	switch k {
	case Component:
		return "Component"
	case Buffer:
		return "Buffer"
	case Shared:
		return "Shared"
	case Entity:
		return "Entity"
	case Aspect:
		return "Aspect"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

var suffixes = [...]string{
	Component: "Handle",
	Buffer:    "Buffer",
	Shared:    "Shared",
	Entity:    "Handle",
	Aspect:    "Aspect",
}

// Field is one handle field of the generated struct.
type Field struct {
	Type     models.TypeInfo
	Kind     Kind
	ReadOnly bool
	Name     string
}

// GoType is the Go type of the field.
func (f Field) GoType() string {
	switch f.Kind {
	case Buffer:
		return "ecs.BufferTypeHandle[" + f.Type.GoType + "]"
	case Shared:
		return "ecs.SharedComponentTypeHandle[" + f.Type.GoType + "]"
	case Entity:
		return "ecs.EntityTypeHandle"
	case Aspect:
		return f.Type.Qualified("", "TypeHandle")
	default:
		return "ecs.ComponentTypeHandle[" + f.Type.GoType + "]"
	}
}

// Constructor is the expression acquiring the handle from a variable named state.
func (f Field) Constructor() string {
	switch f.Kind {
	case Buffer:
		return "ecs.GetBufferTypeHandle[" + f.Type.GoType + "](state, " + strconv.FormatBool(f.ReadOnly) + ")"
	case Shared:
		return "ecs.GetSharedComponentTypeHandle[" + f.Type.GoType + "](state)"
	case Entity:
		return "ecs.GetEntityTypeHandle(state)"
	case Aspect:
		return f.Type.Qualified("New", "TypeHandle") + "(state)"
	default:
		return "ecs.GetComponentTypeHandle[" + f.Type.GoType + "](state, " + strconv.FormatBool(f.ReadOnly) + ")"
	}
}

// Typed reports whether the handle exposes one component type.
func (f Field) Typed() bool {
	return f.Kind == Component || f.Kind == Buffer || f.Kind == Shared
}

func (f Field) IsAspect() bool { return f.Kind == Aspect }

type key struct {
	typ  string
	kind Kind
}

// Registry holds the handle fields of one scope in request order.
type Registry struct {
	fields []*Field
	byKey  map[key]*Field
	names  map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[key]*Field), names: make(map[string]bool)}
}

// GetOrCreate returns the field name of the (type, kind) handle, creating it on
// first request. A read-write request upgrades an existing read-only field.
func (r *Registry) GetOrCreate(t models.TypeInfo, kind Kind, readOnly bool) string {
	k := key{typ: t.Name, kind: kind}
	if f, ok := r.byKey[k]; ok {
		f.ReadOnly = f.ReadOnly && readOnly
		return f.Name
	}
	if kind == Shared || kind == Entity {
		readOnly = true
	}

	f := &Field{Type: t, Kind: kind, ReadOnly: readOnly, Name: r.name(t, kind)}
	r.fields = append(r.fields, f)
	r.byKey[k] = f
	return f.Name
}

func (r *Registry) name(t models.TypeInfo, kind Kind) string {
	base := emit.Unexport(t.Ident()) + suffixes[kind]
	if kind == Entity {
		base = "entityHandle"
	}
	name := base
	for i := 2; r.names[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	r.names[name] = true
	return name
}

// Lookup returns the field of the (type, kind) handle.
func (r *Registry) Lookup(typ string, kind Kind) (Field, bool) {
	f, ok := r.byKey[key{typ: typ, kind: kind}]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// Fields returns a snapshot of the fields in request order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fields))
	for i, f := range r.fields {
		out[i] = *f
	}
	return out
}

func (r *Registry) Len() int { return len(r.fields) }

// KindOf returns the handle kind a parameter needs, false when it reads no storage.
func KindOf(p classify.Parameter) (Kind, bool) {
	switch p.Kind {
	case classify.ValueComponent, classify.ReadOnlyRef, classify.ReadWriteRef,
		classify.EnabledReadRef, classify.EnabledWriteRef, classify.ManagedComponent:
		return Component, true
	case classify.Buffer:
		return Buffer, true
	case classify.SharedComponent:
		return Shared, true
	case classify.Aspect:
		return Aspect, true
	case classify.Entity:
		return Entity, true
	default:
		// tags yield their zero value and indices come from the cursor
		return 0, false
	}
}

// Plan registers the handles of every parameter and of every shared filter type.
// Enableable types the query matches on get a read-only handle too: their enabled
// bits are read while ranges are built, so they belong to the access list. Types
// an aspect parameter requires are listed by the aspect's own handle.
func Plan(params []classify.Parameter, desc query.Descriptor) *Registry {
	r := NewRegistry()
	viaAspect := make(map[string]bool)
	for _, p := range params {
		if kind, ok := KindOf(p); ok {
			r.GetOrCreate(p.Info, kind, p.ReadOnly)
		}
		if p.Kind == classify.Aspect {
			for _, req := range p.Info.Requires {
				viaAspect[req.Type] = true
			}
		}
	}
	for _, t := range desc.SharedFilter {
		r.GetOrCreate(t, Shared, true)
	}
	if !desc.HasOption("IgnoreComponentEnabledState") {
		for _, m := range []query.Membership{query.All, query.Any, query.None, query.Disabled} {
			for _, q := range desc.Set(m) {
				if q.Type.Enableable && !viaAspect[q.Type.Name] {
					r.GetOrCreate(q.Type, Component, true)
				}
			}
		}
	}
	return r
}

var handleTemplate = emit.Parse("handles", `// {{.Name}}TypeHandle holds the type handles {{.Name}} resolves chunks with.
type {{.Name}}TypeHandle struct {
{{- range .Fields}}
	{{.Name}} {{.GoType}}
{{- end}}
}

// New{{.Name}}TypeHandle acquires every handle {{.Name}} reads.
func New{{.Name}}TypeHandle(state *ecs.SystemState) {{.Name}}TypeHandle {
	return {{.Name}}TypeHandle{
{{- range .Fields}}
		{{.Name}}: {{.Constructor}},
{{- end}}
	}
}

// Update refreshes every handle against state.
func (h *{{.Name}}TypeHandle) Update(state *ecs.SystemState) {
{{- range .Fields}}
	h.{{.Name}}.Update(state)
{{- end}}
}

// Access lists the component types {{.Name}} touches with their access mode.
func (h *{{.Name}}TypeHandle) Access() []ecs.ComponentType {
	access := make([]ecs.ComponentType, 0, {{len .Fields}})
{{- range .Fields}}
{{- if .Typed}}
	access = append(access, h.{{.Name}}.Type())
{{- else if .IsAspect}}
	access = append(access, h.{{.Name}}.Access()...)
{{- end}}
{{- end}}
	return access
}
`)

// Emit renders the handle struct of site.
func Emit(site string, r *Registry) (emit.Fragment, error) {
	return emit.Execute(handleTemplate, site, "handles", struct {
		Name   string
		Fields []Field
	}{site, r.Fields()})
}

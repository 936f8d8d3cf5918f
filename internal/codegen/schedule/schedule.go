// Package schedule emits the query descriptor of a declaration site and its
// Run, Schedule and ScheduleParallel entry points.
package schedule

import (
	"fmt"
	"strings"

	"github.com/zeusync/ecsgen/internal/codegen/classify"
	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/emit"
	"github.com/zeusync/ecsgen/internal/codegen/query"
	"github.com/zeusync/ecsgen/internal/core/models"
)

// Modes are the scheduling entry points of every site. Each has a ByRef variant.
var Modes = []string{"Run", "Schedule", "ScheduleParallel"}

// Set is one membership set of the runtime descriptor.
type Set struct {
	Name  string
	Types []string
}

// Plan is the input of the trampoline template.
type Plan struct {
	Package string
	Site    string
	Sets    []Set
	// ChangeFilter and SharedFilter are TypeOf expressions.
	ChangeFilter []string
	SharedFilter []string
	Options      string
	// EntityIndices is set when a parameter reads EntityIndexInQuery.
	EntityIndices bool
}

func (p Plan) Lower() string { return emit.Unexport(p.Site) }

// CacheKey is the key the site's handle is cached under on a system state.
func (p Plan) CacheKey() string { return p.Package + "." + p.Site }

var runtimeKinds = map[models.Kind]string{
	models.KindComponent:     "ecs.KindComponent",
	models.KindTag:           "ecs.KindTag",
	models.KindBufferElement: "ecs.KindBufferElement",
	models.KindShared:        "ecs.KindShared",
	models.KindManaged:       "ecs.KindManaged",
}

// TypeOf is the runtime expression of a component type, with state in scope.
func TypeOf(t models.TypeInfo, readOnly bool) string {
	mode := "ecs.ReadWrite"
	if readOnly {
		mode = "ecs.ReadOnly"
	}
	kind, ok := runtimeKinds[t.Kind]
	if !ok {
		kind = "ecs.KindComponent"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ecs.TypeOf[%s](state, %s, %s", t.GoType, kind, mode)
	if t.Enableable {
		sb.WriteString(", ecs.Enableable()")
	}
	sb.WriteString(")")
	return sb.String()
}

// NewPlan converts a descriptor into its runtime spelling.
func NewPlan(pkg, site string, params []classify.Parameter, desc query.Descriptor) Plan {
	p := Plan{Package: pkg, Site: site}
	for _, m := range query.Memberships {
		entries := desc.Set(m)
		if len(entries) == 0 {
			continue
		}
		set := Set{Name: m.String()}
		for _, q := range entries {
			set.Types = append(set.Types, TypeOf(q.Type, q.ReadOnly))
		}
		p.Sets = append(p.Sets, set)
	}
	for _, t := range desc.ChangeFilter {
		p.ChangeFilter = append(p.ChangeFilter, TypeOf(t, true)+".ID")
	}
	for _, t := range desc.SharedFilter {
		p.SharedFilter = append(p.SharedFilter, TypeOf(t, true)+".ID")
	}
	if len(desc.Options) > 0 {
		flags := make([]string, len(desc.Options))
		for i, o := range desc.Options {
			flags[i] = "ecs." + o
		}
		p.Options = strings.Join(flags, " | ")
	}
	for _, param := range params {
		if param.Kind == classify.PositionalIndex && param.Index == decl.EntityIndexInQuery {
			p.EntityIndices = true
		}
	}
	return p
}

var trampolineTemplate = emit.Parse("schedule", `// {{.Site}}QueryDesc returns the descriptor of the entities {{.Site}} iterates.
func {{.Site}}QueryDesc(state *ecs.SystemState) ecs.QueryDesc {
	return ecs.QueryDesc{
{{- range .Sets}}
		{{.Name}}: []ecs.ComponentType{
{{- range .Types}}
			{{.}},
{{- end}}
		},
{{- end}}
{{- if .ChangeFilter}}
		ChangeFilter: []ecs.ComponentID{
{{- range .ChangeFilter}}
			{{.}},
{{- end}}
		},
{{- end}}
{{- if .SharedFilter}}
		SharedFilter: []ecs.ComponentID{
{{- range .SharedFilter}}
			{{.}},
{{- end}}
		},
{{- end}}
{{- if .Options}}
		Options: {{.Options}},
{{- end}}
	}
}

// New{{.Site}}Query returns the query of {{.Site}}QueryDesc from the state's provider.
func New{{.Site}}Query(state *ecs.SystemState) (ecs.Query, error) {
	if state.Queries == nil {
		return nil, ecs.ErrNoQueryProvider
	}
	return state.Queries.GetQuery({{.Site}}QueryDesc(state)), nil
}

func {{.Lower}}TypeHandleFor(state *ecs.SystemState) *{{.Site}}TypeHandle {
	h := ecs.CachedHandle(state, {{quote .CacheKey}}, New{{.Site}}TypeHandle)
	h.Update(state)
	return h
}

// Run runs a copy of job over query on the calling goroutine. A nil query is
// replaced by New{{.Site}}Query. Run first waits for dependsOn and for every
// scheduled job touching the same component types.
func (job {{.Site}}) Run(query ecs.Query, dependsOn ecs.JobHandle, state *ecs.SystemState) (ecs.JobHandle, error) {
	return job.RunByRef(query, dependsOn, state)
}

// RunByRef is Run on job itself.
func (job *{{.Site}}) RunByRef(query ecs.Query, dependsOn ecs.JobHandle, state *ecs.SystemState) (ecs.JobHandle, error) {
	h := {{.Lower}}TypeHandleFor(state)
	query, err := ecs.PrepareQuery({{quote .Site}}, query, {{.Site}}QueryDesc(state), state)
	if err != nil {
		return dependsOn, err
	}
	if err := ecs.CompleteForRun(dependsOn, h.Access(), state); err != nil {
		return dependsOn, err
	}
	ecs.RunChunks(query.Ranges(), func(r ecs.ChunkRange, base int) int {
		return h.executeChunk(job, r, base)
	})
	return ecs.JobHandle{}, nil
}

// Schedule runs a copy of job over query on one goroutine once dependsOn and every
// scheduled job touching the same component types completed.
func (job {{.Site}}) Schedule(query ecs.Query, dependsOn ecs.JobHandle, state *ecs.SystemState) (ecs.JobHandle, error) {
	return job.ScheduleByRef(query, dependsOn, state)
}

// ScheduleByRef is Schedule on job itself. job must not be used until the returned
// handle completed.
func (job *{{.Site}}) ScheduleByRef(query ecs.Query, dependsOn ecs.JobHandle, state *ecs.SystemState) (ecs.JobHandle, error) {
	h := *{{.Lower}}TypeHandleFor(state)
	query, err := ecs.PrepareQuery({{quote .Site}}, query, {{.Site}}QueryDesc(state), state)
	if err != nil {
		return dependsOn, err
	}
	access := h.Access()
	dependsOn = ecs.CombineDependencies(dependsOn, state.DependencyFor(access))
	handle := ecs.Schedule(dependsOn, func() error {
		ecs.RunChunks(query.Ranges(), func(r ecs.ChunkRange, base int) int {
			return h.executeChunk(job, r, base)
		})
		return nil
	})
	state.AddDependency(access, handle)
	return handle, nil
}

// ScheduleParallel splits the chunks of query across goroutines once dependsOn and
// every scheduled job touching the same component types completed. Every chunk runs
// on its own copy of job.
func (job {{.Site}}) ScheduleParallel(query ecs.Query, dependsOn ecs.JobHandle, state *ecs.SystemState) (ecs.JobHandle, error) {
	return job.ScheduleParallelByRef(query, dependsOn, state)
}

// ScheduleParallelByRef is ScheduleParallel copying job itself.
func (job *{{.Site}}) ScheduleParallelByRef(query ecs.Query, dependsOn ecs.JobHandle, state *ecs.SystemState) (ecs.JobHandle, error) {
	h := *{{.Lower}}TypeHandleFor(state)
	query, err := ecs.PrepareQuery({{quote .Site}}, query, {{.Site}}QueryDesc(state), state)
	if err != nil {
		return dependsOn, err
	}
	access := h.Access()
	dependsOn = ecs.CombineDependencies(dependsOn, state.DependencyFor(access))
	opts := ecs.ParallelOptions{Workers: state.Workers, EntityIndices: {{.EntityIndices}}}
	handle := ecs.ScheduleParallel(dependsOn, query, opts, func(r ecs.ChunkRange, base int) {
		local := *job
		h.executeChunk(&local, r, base)
	})
	state.AddDependency(access, handle)
	return handle, nil
}
`)

// Emit renders the descriptor and trampolines of a site.
func Emit(p Plan) (emit.Fragment, error) {
	return emit.Execute(trampolineTemplate, p.Site, "schedule", p)
}

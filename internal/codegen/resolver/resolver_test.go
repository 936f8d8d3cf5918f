package resolver

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/ecsgen/internal/codegen/classify"
	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/emit"
	"github.com/zeusync/ecsgen/internal/codegen/handles"
	"github.com/zeusync/ecsgen/internal/codegen/query"
	"github.com/zeusync/ecsgen/internal/core/models"
	"github.com/zeusync/ecsgen/pkg/ecs"
)

var (
	position  = models.TypeInfo{Name: "Position", GoType: "Position", Kind: models.KindComponent}
	velocity  = models.TypeInfo{Name: "Velocity", GoType: "Velocity", Kind: models.KindComponent, Enableable: true}
	marker    = models.TypeInfo{Name: "Marker", GoType: "Marker", Kind: models.KindTag}
	waypoint  = models.TypeInfo{Name: "Waypoint", GoType: "Waypoint", Kind: models.KindBufferElement}
	team      = models.TypeInfo{Name: "Team", GoType: "Team", Kind: models.KindShared}
	transform = models.TypeInfo{Name: "Transform", GoType: "aspects.Transform", Kind: models.KindAspect}
	entity    = models.TypeInfo{Name: "Entity", GoType: "ecs.Entity", Kind: models.KindEntity}
	intType   = models.TypeInfo{Name: "int", GoType: "int", Kind: models.KindInt}
)

func plan(t *testing.T, site string, params []classify.Parameter, desc query.Descriptor) Shape {
	t.Helper()
	shape, err := Plan(site, params, desc, handles.Plan(params, desc))
	require.NoError(t, err)
	return shape
}

func render(t *testing.T, shape Shape) string {
	t.Helper()
	f, err := Emit(shape)
	require.NoError(t, err)

	u := emit.NewUnit("movement")
	u.Add(f)
	src, err := u.Source("movement_gen.go")
	require.NoError(t, err)
	_, err = parser.ParseFile(token.NewFileSet(), "movement_gen.go", src, parser.AllErrors)
	require.NoError(t, err)
	return string(src)
}

func TestPlan(t *testing.T) {
	params := []classify.Parameter{
		{Name: "pos", Kind: classify.ValueComponent, Info: position, Ref: decl.Ref},
		{Name: "vel", Kind: classify.EnabledReadRef, Info: velocity, ReadOnly: true, Enableable: true},
		{Name: "marker", Kind: classify.TagComponent, Info: marker, ReadOnly: true},
		{Name: "path", Kind: classify.Buffer, Info: waypoint},
		{Name: "team", Kind: classify.SharedComponent, Info: team, ReadOnly: true},
		{Name: "xf", Kind: classify.Aspect, Info: transform},
		{Name: "self", Kind: classify.Entity, Info: entity, ReadOnly: true},
		{Name: "i", Kind: classify.PositionalIndex, Info: intType, Index: decl.EntityIndexInQuery},
		{Name: "chunk", Kind: classify.PositionalIndex, Info: intType, Index: decl.ChunkIndexInQuery},
	}
	shape := plan(t, "MoveJob", params, query.Descriptor{UsesEnabledMask: true, SharedFilter: []models.TypeInfo{team}})

	want := []struct{ field, goType, resolve, value string }{
		{"pos", "[]Position", "h.positionHandle.ResolveChunk(r.Chunk)", "h.positionHandle.GetAt(rc.pos, c.Index)"},
		{"vel", "*ecs.EnabledMask", "h.velocityHandle.Enabled().ResolveChunk(r.Chunk)", "h.velocityHandle.Enabled().GetAt(rc.vel, c.Index).ReadOnly()"},
		{"", "", "", ""},
		{"path", "ecs.BufferAccessor[Waypoint]", "h.waypointBuffer.ResolveChunk(r.Chunk)", "h.waypointBuffer.GetAt(rc.path, c.Index)"},
		{"team", "Team", "h.teamShared.ResolveChunk(r.Chunk)", "h.teamShared.GetAt(rc.team, c.Index)"},
		{"xf", "aspects.TransformResolvedChunk", "h.transformAspect.Resolve(r)", "rc.xf.Get(c.Index)"},
		{"self", "[]ecs.Entity", "h.entityHandle.ResolveChunk(r.Chunk)", "h.entityHandle.GetAt(rc.self, c.Index)"},
		{"", "", "", "c.EntityIndexInQuery"},
		{"", "", "", "c.ChunkIndexInQuery"},
	}
	require.Len(t, shape.Slots, len(want))
	for i, w := range want {
		s := shape.Slots[i]
		assert.Equal(t, w.field, s.Field, s.Param.Name)
		assert.Equal(t, w.goType, s.GoType, s.Param.Name)
		assert.Equal(t, w.resolve, s.Resolve, s.Param.Name)
		assert.Equal(t, w.value, s.Value, s.Param.Name)
	}
	require.Len(t, shape.Resolved(), 6)
	require.Equal(t, []Filter{{Param: "teamFilter", GoType: "Team", Field: "teamShared"}}, shape.Filters)
	require.Equal(t, ecs.IterateSparse, shape.Strategy)
	require.Equal(t, "item.Pos, item.Vel, item.Marker, item.Path, item.Team, item.Xf, item.Self, item.I, item.Chunk", shape.Args())

	t.Run("Missing handle", func(t *testing.T) {
		_, err := Plan("MoveJob", params, query.Descriptor{}, handles.NewRegistry())
		require.Error(t, err)
	})
}

func TestExactlyOneIterationPath(t *testing.T) {
	params := []classify.Parameter{
		{Name: "pos", Kind: classify.ReadWriteRef, Info: position},
		{Name: "vel", Kind: classify.ValueComponent, Info: velocity, ReadOnly: true},
	}

	t.Run("Dense", func(t *testing.T) {
		src := render(t, plan(t, "MoveJob", params, query.Descriptor{}))
		require.Contains(t, src, "ecs.IterateDense")
		require.Contains(t, src, "for i := r.Start; i < r.End; i++ {")
		require.Contains(t, src, "if r.UseEnabledMask && !r.Mask.Get(i) {")
		require.NotContains(t, src, "ecs.IterateSparse")
		require.NotContains(t, src, "ForEachInRange")
	})

	t.Run("Sparse", func(t *testing.T) {
		src := render(t, plan(t, "MoveJob", params, query.Descriptor{UsesEnabledMask: true}))
		require.Contains(t, src, "ecs.IterateSparse")
		require.Contains(t, src, "ecs.ForEachInRange(r, func(i int) bool {")
		require.NotContains(t, src, "ecs.IterateDense")
		require.NotContains(t, src, "for i := r.Start")
	})
}

func TestEmit(t *testing.T) {
	params := []classify.Parameter{
		{Name: "pos", Kind: classify.ReadWriteRef, Info: position},
		{Name: "marker", Kind: classify.TagComponent, Info: marker, ReadOnly: true},
		{Name: "i", Kind: classify.PositionalIndex, Info: intType, Index: decl.EntityIndexInChunk},
	}
	src := render(t, plan(t, "MoveJob", params, query.Descriptor{SharedFilter: []models.TypeInfo{team}}))

	file, err := parser.ParseFile(token.NewFileSet(), "", src, 0)
	require.NoError(t, err)
	var decls []string
	for _, d := range file.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			decls = append(decls, d.Name.Name)
		case *ast.GenDecl:
			for _, s := range d.Specs {
				if ts, ok := s.(*ast.TypeSpec); ok {
					decls = append(decls, ts.Name.Name)
				}
			}
		}
	}
	require.Equal(t, []string{
		"MoveJobResolvedChunk", "MoveJobItem", "Resolve", "Get", "itemAt",
		"MoveJobEnumerator", "GetEnumerator", "Query", "executeChunk",
	}, decls)

	require.Contains(t, src, "Pos    ecs.RefRW[Position]")
	require.Contains(t, src, "Pos: h.positionHandle.Refs().GetAt(rc.pos, c.Index),")
	require.Contains(t, src, "func (h *MoveJobTypeHandle) itemAt(rc *MoveJobResolvedChunk, c ecs.Cursor) MoveJobItem {")
	require.Contains(t, src, "return rc.handle.itemAt(rc, ecs.Cursor{Index: index, EntityIndexInChunk: index})")
	require.Contains(t, src, "ecs.NewEnumerator(query, ecs.IterateDense, h.Resolve, h.itemAt)")
	require.Contains(t, src, "I:   c.EntityIndexInChunk,")
	require.NotContains(t, src, "Marker:")
	require.Contains(t, src, "func (h *MoveJobTypeHandle) Query(query ecs.Query, teamFilter Team) MoveJobEnumerator {")
	require.Contains(t, src, "ecs.SharedFilterValue{ID: h.teamShared.ID(), Value: teamFilter},")
	require.Contains(t, src, "job.Execute(item.Pos, item.Marker, item.I)")

	t.Run("No parameters", func(t *testing.T) {
		src := render(t, plan(t, "TickJob", nil, query.Descriptor{}))
		require.Contains(t, src, "job.Execute()")
		require.NotContains(t, src, "item :=")
		require.True(t, strings.Contains(src, "type TickJobItem struct {\n}") || strings.Contains(src, "type TickJobItem struct{}"))
	})
}

package handles

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/ecsgen/internal/codegen/classify"
	"github.com/zeusync/ecsgen/internal/codegen/emit"
	"github.com/zeusync/ecsgen/internal/codegen/query"
	"github.com/zeusync/ecsgen/internal/core/models"
)

var (
	position  = models.TypeInfo{Name: "Position", GoType: "components.Position", Kind: models.KindComponent}
	otherPos  = models.TypeInfo{Name: "OtherPosition", GoType: "legacy.Position", Kind: models.KindComponent}
	waypoint  = models.TypeInfo{Name: "Waypoint", GoType: "Waypoint", Kind: models.KindBufferElement}
	team      = models.TypeInfo{Name: "Team", GoType: "Team", Kind: models.KindShared}
	transform = models.TypeInfo{Name: "Transform", GoType: "aspects.Transform", Kind: models.KindAspect}
	entity    = models.TypeInfo{Name: "Entity", GoType: "ecs.Entity", Kind: models.KindEntity}
)

func TestRegistry(t *testing.T) {
	t.Run("GetOrCreate is idempotent", func(t *testing.T) {
		r := NewRegistry()
		a := r.GetOrCreate(position, Component, true)
		b := r.GetOrCreate(position, Component, true)
		require.Equal(t, "positionHandle", a)
		require.Equal(t, a, b)
		require.Equal(t, 1, r.Len())
	})

	t.Run("Write dominates read", func(t *testing.T) {
		for _, order := range [][2]bool{{true, false}, {false, true}} {
			r := NewRegistry()
			r.GetOrCreate(position, Component, order[0])
			r.GetOrCreate(position, Component, order[1])
			f, ok := r.Lookup("Position", Component)
			require.True(t, ok)
			require.False(t, f.ReadOnly)
		}
	})

	t.Run("Kinds and clashing identifiers get distinct fields", func(t *testing.T) {
		r := NewRegistry()
		require.Equal(t, "positionHandle", r.GetOrCreate(position, Component, false))
		require.Equal(t, "positionHandle2", r.GetOrCreate(otherPos, Component, false))
		require.Equal(t, "waypointBuffer", r.GetOrCreate(waypoint, Buffer, false))
		require.Equal(t, "teamShared", r.GetOrCreate(team, Shared, false))
		require.Equal(t, "transformAspect", r.GetOrCreate(transform, Aspect, true))
		require.Equal(t, "entityHandle", r.GetOrCreate(entity, Entity, false))

		shared, _ := r.Lookup("Team", Shared)
		require.True(t, shared.ReadOnly)
	})

	t.Run("Field spelling", func(t *testing.T) {
		cases := []struct {
			field       Field
			goType, ctr string
		}{
			{Field{Type: position, Kind: Component}, "ecs.ComponentTypeHandle[components.Position]", "ecs.GetComponentTypeHandle[components.Position](state, false)"},
			{Field{Type: waypoint, Kind: Buffer, ReadOnly: true}, "ecs.BufferTypeHandle[Waypoint]", "ecs.GetBufferTypeHandle[Waypoint](state, true)"},
			{Field{Type: team, Kind: Shared}, "ecs.SharedComponentTypeHandle[Team]", "ecs.GetSharedComponentTypeHandle[Team](state)"},
			{Field{Type: entity, Kind: Entity}, "ecs.EntityTypeHandle", "ecs.GetEntityTypeHandle(state)"},
			{Field{Type: transform, Kind: Aspect}, "aspects.TransformTypeHandle", "aspects.NewTransformTypeHandle(state)"},
		}
		for _, c := range cases {
			assert.Equal(t, c.goType, c.field.GoType())
			assert.Equal(t, c.ctr, c.field.Constructor())
		}
	})
}

func TestPlan(t *testing.T) {
	params := []classify.Parameter{
		{Name: "pos", Kind: classify.ValueComponent, Info: position, ReadOnly: true},
		{Name: "posRef", Kind: classify.ReadWriteRef, Info: position},
		{Name: "marker", Kind: classify.TagComponent, Info: models.TypeInfo{Name: "Marker", Kind: models.KindTag}},
		{Name: "path", Kind: classify.Buffer, Info: waypoint, ReadOnly: true},
		{Name: "e", Kind: classify.Entity, Info: entity},
		{Name: "i", Kind: classify.PositionalIndex},
	}
	r := Plan(params, query.Descriptor{SharedFilter: []models.TypeInfo{team}})

	fields := r.Fields()
	require.Len(t, fields, 4)
	require.Equal(t, []string{"positionHandle", "waypointBuffer", "entityHandle", "teamShared"},
		[]string{fields[0].Name, fields[1].Name, fields[2].Name, fields[3].Name})
	require.False(t, fields[0].ReadOnly)

	t.Run("Enableable query types join the access list", func(t *testing.T) {
		velocity := models.TypeInfo{Name: "Velocity", GoType: "Velocity", Kind: models.KindComponent, Enableable: true}
		frozen := models.TypeInfo{Name: "Frozen", GoType: "Frozen", Kind: models.KindTag, Enableable: true}
		stunned := models.TypeInfo{Name: "Stunned", GoType: "Stunned", Kind: models.KindTag, Enableable: true}
		dead := models.TypeInfo{Name: "Dead", GoType: "Dead", Kind: models.KindTag}
		params := []classify.Parameter{
			{Name: "pos", Kind: classify.ReadWriteRef, Info: position},
			{Name: "vel", Kind: classify.ValueComponent, Info: velocity, ReadOnly: true},
		}
		desc := query.Descriptor{
			All:      []query.Query{{Type: position}, {Type: velocity, ReadOnly: true}},
			None:     []query.Query{{Type: frozen, ReadOnly: true}, {Type: dead, ReadOnly: true}},
			Disabled: []query.Query{{Type: stunned, ReadOnly: true}},
		}

		r := Plan(params, desc)
		var names []string
		for _, f := range r.Fields() {
			names = append(names, f.Name)
		}
		require.Equal(t, []string{"positionHandle", "velocityHandle", "frozenHandle", "stunnedHandle"}, names)
		f, ok := r.Lookup("Frozen", Component)
		require.True(t, ok)
		require.True(t, f.ReadOnly)

		src, err := Emit("MoveJob", r)
		require.NoError(t, err)
		require.Contains(t, src.Code, "access = append(access, h.frozenHandle.Type())")
		require.Contains(t, src.Code, "h.stunnedHandle.Update(state)")

		desc.Options = []string{"IgnoreComponentEnabledState"}
		require.Equal(t, 2, Plan(params, desc).Len())
	})

	t.Run("Aspect requirements stay with the aspect handle", func(t *testing.T) {
		velocity := models.TypeInfo{Name: "Velocity", GoType: "Velocity", Kind: models.KindComponent, Enableable: true}
		motion := models.TypeInfo{Name: "Motion", GoType: "Motion", Kind: models.KindAspect, Requires: []models.Requirement{
			{Type: "Position"}, {Type: "Velocity", ReadOnly: true},
		}}
		params := []classify.Parameter{{Name: "m", Kind: classify.Aspect, Info: motion}}
		desc := query.Descriptor{All: []query.Query{{Type: position}, {Type: velocity, ReadOnly: true}}}

		r := Plan(params, desc)
		require.Equal(t, 1, r.Len())
		_, ok := r.Lookup("Motion", Aspect)
		require.True(t, ok)
	})
}

func TestEmit(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate(position, Component, false)
	r.GetOrCreate(waypoint, Buffer, true)
	r.GetOrCreate(transform, Aspect, true)
	r.GetOrCreate(entity, Entity, true)

	f, err := Emit("MoveJob", r)
	require.NoError(t, err)
	require.Contains(t, f.Code, "type MoveJobTypeHandle struct {")
	require.Contains(t, f.Code, "positionHandle ecs.ComponentTypeHandle[components.Position]")
	require.Contains(t, f.Code, "func NewMoveJobTypeHandle(state *ecs.SystemState) MoveJobTypeHandle {")
	require.Contains(t, f.Code, "h.transformAspect.Update(state)")
	require.Contains(t, f.Code, "access = append(access, h.transformAspect.Access()...)")
	require.Contains(t, f.Code, "access = append(access, h.waypointBuffer.Type())")
	require.NotContains(t, f.Code, "h.entityHandle.Type()")

	u := emit.NewUnit("movement")
	u.Add(f)
	src, err := u.Source("movement_gen.go")
	require.NoError(t, err)
	_, err = parser.ParseFile(token.NewFileSet(), "movement_gen.go", src, parser.AllErrors)
	require.NoError(t, err)
}

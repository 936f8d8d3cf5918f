package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/diag"
	"github.com/zeusync/ecsgen/internal/core/models"
)

func universe() *models.Universe {
	return models.NewUniverse(
		models.TypeInfo{Name: "Position", GoType: "components.Position", Kind: models.KindComponent},
		models.TypeInfo{Name: "Velocity", GoType: "components.Velocity", Kind: models.KindComponent, Enableable: true},
		models.TypeInfo{Name: "Frozen", GoType: "components.Frozen", Kind: models.KindTag, Enableable: true},
		models.TypeInfo{Name: "Marker", Kind: models.KindTag},
		models.TypeInfo{Name: "Waypoint", Kind: models.KindBufferElement},
		models.TypeInfo{Name: "Team", Kind: models.KindShared},
		models.TypeInfo{Name: "Renderer", Kind: models.KindManaged},
		models.TypeInfo{Name: "Secret", Kind: models.KindComponent, Access: models.Internal},
		models.TypeInfo{Name: "Transform", GoType: "aspects.Transform", Kind: models.KindAspect, Requires: []models.Requirement{
			{Type: "Position"},
			{Type: "Velocity", ReadOnly: true},
		}},
	)
}

func declaration(params ...decl.Param) decl.Declaration {
	return decl.Declaration{Name: "TestJob", Params: params}
}

func TestEveryKindHasARule(t *testing.T) {
	for k := Kind(0); k < kindCount; k++ {
		require.NotNil(t, rules[k], k.String())
		require.NotEmpty(t, kindNames[k])
	}
}

func TestClassify(t *testing.T) {
	u := universe()

	t.Run("Legal parameters", func(t *testing.T) {
		params, l := Classify(declaration(
			decl.Param{Name: "pos", Type: "Position", Ref: decl.Ref},
			decl.Param{Name: "vel", Type: "Velocity", Ref: decl.In},
			decl.Param{Name: "marker", Type: "Marker"},
			decl.Param{Name: "frozen", Type: "EnabledRefRW[Frozen]"},
			decl.Param{Name: "path", Type: "DynamicBuffer[Waypoint]"},
			decl.Param{Name: "team", Type: "Team"},
			decl.Param{Name: "renderer", Type: "Renderer"},
			decl.Param{Name: "transform", Type: "Transform"},
			decl.Param{Name: "entity", Type: "Entity"},
			decl.Param{Name: "i", Type: "int", Index: decl.EntityIndexInQuery},
			decl.Param{Name: "chunk", Type: "int", Index: decl.ChunkIndexInQuery},
		), u)
		require.Zero(t, l.Len(), l.Err())
		require.Len(t, params, 11)

		want := []struct {
			kind       Kind
			readOnly   bool
			enableable bool
			value      string
		}{
			{ValueComponent, false, false, "*components.Position"},
			{ValueComponent, true, true, "components.Velocity"},
			{TagComponent, true, false, "Marker"},
			{EnabledWriteRef, false, true, "ecs.EnabledRefRW[components.Frozen]"},
			{Buffer, false, false, "ecs.DynamicBuffer[Waypoint]"},
			{SharedComponent, true, false, "Team"},
			{ManagedComponent, false, false, "Renderer"},
			{Aspect, false, false, "aspects.TransformItem"},
			{Entity, true, false, "ecs.Entity"},
			{PositionalIndex, true, false, "int"},
			{PositionalIndex, true, false, "int"},
		}
		for i, w := range want {
			p := params[i]
			assert.Equal(t, w.kind, p.Kind, p.Name)
			assert.Equal(t, w.readOnly, p.ReadOnly, p.Name)
			assert.Equal(t, w.enableable, p.Enableable, p.Name)
			assert.Equal(t, w.value, p.ValueType(), p.Name)
			assert.Equal(t, i, p.Position)
		}
		assert.Equal(t, "Pos", params[0].Field())
	})

	t.Run("Wrappers", func(t *testing.T) {
		params, l := Classify(declaration(
			decl.Param{Name: "a", Type: "RefRO[Position]"},
			decl.Param{Name: "b", Type: "RefRW[Velocity]"},
			decl.Param{Name: "c", Type: "DynamicBuffer[Waypoint]", Ref: decl.In},
		), u)
		require.Zero(t, l.Len())
		require.Equal(t, ReadOnlyRef, params[0].Kind)
		require.True(t, params[0].ReadOnly)
		require.Equal(t, "ecs.RefRO[components.Position]", params[0].ValueType())
		require.Equal(t, ReadWriteRef, params[1].Kind)
		require.True(t, params[1].Enableable)
		require.True(t, params[2].ReadOnly)
	})

	t.Run("Illegal parameters", func(t *testing.T) {
		cases := []struct {
			name  string
			param decl.Param
			code  diag.Code
		}{
			{"ref on wrapper", decl.Param{Name: "p", Type: "RefRW[Position]", Ref: decl.Ref}, diag.RefOnWrapper},
			{"in on wrapper", decl.Param{Name: "p", Type: "RefRO[Position]", Ref: decl.In}, diag.RefOnWrapper},
			{"wrapper over tag", decl.Param{Name: "p", Type: "RefRO[Marker]"}, diag.WrapperNeedsComponent},
			{"wrapper over shared", decl.Param{Name: "p", Type: "RefRW[Team]"}, diag.WrapperNeedsComponent},
			{"tag by ref", decl.Param{Name: "p", Type: "Marker", Ref: decl.Ref}, diag.RefOnTag},
			{"raw buffer element", decl.Param{Name: "p", Type: "Waypoint"}, diag.UnwrappedBufferElement},
			{"buffer of component", decl.Param{Name: "p", Type: "DynamicBuffer[Position]"}, diag.BufferNeedsElement},
			{"buffer by ref", decl.Param{Name: "p", Type: "DynamicBuffer[Waypoint]", Ref: decl.Ref}, diag.RefOnWrapper},
			{"aspect with in", decl.Param{Name: "p", Type: "Transform", Ref: decl.In}, diag.RefOnAspect},
			{"managed by ref", decl.Param{Name: "p", Type: "Renderer", Ref: decl.Ref}, diag.RefOnManaged},
			{"shared by ref", decl.Param{Name: "p", Type: "Team", Ref: decl.Ref}, diag.RefOnShared},
			{"enabled ref on plain", decl.Param{Name: "p", Type: "EnabledRefRO[Position]"}, diag.EnabledRefNeedsEnable},
			{"index on component", decl.Param{Name: "p", Type: "Position", Index: decl.EntityIndexInChunk}, diag.IndexNotInt},
			{"int without role", decl.Param{Name: "p", Type: "int"}, diag.UnknownType},
			{"entity by ref", decl.Param{Name: "p", Type: "Entity", Ref: decl.Ref}, diag.RefOnEntity},
			{"unknown type", decl.Param{Name: "p", Type: "Nope"}, diag.UnknownType},
			{"bad wrapper", decl.Param{Name: "p", Type: "Ptr[Position]"}, diag.UnknownType},
			{"inaccessible", decl.Param{Name: "p", Type: "Secret"}, diag.InaccessibleType},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				params, l := Classify(declaration(c.param), u)
				require.Empty(t, params)
				require.True(t, l.Has(c.code), "%v", l.All())
				require.Equal(t, "p", l.All()[0].Param)
			})
		}
	})

	t.Run("Accessibility follows the containing chain", func(t *testing.T) {
		d := declaration(decl.Param{Name: "p", Type: "Secret"})
		d.Access = models.Public
		d.Containers = []models.Container{{Name: "Systems", Access: models.Internal}}
		_, l := Classify(d, u)
		require.Zero(t, l.Len())
	})

	t.Run("Duplicates", func(t *testing.T) {
		params, l := Classify(declaration(
			decl.Param{Name: "a", Type: "Position"},
			decl.Param{Name: "b", Type: "RefRW[Position]"},
			decl.Param{Name: "i", Type: "int", Index: decl.EntityIndexInChunk},
			decl.Param{Name: "j", Type: "int", Index: decl.EntityIndexInChunk},
			decl.Param{Name: "e1", Type: "Entity"},
			decl.Param{Name: "e2", Type: "Entity"},
		), u)
		require.True(t, l.Has(diag.DuplicateComponent))
		require.True(t, l.Has(diag.DuplicateIndexRole))
		require.Len(t, l.Errors(), 2)
		require.Len(t, params, 4)
	})

	t.Run("All failures are reported together", func(t *testing.T) {
		_, l := Classify(declaration(
			decl.Param{Name: "a", Type: "Marker", Ref: decl.Ref},
			decl.Param{Name: "b", Type: "Team", Ref: decl.Ref},
			decl.Param{Name: "c", Type: "Nope"},
		), u)
		require.Len(t, l.Errors(), 3)
	})
}

func TestCheckStructure(t *testing.T) {
	two, zero := 2, 0

	require.Zero(t, CheckStructure(decl.Declaration{Name: "A"}).Len())

	l := CheckStructure(decl.Declaration{Name: "A", ExecuteCount: &two, TypeParams: []string{"T"}})
	require.True(t, l.Has(diag.MultipleExecute))
	require.True(t, l.Has(diag.GenericDecl))

	require.True(t, CheckStructure(decl.Declaration{Name: "A", ExecuteCount: &zero}).Has(diag.MissingExecute))
}

package generator

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/diag"
	"github.com/zeusync/ecsgen/internal/config"
	"github.com/zeusync/ecsgen/internal/core/events"
	"github.com/zeusync/ecsgen/internal/core/observability/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const feed = `
package: movement
imports: {components: example.com/game/components}
types:
  - {name: Position, go: components.Position, kind: component}
  - {name: Velocity, go: components.Velocity, kind: component, enableable: true}
  - {name: Frozen, go: components.Frozen, kind: tag, enableable: true}
  - {name: Team, kind: shared}
  - {name: Waypoint, kind: buffer}
declarations:
  - name: MoveJob
    params:
      - {name: pos, type: "RefRW[Position]"}
      - {name: vel, type: Velocity, ref: in}
      - {name: i, type: int, index: EntityIndexInQuery}
    with_disabled: [Frozen]
  - name: PatrolJob
    params:
      - {name: path, type: "DynamicBuffer[Waypoint]"}
      - {name: self, type: Entity}
    with_shared_component_filter: [Team]
  - name: BrokenJob
    params:
      - {name: frozen, type: Frozen, ref: ref}
      - {name: ghost, type: Missing}
`

func load(t *testing.T) *decl.File {
	t.Helper()
	f, err := decl.Load(strings.NewReader(feed))
	require.NoError(t, err)
	return f
}

func funcNames(t *testing.T, src []byte) []string {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "movement_gen.go", src, parser.AllErrors)
	require.NoError(t, err)
	var names []string
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			names = append(names, fn.Name.Name)
		}
	}
	return names
}

func TestGenerate(t *testing.T) {
	g := New(config.Default(), log.Nop(), nil)
	res, err := g.Generate(context.Background(), load(t))
	require.NoError(t, err)

	t.Run("Failed site is reported and emits nothing", func(t *testing.T) {
		require.Equal(t, []string{"BrokenJob"}, res.Failed())
		require.ErrorIs(t, res.Err(), ErrSiteFailed)

		broken := res.Sites[2]
		require.Empty(t, broken.Fragments)
		var codes []diag.Code
		for _, d := range broken.Diagnostics {
			codes = append(codes, d.Code)
		}
		require.ElementsMatch(t, []diag.Code{diag.RefOnTag, diag.UnknownType}, codes)

		src := string(res.Source)
		require.NotContains(t, src, "BrokenJob")
		require.True(t, strings.HasPrefix(src, "// Code generated by ecsgen. DO NOT EDIT."))
	})

	t.Run("Source parses and declares every entry point", func(t *testing.T) {
		names := funcNames(t, res.Source)
		for _, want := range []string{
			"NewMoveJobTypeHandle", "MoveJobQueryDesc", "NewMoveJobQuery", "moveJobTypeHandleFor",
			"NewPatrolJobTypeHandle", "PatrolJobQueryDesc", "itemAt",
			"Run", "RunByRef", "Schedule", "ScheduleByRef", "ScheduleParallel", "ScheduleParallelByRef",
		} {
			assert.Contains(t, names, want)
		}
	})

	t.Run("Imports", func(t *testing.T) {
		src := string(res.Source)
		require.Contains(t, src, `"github.com/zeusync/ecsgen/pkg/ecs"`)
		require.Contains(t, src, `"example.com/game/components"`)
		require.Equal(t, []string{"components"}, res.Sites[0].Qualifiers)
		require.Empty(t, res.Sites[1].Qualifiers)
	})

	t.Run("Sparse and dense sites", func(t *testing.T) {
		src := string(res.Source)
		require.Contains(t, src, "ecs.NewEnumerator(query, ecs.IterateSparse, h.Resolve, h.itemAt)")
		require.Contains(t, src, "ecs.NewEnumerator(query, ecs.IterateDense, h.Resolve, h.itemAt)")
		require.Contains(t, src, "func (h *PatrolJobTypeHandle) Query(query ecs.Query, teamFilter Team) PatrolJobEnumerator {")
	})
}

func TestCheck(t *testing.T) {
	res, err := New(nil, nil, nil).Check(context.Background(), load(t))
	require.NoError(t, err)
	require.Nil(t, res.Source)
	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		require.Equal(t, "BrokenJob", d.Site)
	}

	t.Run("Sites keep declaration order", func(t *testing.T) {
		cfg := config.Default()
		cfg.Generator.Parallelism = 8
		cfg.Generator.Cache = false
		res, err := New(cfg, log.Nop(), nil).Check(context.Background(), load(t))
		require.NoError(t, err)
		var names []string
		for _, s := range res.Sites {
			names = append(names, s.Name)
		}
		require.Equal(t, []string{"MoveJob", "PatrolJob", "BrokenJob"}, names)
	})
}

func TestCache(t *testing.T) {
	t.Run("Unchanged sites are served from the cache", func(t *testing.T) {
		b := events.New()
		rec, err := events.Record(b)
		require.NoError(t, err)
		defer rec.Stop()

		g := New(config.Default(), log.Nop(), b)
		first, err := g.Generate(context.Background(), load(t))
		require.NoError(t, err)
		require.Equal(t, 3, g.CacheLen())
		before := len(rec.Reports())

		second, err := g.Generate(context.Background(), load(t))
		require.NoError(t, err)
		require.Equal(t, first.Source, second.Source)
		require.Equal(t, first.Failed(), second.Failed())
		for _, s := range second.Sites {
			require.True(t, s.Cached, s.Name)
		}

		var stages []events.Stage
		for _, r := range rec.Reports()[before:] {
			stages = append(stages, r.Stage)
		}
		require.ElementsMatch(t, []events.Stage{events.StageCached, events.StageCached, events.StageCached, events.StageEmit}, stages)
	})

	t.Run("A changed declaration misses", func(t *testing.T) {
		g := New(config.Default(), log.Nop(), nil)
		f := load(t)
		_, err := g.Generate(context.Background(), f)
		require.NoError(t, err)

		f.Declarations[0].WithDisabled = nil
		res, err := g.Generate(context.Background(), f)
		require.NoError(t, err)
		require.False(t, res.Sites[0].Cached)
		require.True(t, res.Sites[1].Cached)
		require.Equal(t, 4, g.CacheLen())
	})

	t.Run("Disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Generator.Cache = false
		g := New(cfg, log.Nop(), nil)
		_, err := g.Generate(context.Background(), load(t))
		require.NoError(t, err)
		require.Zero(t, g.CacheLen())
	})
}

func TestEvents(t *testing.T) {
	b := events.New()
	rec, err := events.Record(b)
	require.NoError(t, err)
	defer rec.Stop()

	_, err = New(config.Default(), log.Nop(), b).Generate(context.Background(), load(t))
	require.NoError(t, err)

	bySite := make(map[string][]events.Stage)
	for _, r := range rec.Reports() {
		bySite[r.Site] = append(bySite[r.Site], r.Stage)
	}
	require.Equal(t, []events.Stage{
		events.StageClassify, events.StageQuery, events.StageHandles,
		events.StageResolver, events.StageSchedule, events.StageDone,
	}, bySite["MoveJob"])
	require.Equal(t, []events.Stage{events.StageClassify, events.StageQuery, events.StageDone}, bySite["BrokenJob"])
	require.Equal(t, []events.Stage{events.StageEmit}, bySite["movement"])
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	_, err := New(config.Default(), log.FromZap(core), nil).Check(context.Background(), load(t))
	require.NoError(t, err)

	errs := logs.FilterLevelExact(zap.ErrorLevel).All()
	require.Len(t, errs, 2)
	for _, e := range errs {
		require.Equal(t, "BrokenJob", e.ContextMap()["site"])
	}
	require.NotEmpty(t, logs.FilterMessage("stage finished").FilterField(zap.String("site", "MoveJob")).All())
}

func TestOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.Package = "game"
	cfg.Generator.Runtime = "example.com/engine/ecs"

	res, err := New(cfg, log.Nop(), nil).Generate(context.Background(), load(t))
	require.NoError(t, err)
	src := string(res.Source)
	require.Contains(t, src, "\npackage game\n")
	require.Contains(t, src, `"example.com/engine/ecs"`)
	require.Contains(t, src, `ecs.CachedHandle(state, "game.MoveJob", NewMoveJobTypeHandle)`)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(config.Default(), log.Nop(), nil).Generate(ctx, load(t))
	require.ErrorIs(t, err, context.Canceled)
}

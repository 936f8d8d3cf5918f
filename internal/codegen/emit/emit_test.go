package emit

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnexport(t *testing.T) {
	for in, want := range map[string]string{
		"MoveJob": "moveJob",
		"HTTPJob": "httpJob",
		"ID":      "id",
		"A":       "a",
		"already": "already",
	} {
		require.Equal(t, want, Unexport(in), in)
	}
}

func TestUnit(t *testing.T) {
	t.Run("Renders a formatted file", func(t *testing.T) {
		tmpl := Parse("fn", "func {{unexport .}}Count() int {\nreturn {{len .}}\n}\n")
		f, err := Execute(tmpl, "MoveJob", "test", "MoveJob")
		require.NoError(t, err)

		u := NewUnit("movement")
		require.NoError(t, u.Import("ecs", "github.com/zeusync/ecsgen/pkg/ecs"))
		require.NoError(t, u.Import("components", "example.com/game/components"))
		require.NoError(t, u.Import("ecs", "github.com/zeusync/ecsgen/pkg/ecs"))
		u.Add(f, Fragment{Code: "var _ ecs.Entity\nvar _ components.Position\n"})
		require.Equal(t, 2, u.Len())

		src, err := u.Source("movement_gen.go")
		require.NoError(t, err)
		out := string(src)
		require.True(t, strings.HasPrefix(out, Header+"\n"))
		require.Contains(t, out, "func moveJobCount() int {\n\treturn 7\n}")
		require.Less(t, strings.Index(out, "example.com/game/components"), strings.Index(out, "github.com/zeusync/ecsgen/pkg/ecs"))

		_, err = parser.ParseFile(token.NewFileSet(), "movement_gen.go", src, parser.AllErrors)
		require.NoError(t, err)
	})

	t.Run("Import conflict", func(t *testing.T) {
		u := NewUnit("p")
		require.NoError(t, u.Import("c", "a/c"))
		require.ErrorIs(t, u.Import("c", "b/c"), ErrImportConflict)
	})

	t.Run("Broken fragment", func(t *testing.T) {
		u := NewUnit("p")
		u.Add(Fragment{Code: "func {"})
		_, err := u.Source("p_gen.go")
		require.ErrorIs(t, err, ErrFormat)
	})

	t.Run("Template failure names the site", func(t *testing.T) {
		tmpl := Parse("bad", "{{.Missing}}")
		_, err := Execute(tmpl, "MoveJob", "handles", struct{}{})
		require.ErrorContains(t, err, "MoveJob handles")
	})
}

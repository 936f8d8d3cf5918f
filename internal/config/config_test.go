package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/ecsgen/internal/core/observability/log"
	"github.com/zeusync/ecsgen/pkg/ecs"
)

func TestLoad(t *testing.T) {
	t.Run("Empty document keeps defaults", func(t *testing.T) {
		cfg, err := Load(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("Overrides", func(t *testing.T) {
		cfg, err := Load(strings.NewReader(`
log:
  level: debug
generator:
  parallelism: 3
  package: movement
  cache: false
runtime:
  safety_checks: false
  sparse_edge_threshold: 8
`))
		require.NoError(t, err)
		require.Equal(t, log.LevelDebug, cfg.LogLevel())
		require.Equal(t, 3, cfg.Generator.Parallelism)
		require.Equal(t, "movement", cfg.Generator.Package)
		require.Equal(t, DefaultRuntime, cfg.Generator.Runtime)
		require.False(t, cfg.Generator.Cache)
		require.False(t, cfg.Runtime.SafetyChecks)
		require.Equal(t, 8, cfg.Runtime.SparseEdgeThreshold)
	})

	t.Run("Rejected", func(t *testing.T) {
		docs := map[string]string{
			"unknown key":        "generator: {parallel: 2}",
			"bad level":          "log: {level: loud}",
			"negative parallel":  "generator: {parallelism: -1}",
			"package":            "generator: {package: not-ident}",
			"threshold":          "runtime: {sparse_edge_threshold: 129}",
			"empty runtime":      `generator: {runtime: ""}`,
			"negative workers 2": "runtime: {workers: -2}",
		}
		for name, doc := range docs {
			_, err := Load(strings.NewReader(doc))
			require.ErrorIs(t, err, ErrInvalidConfig, name)
		}
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	path := filepath.Join(dir, "ecsgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: nope}\n"), 0o644))
	_, err = LoadFile(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), path)
}

func TestNewSystemState(t *testing.T) {
	prev := ecs.SparseEdgeThreshold
	t.Cleanup(func() { ecs.SparseEdgeThreshold = prev })

	cfg := Default()
	cfg.Runtime.SafetyChecks = false
	cfg.Runtime.SparseEdgeThreshold = 2
	cfg.Runtime.Workers = 3

	s := cfg.NewSystemState("movement", nil, nil, nil)
	require.Equal(t, "movement", s.Name)
	require.NotNil(t, s.Types)
	require.False(t, s.SafetyChecks)
	require.Equal(t, 3, s.Workers)
	require.Equal(t, 2, ecs.SparseEdgeThreshold)
}

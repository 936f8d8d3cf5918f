package injector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/ecsgen/internal/config"
	"github.com/zeusync/ecsgen/internal/core/observability/log"
)

func TestInitializeApp(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		app, err := InitializeApp("", false)
		require.NoError(t, err)
		require.Equal(t, config.Default(), app.Config)
		require.NotNil(t, app.Generator)
		require.NotNil(t, app.Bus)
		require.Equal(t, log.LevelInfo, app.Log.GetLevel())
	})

	t.Run("Config file and verbose", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ecsgen.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log: {level: error}\ngenerator: {parallelism: 2}\n"), 0o644))

		app, err := InitializeApp(ConfigPath(path), false)
		require.NoError(t, err)
		require.Equal(t, 2, app.Config.Generator.Parallelism)
		require.Equal(t, log.LevelError, app.Log.GetLevel())

		app, err = InitializeApp(ConfigPath(path), true)
		require.NoError(t, err)
		require.Equal(t, log.LevelDebug, app.Log.GetLevel())
	})

	t.Run("Invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ecsgen.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log: {level: loud}\n"), 0o644))
		_, err := InitializeApp(ConfigPath(path), false)
		require.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zeusync/ecsgen/internal/core/observability/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "movement.yaml")
	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(watched, []byte("a"), 0o644))

	var (
		mu    sync.Mutex
		calls []string
	)
	action := func(_ context.Context, path string) error {
		mu.Lock()
		calls = append(calls, path)
		mu.Unlock()
		return nil
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(calls)
	}

	w, err := New(log.Nop(), 20*time.Millisecond, action, watched)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Run("Bursts collapse into one action", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, os.WriteFile(watched, []byte{byte('b' + i)}, 0o644))
		}
		require.Eventually(t, func() bool { return count() >= 1 }, 2*time.Second, 10*time.Millisecond)
		time.Sleep(150 * time.Millisecond)
		require.Equal(t, 1, count())

		abs, err := filepath.Abs(watched)
		require.NoError(t, err)
		mu.Lock()
		require.Equal(t, abs, calls[0])
		mu.Unlock()
	})

	t.Run("Unwatched files are ignored", func(t *testing.T) {
		require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
		time.Sleep(150 * time.Millisecond)
		require.Equal(t, 1, count())
	})

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

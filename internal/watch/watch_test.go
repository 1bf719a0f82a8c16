package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDebouncedChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parts: []\n"), 0644))

	w, err := New(path, 50*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Close()
	assert.True(t, filepath.IsAbs(w.Path()))

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls.Add(1)
			return errors.New("handler errors are logged")
		})
	}()

	// A burst of writes runs the action once.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("parts: [1]\n"), 0644))
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	// The loop survives handler errors.
	require.NoError(t, os.WriteFile(path, []byte("parts: [2]\n"), 0644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCloseStopsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	w, err := New(path, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)

	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background(), func(context.Context) error { return nil })
	}()
	require.NoError(t, w.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "scene.yaml"), 0, nil)
	assert.Error(t, err)
}

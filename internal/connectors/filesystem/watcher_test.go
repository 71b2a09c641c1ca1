package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 50 * time.Millisecond

func receiveBatch(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case batch, ok := <-ch:
		require.True(t, ok, "channel closed before a batch arrived")
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change batch")
		return nil
	}
}

func TestWatcher_Watch(t *testing.T) {
	t.Run("reports created files", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWatcher(dir, testDebounce)
		defer w.Close()

		ch, err := w.Watch(context.Background())
		require.NoError(t, err)

		path := filepath.Join(dir, "new-file.txt")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

		assert.Contains(t, receiveBatch(t, ch), path)
	})

	t.Run("coalesces bursts into one batch", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWatcher(dir, 200*time.Millisecond)
		defer w.Close()

		ch, err := w.Watch(context.Background())
		require.NoError(t, err)

		a := filepath.Join(dir, "a.txt")
		b := filepath.Join(dir, "b.txt")
		require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
		require.NoError(t, os.WriteFile(b, []byte("b"), 0644))

		batch := receiveBatch(t, ch)
		assert.Contains(t, batch, a)
		assert.Contains(t, batch, b)
	})

	t.Run("detects modifications and deletions", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "test.txt")
		require.NoError(t, os.WriteFile(path, []byte("initial"), 0644))

		w := NewWatcher(dir, testDebounce)
		defer w.Close()
		ch, err := w.Watch(context.Background())
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("modified"), 0644))
		assert.Contains(t, receiveBatch(t, ch), path)

		require.NoError(t, os.Remove(path))
		assert.Contains(t, receiveBatch(t, ch), path)
	})

	t.Run("watches new sub-directories", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWatcher(dir, testDebounce)
		defer w.Close()
		ch, err := w.Watch(context.Background())
		require.NoError(t, err)

		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0755))
		receiveBatch(t, ch)

		path := filepath.Join(sub, "nested.md")
		require.NoError(t, os.WriteFile(path, []byte("# Nested"), 0644))
		assert.Contains(t, receiveBatch(t, ch), path)
	})

	t.Run("ignores hidden files", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWatcher(dir, testDebounce)
		defer w.Close()
		ch, err := w.Watch(context.Background())
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, ".swap"), []byte("x"), 0644))
		visible := filepath.Join(dir, "visible.txt")
		require.NoError(t, os.WriteFile(visible, []byte("x"), 0644))

		assert.Equal(t, []string{visible}, receiveBatch(t, ch))
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		ch, err := NewWatcher("/non/existent/path", 0).Watch(context.Background())

		assert.Error(t, err)
		assert.Nil(t, ch)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		w := NewWatcher(t.TempDir(), testDebounce)
		defer w.Close()
		ctx, cancel := context.WithCancel(context.Background())

		ch, err := w.Watch(ctx)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("closes channel when watcher is closed", func(t *testing.T) {
		w := NewWatcher(t.TempDir(), testDebounce)
		ch, err := w.Watch(context.Background())
		require.NoError(t, err)

		require.NoError(t, w.Close())

		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after Close")
		}
	})

	t.Run("returns error when watcher is closed", func(t *testing.T) {
		w := NewWatcher(t.TempDir(), 0)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())

		ch, err := w.Watch(context.Background())

		assert.ErrorIs(t, err, ErrWatcherClosed)
		assert.Nil(t, ch)
		assert.Contains(t, err.Error(), "closed")
	})
}

func TestNewWatcher_DefaultDebounce(t *testing.T) {
	assert.Equal(t, DefaultDebounce, NewWatcher("/tmp", 0).debounce)
}

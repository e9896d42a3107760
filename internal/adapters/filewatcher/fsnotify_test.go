package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragstream/internal/domain/ports"
)

func newWatcher(t *testing.T, exts ...string) *FSNotifyWatcher {
	t.Helper()
	w, err := NewFSNotifyWatcher(exts, nil)
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	w := newWatcher(t)
	assert.Len(t, w.extensions, 3)
	assert.True(t, w.isWatchedExtension("REPORT.PDF"))
	assert.False(t, w.isWatchedExtension("image.png"))
}

func TestFSNotifyWatcher_CreateIsCoalesced(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, ".txt")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	select {
	case event := <-events:
		assert.Equal(t, ports.FileCreated, event.Operation)
		assert.Equal(t, path, event.Path)
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}

	select {
	case event := <-events:
		t.Fatalf("unexpected extra event %v for %s", event.Operation, event.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFSNotifyWatcher_Delete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	w := newWatcher(t, ".md")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	select {
	case event := <-events:
		assert.Equal(t, ports.FileDeleted, event.Operation)
	case <-ctx.Done():
		t.Fatal("timeout waiting for delete event")
	}
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, ".txt")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0644)

	select {
	case <-events:
		t.Error("should not receive event for .json")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFSNotifyWatcher_Scan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.md"), 0755))

	paths, err := newWatcher(t, ".md").Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.md")}, paths)
}

func TestMerge(t *testing.T) {
	assert.Equal(t, ports.FileModified, merge(0, ports.FileModified, false))
	assert.Equal(t, ports.FileCreated, merge(ports.FileCreated, ports.FileModified, true))
	assert.Equal(t, ports.FileDeleted, merge(ports.FileCreated, ports.FileDeleted, true))
	assert.Equal(t, ports.FileModified, merge(ports.FileDeleted, ports.FileCreated, true))
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	w, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}

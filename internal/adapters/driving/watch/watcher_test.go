package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/services"
)

func newTestWatcher(t *testing.T) (*Watcher, *services.ContentService, string) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	content := services.NewContentService(memory.NewContentStore(), memory.NewEmbeddingStore())
	w := New(dir, content)
	n := 0
	w.newName = func(ext string) string {
		n++
		return fmt.Sprintf("stored-%d%s", n, ext)
	}
	t.Cleanup(func() { w.Close() })
	return w, content, dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{".hidden", true},
		{".git", true},
		{"file.txt", false},
		{"file.hidden", false},
		{".", false},
		{"..", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHidden(tt.name))
		})
	}
}

func TestWatcher_Scan(t *testing.T) {
	ctx := context.Background()
	w, content, dir := newTestWatcher(t)

	writeFile(t, filepath.Join(dir, "notes.md"), "# Notes")
	writeFile(t, filepath.Join(dir, "sub", "report.PDF"), "%PDF-1.4")
	writeFile(t, filepath.Join(dir, ".secret"), "hidden")
	writeFile(t, filepath.Join(dir, ".cache", "blob.txt"), "hidden dir")
	writeFile(t, filepath.Join(dir, "empty.txt"), "")

	n, err := w.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := content.List(ctx, domain.KindFile)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byName := map[string]domain.ContentItem{}
	for _, item := range items {
		byName[item.File.OriginalName] = item
	}
	md := byName["notes.md"]
	require.NotNil(t, md.File)
	assert.Equal(t, "text/markdown", md.File.MIMEType)
	assert.Equal(t, int64(7), md.File.Size)
	assert.Equal(t, filepath.Join(dir, "notes.md"), md.File.StoragePath)
	assert.Equal(t, domain.StatusPending, md.Status)

	pdf := byName["report.PDF"]
	require.NotNil(t, pdf.File)
	assert.Equal(t, ".pdf", filepath.Ext(pdf.File.Filename))

	t.Run("second scan registers nothing", func(t *testing.T) {
		n, err := w.Scan(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestWatcher_Seed(t *testing.T) {
	ctx := context.Background()
	w, content, dir := newTestWatcher(t)

	path := filepath.Join(dir, "existing.txt")
	writeFile(t, path, "already known")
	_, err := content.CreateFile(ctx, domain.NewFile{
		Filename:     "abc.txt",
		OriginalName: "existing.txt",
		Size:         13,
		MIMEType:     "text/plain",
		StoragePath:  path,
	})
	require.NoError(t, err)

	require.NoError(t, w.Seed(ctx))
	n, err := w.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWatcher_HandleFsEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("create registers file", func(t *testing.T) {
		w, _, dir := newTestWatcher(t)
		path := filepath.Join(dir, "a.txt")
		writeFile(t, path, "hello")

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, OpRegistered, ev.Op)
		assert.Equal(t, domain.KindFile, ev.Ref.Kind)
	})

	t.Run("hidden file ignored", func(t *testing.T) {
		w, _, dir := newTestWatcher(t)
		path := filepath.Join(dir, ".swp")
		writeFile(t, path, "x")

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("chmod ignored", func(t *testing.T) {
		w, _, dir := newTestWatcher(t)
		path := filepath.Join(dir, "a.txt")
		writeFile(t, path, "hello")

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Chmod})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("write to pending item is a no-op", func(t *testing.T) {
		w, _, dir := newTestWatcher(t)
		path := filepath.Join(dir, "a.txt")
		writeFile(t, path, "hello")
		_, err := w.register(ctx, path)
		require.NoError(t, err)

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write | fsnotify.Chmod})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("write to completed item requeues it", func(t *testing.T) {
		w, content, dir := newTestWatcher(t)
		path := filepath.Join(dir, "a.txt")
		writeFile(t, path, "hello")
		created, err := w.register(ctx, path)
		require.NoError(t, err)
		_, err = content.ForceStatus(ctx, created.Ref, domain.StatusCompleted)
		require.NoError(t, err)

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, OpRequeued, ev.Op)

		item, err := content.Get(ctx, created.Ref)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, item.Status)
	})

	t.Run("write to unknown file registers it", func(t *testing.T) {
		w, _, dir := newTestWatcher(t)
		path := filepath.Join(dir, "late.txt")
		writeFile(t, path, "content arrives late")

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, OpRegistered, ev.Op)
	})

	t.Run("remove forgets known file", func(t *testing.T) {
		w, content, dir := newTestWatcher(t)
		path := filepath.Join(dir, "a.txt")
		writeFile(t, path, "hello")
		created, err := w.register(ctx, path)
		require.NoError(t, err)
		require.NoError(t, os.Remove(path))

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Remove})
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, OpRemoved, ev.Op)

		_, err = content.Get(ctx, created.Ref)
		assert.NoError(t, err, "item is kept after the file disappears")
	})

	t.Run("remove of unknown file ignored", func(t *testing.T) {
		w, _, dir := newTestWatcher(t)

		ev, err := w.handleFsEvent(ctx, fsnotify.Event{Name: filepath.Join(dir, "gone.txt"), Op: fsnotify.Remove})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})
}

func TestWatcher_Watch(t *testing.T) {
	t.Run("registers new files", func(t *testing.T) {
		w, _, dir := newTestWatcher(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := w.Watch(ctx)
		require.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			writeFile(t, filepath.Join(dir, "new-file.txt"), "content")
		}()

		select {
		case ev := <-events:
			assert.Equal(t, OpRegistered, ev.Op)
			assert.Contains(t, ev.Path, "new-file.txt")
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for file event")
		}
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		w, _, _ := newTestWatcher(t)
		ctx, cancel := context.WithCancel(context.Background())

		events, err := w.Watch(ctx)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-events:
			if ok {
				for range events {
				}
			}
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		content := services.NewContentService(memory.NewContentStore(), memory.NewEmbeddingStore())
		w := New("/non/existent/path", content)

		events, err := w.Watch(context.Background())
		require.Error(t, err)
		assert.Nil(t, events)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("closed watcher", func(t *testing.T) {
		w, _, _ := newTestWatcher(t)
		require.NoError(t, w.Close())

		events, err := w.Watch(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		assert.Nil(t, events)
	})
}

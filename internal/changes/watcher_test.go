package changes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

// awaitChange waits for a change matching the path, skipping unrelated
// events the platform may emit alongside it.
func awaitChange(t *testing.T, out <-chan domain.FileChange, path string) domain.FileChange {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case change, ok := <-out:
			if !ok {
				t.Fatalf("channel closed before change for %s", path)
			}
			if change.Path == path {
				return change
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change for %s", path)
		}
	}
}

func TestWatcher_ReportsCreate(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, _ := w.Watch(ctx, dir)

	path := filepath.Join(dir, "new.md")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	change := awaitChange(t, out, path)
	assert.Equal(t, domain.ChangeAdded, change.Type)
}

func TestWatcher_ReportsRemove(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.md")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, _ := w.Watch(ctx, dir)

	require.NoError(t, os.Remove(path))

	change := awaitChange(t, out, path)
	assert.Equal(t, domain.ChangeRemoved, change.Type)
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	out, errs := w.Watch(ctx, dir)
	cancel()

	deadline := time.After(5 * time.Second)
	for out != nil || errs != nil {
		select {
		case _, ok := <-out:
			if !ok {
				out = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-deadline:
			t.Fatal("channels not closed after cancellation")
		}
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := newTestWatcher(t)
	ctx := context.Background()

	out, errs := w.Watch(ctx, filepath.Join(t.TempDir(), "absent"))

	err, ok := <-errs
	require.True(t, ok)
	require.Error(t, err)

	_, ok = <-out
	assert.False(t, ok)
}

func TestHandleFsEvent(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	existing := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))

	tests := []struct {
		name         string
		event        fsnotify.Event
		wantRelevant bool
		wantType     domain.ChangeType
	}{
		{
			name:         "create markdown file",
			event:        fsnotify.Event{Name: existing, Op: fsnotify.Create},
			wantRelevant: true,
			wantType:     domain.ChangeAdded,
		},
		{
			name:         "write markdown file",
			event:        fsnotify.Event{Name: existing, Op: fsnotify.Write},
			wantRelevant: true,
			wantType:     domain.ChangeModified,
		},
		{
			name:         "remove markdown file",
			event:        fsnotify.Event{Name: filepath.Join(dir, "gone.md"), Op: fsnotify.Remove},
			wantRelevant: true,
			wantType:     domain.ChangeRemoved,
		},
		{
			name:         "rename markdown file",
			event:        fsnotify.Event{Name: filepath.Join(dir, "gone.md"), Op: fsnotify.Rename},
			wantRelevant: true,
			wantType:     domain.ChangeRemoved,
		},
		{
			name:         "chmod is ignored",
			event:        fsnotify.Event{Name: existing, Op: fsnotify.Chmod},
			wantRelevant: false,
		},
		{
			name:         "non-markdown file is ignored",
			event:        fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write},
			wantRelevant: false,
		},
		{
			name:         "hidden file is ignored",
			event:        fsnotify.Event{Name: filepath.Join(dir, ".hidden.md"), Op: fsnotify.Write},
			wantRelevant: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, relevant := w.handleFsEvent(tt.event)
			assert.Equal(t, tt.wantRelevant, relevant)
			if tt.wantRelevant {
				assert.Equal(t, tt.wantType, change.Type)
				assert.Equal(t, tt.event.Name, change.Path)
			}
		})
	}
}

func TestIsHidden(t *testing.T) {
	assert.True(t, isHidden(filepath.Join("docs", ".git", "config.md")))
	assert.True(t, isHidden(".hidden.md"))
	assert.False(t, isHidden(filepath.Join("docs", "a.md")))
	assert.False(t, isHidden(filepath.Join("..", "docs", "a.md")))
}

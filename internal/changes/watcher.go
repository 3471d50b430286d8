package changes

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
)

var _ driven.ChangeWatcher = (*Watcher)(nil)

// Watcher streams markdown file changes under a directory tree using
// operating system notifications.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// NewWatcher creates a filesystem watcher.
func NewWatcher() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{fsw: fsw}, nil
}

// Watch emits changes to markdown files under dir until ctx is
// cancelled. New subdirectories are picked up as they appear. Both
// channels are closed when watching stops; the error channel carries
// at most one terminal error.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan domain.FileChange, <-chan error) {
	out := make(chan domain.FileChange, 16)
	errs := make(chan error, 1)

	if err := w.addRecursive(dir); err != nil {
		errs <- err
		close(out)
		close(errs)
		return out, errs
	}

	go func() {
		defer close(out)
		defer close(errs)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				change, relevant := w.handleFsEvent(event)
				if !relevant {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}

			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				errs <- fmt.Errorf("watching %s: %w", dir, err)
				return
			}
		}
	}()

	return out, errs
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// addRecursive watches dir and every subdirectory beneath it, skipping
// hidden directories.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// handleFsEvent converts a notification into a file change, reporting
// whether the event is relevant. Directory creations extend the watch
// instead of producing a change.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (domain.FileChange, bool) {
	path := event.Name
	if isHidden(path) {
		return domain.FileChange{}, false
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return domain.FileChange{}, false
		}
		if info.IsDir() {
			// Ignore the error; a directory removed again before the
			// watch lands produces no further events anyway.
			_ = w.addRecursive(path)
			return domain.FileChange{}, false
		}
		if !isMarkdown(path) {
			return domain.FileChange{}, false
		}
		return domain.FileChange{Path: path, Type: domain.ChangeAdded}, true

	case event.Op.Has(fsnotify.Write):
		if !isMarkdown(path) {
			return domain.FileChange{}, false
		}
		return domain.FileChange{Path: path, Type: domain.ChangeModified}, true

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if !isMarkdown(path) {
			return domain.FileChange{}, false
		}
		return domain.FileChange{Path: path, Type: domain.ChangeRemoved}, true
	}

	return domain.FileChange{}, false
}

// isMarkdown reports whether the path names a markdown file.
func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// isHidden reports whether any element of the path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}

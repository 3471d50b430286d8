// Package changes detects file changes between ingestion runs and
// streams live change events for continuous ingestion.
package changes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
)

var _ driven.ChangeDetector = (*Detector)(nil)

// defaultPattern selects the files tracked by the detector.
const defaultPattern = "**/*.md"

// fileState is the recorded fingerprint of one file.
type fileState struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Detector compares a directory tree against a snapshot persisted from
// the previous run. A file counts as modified when its size or
// modification time differs.
type Detector struct {
	snapshotPath string
	pattern      string

	mu   sync.Mutex
	snap map[string]fileState
}

// DetectorOption configures the detector.
type DetectorOption func(*Detector)

// WithPattern overrides the glob selecting tracked files.
func WithPattern(pattern string) DetectorOption {
	return func(d *Detector) {
		if pattern != "" {
			d.pattern = pattern
		}
	}
}

// NewDetector creates a detector persisting its snapshot to the given
// file path.
func NewDetector(snapshotPath string, opts ...DetectorOption) (*Detector, error) {
	if snapshotPath == "" {
		return nil, fmt.Errorf("changes: snapshot path is required")
	}
	d := &Detector{
		snapshotPath: snapshotPath,
		pattern:      defaultPattern,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect compares dir against the stored snapshot and returns the
// changes sorted by path. The snapshot itself is left untouched.
func (d *Detector) Detect(ctx context.Context, dir string) ([]domain.FileChange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.load(); err != nil {
		return nil, err
	}

	current, err := d.scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	var out []domain.FileChange
	for path, state := range current {
		prev, seen := d.snap[path]
		switch {
		case !seen:
			out = append(out, domain.FileChange{Path: path, Type: domain.ChangeAdded})
		case prev.Size != state.Size || !prev.ModTime.Equal(state.ModTime):
			out = append(out, domain.FileChange{Path: path, Type: domain.ChangeModified})
		}
	}

	prefix := dir + string(filepath.Separator)
	for path := range d.snap {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if _, exists := current[path]; !exists {
			out = append(out, domain.FileChange{Path: path, Type: domain.ChangeRemoved})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Commit records the current state of the given paths into the
// snapshot and persists it. Paths that no longer exist are dropped
// from the snapshot.
func (d *Detector) Commit(_ context.Context, paths []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.load(); err != nil {
		return err
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			delete(d.snap, path)
			continue
		}
		if err != nil {
			return fmt.Errorf("stating %s: %w", path, err)
		}
		d.snap[path] = fileState{Size: info.Size(), ModTime: info.ModTime()}
	}

	return d.save()
}

// scan fingerprints every tracked file under dir, keyed by absolute path.
func (d *Detector) scan(ctx context.Context, dir string) (map[string]fileState, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), d.pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", dir, err)
	}

	current := make(map[string]fileState, len(matches))
	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stating %s: %w", path, err)
		}
		current[path] = fileState{Size: info.Size(), ModTime: info.ModTime()}
	}
	return current, nil
}

// load reads the snapshot file once; a missing file yields an empty
// snapshot.
func (d *Detector) load() error {
	if d.snap != nil {
		return nil
	}

	data, err := os.ReadFile(d.snapshotPath)
	if os.IsNotExist(err) {
		d.snap = make(map[string]fileState)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var snap map[string]fileState
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing snapshot %s: %w", d.snapshotPath, err)
	}
	if snap == nil {
		snap = make(map[string]fileState)
	}
	d.snap = snap
	return nil
}

// save persists the snapshot atomically (caller must hold the lock).
func (d *Detector) save() error {
	data, err := json.MarshalIndent(d.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	dir := filepath.Dir(d.snapshotPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, d.snapshotPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

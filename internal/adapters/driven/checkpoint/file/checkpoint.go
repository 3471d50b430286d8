// Package file provides a JSON file backed checkpoint store.
//
// The on-disk format maps version strings to the list of ingested file
// paths, e.g. {"16.0": ["content/a.md", "content/b.md"]}. Saves go
// through a temp file and rename so a crash mid-write never leaves a
// truncated checkpoint behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
)

var _ driven.CheckpointStore = (*Store)(nil)

// Store persists ingestion checkpoints to a JSON file.
type Store struct {
	path string
}

// DefaultPath returns the default checkpoint location,
// ~/.docvec/data/checkpoint.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".docvec", "data", "checkpoint.json"), nil
}

// NewStore creates a checkpoint store writing to the given file path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint: path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint file. A missing file yields an empty
// checkpoint, a malformed one is an error.
func (s *Store) Load(_ context.Context) (domain.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", s.path, err)
	}

	cp := domain.NewCheckpoint()
	for version, files := range raw {
		for _, f := range files {
			cp.MarkDone(version, f)
		}
	}
	return cp, nil
}

// Save rewrites the checkpoint file atomically.
func (s *Store) Save(_ context.Context, cp domain.Checkpoint) error {
	raw := make(map[string][]string, len(cp))
	for version := range cp {
		files := cp.Files(version)
		sort.Strings(files)
		raw[version] = files
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

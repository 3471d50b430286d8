package driven

import (
	"context"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

// ChangeDetector classifies files as added, modified or removed since
// the previous run, narrowing the pipeline worklist in incremental mode.
type ChangeDetector interface {
	// Detect compares the directory against the stored snapshot and
	// returns the changes in path order. Detect never updates the
	// snapshot; only Commit does.
	Detect(ctx context.Context, dir string) ([]domain.FileChange, error)

	// Commit records the current state of the given paths into the
	// snapshot, dropping entries for paths that no longer exist.
	// Called by the pipeline after a file is committed so failed files
	// are re-detected on the next run.
	Commit(ctx context.Context, paths []string) error
}

// ChangeWatcher streams change events as they happen. Used by the
// watch command for continuous incremental ingestion.
type ChangeWatcher interface {
	// Watch emits changes under dir until ctx is cancelled. The error
	// channel receives at most one terminal error; both channels are
	// closed when watching stops.
	Watch(ctx context.Context, dir string) (<-chan domain.FileChange, <-chan error)

	// Close releases resources.
	Close() error
}

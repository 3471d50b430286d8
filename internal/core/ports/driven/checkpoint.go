package driven

import (
	"context"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

// CheckpointStore persists ingestion progress between runs.
type CheckpointStore interface {
	// Load reads the stored checkpoint. A missing checkpoint is not an
	// error and yields an empty checkpoint.
	Load(ctx context.Context) (domain.Checkpoint, error)

	// Save rewrites the checkpoint in full. Called after every
	// committed file; the write must be atomic so a crash never leaves
	// a truncated checkpoint behind.
	Save(ctx context.Context, cp domain.Checkpoint) error
}

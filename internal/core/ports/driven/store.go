package driven

import (
	"context"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

// OpResult reports how much of a batch operation took effect.
// Attempted == Succeeded means full success; the store still returns a
// non-nil error when any part of the batch failed.
type OpResult struct {
	// Attempted is the number of records the operation covered.
	Attempted int

	// Succeeded is the number of records durably applied.
	Succeeded int
}

// PassageStore persists passages and supports the delete-then-insert
// update cycle plus similarity search.
type PassageStore interface {
	// Insert stores the given passages. Records are written
	// individually; the result reports partial success counts.
	Insert(ctx context.Context, passages []domain.Passage) (OpResult, error)

	// FindByFile returns references to all stored passages whose
	// metadata matches the source filename and version string.
	FindByFile(ctx context.Context, filename, versionStr string) ([]domain.PassageRef, error)

	// DeleteByIDs removes the identified passages in one batch.
	DeleteByIDs(ctx context.Context, ids []string) (OpResult, error)

	// Search returns up to limit passages of the given version ordered
	// by similarity to the query vector, descending.
	Search(ctx context.Context, query []float32, version, limit int) ([]domain.ScoredPassage, error)

	// Close releases resources.
	Close() error
}

// Package memory provides an in-memory passage store used by tests
// and dry runs.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.PassageStore = (*Store)(nil)

// Store is an in-memory implementation of driven.PassageStore.
type Store struct {
	mu       sync.RWMutex
	passages map[string]domain.Passage
}

// NewStore creates a new in-memory passage store.
func NewStore() *Store {
	return &Store{passages: make(map[string]domain.Passage)}
}

// Insert stores the given passages. A passage occupying the same
// (locator, sequence_index, version) slot replaces the stored one,
// matching the durable store's conflict handling.
func (s *Store) Insert(_ context.Context, passages []domain.Passage) (driven.OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := driven.OpResult{Attempted: len(passages)}
	for _, passage := range passages {
		for id, existing := range s.passages {
			if existing.Locator == passage.Locator &&
				existing.SequenceIndex == passage.SequenceIndex &&
				existing.Version == passage.Version {
				delete(s.passages, id)
				break
			}
		}
		s.passages[passage.ID] = passage
		result.Succeeded++
	}
	return result, nil
}

// FindByFile returns references to passages matching the source
// filename and version string.
func (s *Store) FindByFile(_ context.Context, filename, versionStr string) ([]domain.PassageRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []domain.PassageRef
	for _, passage := range s.passages {
		if passage.Metadata.Filename == filename && passage.Metadata.VersionString == versionStr {
			refs = append(refs, domain.PassageRef{
				ID:            passage.ID,
				Locator:       passage.Locator,
				SequenceIndex: passage.SequenceIndex,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// DeleteByIDs removes the identified passages.
func (s *Store) DeleteByIDs(_ context.Context, ids []string) (driven.OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := driven.OpResult{Attempted: len(ids)}
	for _, id := range ids {
		if _, ok := s.passages[id]; ok {
			delete(s.passages, id)
			result.Succeeded++
		}
	}
	return result, nil
}

// Search returns up to limit passages of the version ordered by cosine
// similarity to the query vector, descending.
func (s *Store) Search(_ context.Context, query []float32, version, limit int) ([]domain.ScoredPassage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []domain.ScoredPassage
	for _, passage := range s.passages {
		if passage.Version != version {
			continue
		}
		results = append(results, domain.ScoredPassage{
			Passage: passage,
			Score:   cosineSimilarity(query, passage.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored passages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

// All returns a copy of every stored passage in unspecified order.
func (s *Store) All() []domain.Passage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Passage, 0, len(s.passages))
	for _, passage := range s.passages {
		out = append(out, passage)
	}
	return out
}

// cosineSimilarity computes the cosine of the angle between two
// vectors; zero when either vector has no magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package services

import (
	"context"
	"fmt"

	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
	"github.com/archipel-labs/docvec/internal/logger"
)

// DefaultSearchLimit is the number of passages returned when the
// caller does not specify a limit.
const DefaultSearchLimit = 5

// SearchService answers version-scoped similarity queries over the
// passage store. It is the retrieval half used by the QA front end.
type SearchService struct {
	store    driven.PassageStore
	embedder driven.EmbeddingService
}

// NewSearchService creates a search service.
func NewSearchService(store driven.PassageStore, embedder driven.EmbeddingService) (*SearchService, error) {
	if store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	return &SearchService{store: store, embedder: embedder}, nil
}

// Query embeds the query text and returns the most similar passages of
// the given release, best match first.
func (s *SearchService) Query(ctx context.Context, text string, version, limit int) ([]domain.ScoredPassage, error) {
	if text == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vector, version, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Debug("Query matched %d passages (version %d)", len(results), version)
	return results, nil
}

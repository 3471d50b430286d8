package cli

import (
	"fmt"
	"path/filepath"

	checkpointfile "github.com/archipel-labs/docvec/internal/adapters/driven/checkpoint/file"
	embeddingopenai "github.com/archipel-labs/docvec/internal/adapters/driven/embedding/openai"
	llmopenai "github.com/archipel-labs/docvec/internal/adapters/driven/llm/openai"
	"github.com/archipel-labs/docvec/internal/adapters/driven/storage/sqlite"
	"github.com/archipel-labs/docvec/internal/chunker"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
	"github.com/archipel-labs/docvec/internal/core/services"
	"github.com/archipel-labs/docvec/internal/locator"
)

// openStore returns the injected store or opens the SQLite store from
// configuration. The returned closer is a no-op for injected stores so
// tests keep ownership of their fakes.
func openStore() (driven.PassageStore, func(), error) {
	if passageStore != nil {
		return passageStore, func() {}, nil
	}
	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening passage store: %w", err)
	}
	return store, func() { store.Close() }, nil
}

// newEmbedder returns the injected embedder or builds one from
// configuration.
func newEmbedder() (driven.EmbeddingService, error) {
	if embedder != nil {
		return embedder, nil
	}
	svc, err := embeddingopenai.NewEmbeddingService(embeddingopenai.Config{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Degraded:          cfg.Embedding.Degraded,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding service: %w", err)
	}
	return svc, nil
}

// newSummariser returns the injected summariser, a configured one, or
// nil when summaries are disabled.
func newSummariser() (driven.SummaryService, error) {
	if summariser != nil {
		return summariser, nil
	}
	if !cfg.Summary.Enabled {
		return nil, nil
	}
	svc, err := llmopenai.NewSummaryService(llmopenai.Config{
		APIKey:  cfg.Summary.APIKey,
		BaseURL: cfg.Summary.BaseURL,
		Model:   cfg.Summary.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating summary service: %w", err)
	}
	return svc, nil
}

// checkpointPath resolves the checkpoint file location, defaulting to
// a sibling of the SQLite database.
func checkpointPath() string {
	if cfg.Storage.CheckpointPath != "" {
		return cfg.Storage.CheckpointPath
	}
	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		return "" // resolved against the home directory below
	}
	return filepath.Join(dataDir, "checkpoint.json")
}

// newCheckpoints builds the checkpoint store from configuration.
func newCheckpoints() (driven.CheckpointStore, error) {
	path := checkpointPath()
	if path == "" {
		var err error
		path, err = checkpointfile.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cps, err := checkpointfile.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint store: %w", err)
	}
	return cps, nil
}

// newPipeline assembles the ingestion pipeline from configuration plus
// any command-specific options.
func newPipeline(store driven.PassageStore, emb driven.EmbeddingService, extra ...services.PipelineOption) (*services.IngestionPipeline, error) {
	sum, err := newSummariser()
	if err != nil {
		return nil, err
	}
	cps, err := newCheckpoints()
	if err != nil {
		return nil, err
	}
	chk, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.ChunkSize),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return nil, err
	}

	opts := []services.PipelineOption{
		services.WithMode(cfg.Ingest.PipelineMode()),
		services.WithFailurePolicy(cfg.Ingest.PipelinePolicy()),
		services.WithMaxRetries(cfg.Ingest.MaxRetries),
		services.WithRetryDelay(cfg.Ingest.RetryDelay()),
		services.WithFanOut(cfg.Ingest.FanOut),
		services.WithFilePattern(cfg.Ingest.FilePattern),
		services.WithExcludePatterns(cfg.Ingest.Exclude),
	}
	opts = append(opts, extra...)

	return services.NewIngestionPipeline(
		store, emb, sum, cps,
		locator.NewResolver(cfg.Locator.BaseURL), chk,
		opts...,
	)
}

package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/archipel-labs/docvec/internal/chunker"
	"github.com/archipel-labs/docvec/internal/core/services"
	"github.com/archipel-labs/docvec/internal/locator"
)

// Config is the full application configuration, loaded from TOML.
type Config struct {
	Chunking  ChunkingConfig  `toml:"chunking"`
	Locator   LocatorConfig   `toml:"locator"`
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Summary   SummaryConfig   `toml:"summary"`
	Ingest    IngestConfig    `toml:"ingest"`
	Search    SearchConfig    `toml:"search"`
}

// ChunkingConfig controls how markdown files are split.
type ChunkingConfig struct {
	// ChunkSize is the maximum passage size in characters.
	ChunkSize int `toml:"chunk_size"`

	// Overlap is the number of characters shared between consecutive
	// oversized-block pieces. Must be smaller than ChunkSize.
	Overlap int `toml:"overlap"`
}

// LocatorConfig controls URL resolution.
type LocatorConfig struct {
	// BaseURL is the documentation site root.
	BaseURL string `toml:"base_url"`
}

// StorageConfig controls where state lives on disk.
type StorageConfig struct {
	// DataDir holds the SQLite database. Empty means ~/.docvec/data.
	DataDir string `toml:"data_dir"`

	// CheckpointPath is the ingestion progress file.
	CheckpointPath string `toml:"checkpoint_path"`
}

// EmbeddingConfig controls the embedding service.
type EmbeddingConfig struct {
	// APIKey authenticates against the API. The OPENAI_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the API endpoint, e.g. for a proxy.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// Dimensions overrides the vector size for models that support it.
	Dimensions int `toml:"dimensions"`

	// RequestsPerSecond throttles embedding calls. Zero means no limit.
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// Degraded substitutes a zero vector when embedding fails instead
	// of failing the passage.
	Degraded bool `toml:"degraded"`
}

// SummaryConfig controls passage summary generation.
type SummaryConfig struct {
	// Enabled toggles summary generation. When off, passages carry the
	// placeholder summary.
	Enabled bool `toml:"enabled"`

	// APIKey authenticates against the API. Falls back to the
	// embedding key, then OPENAI_API_KEY.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the API endpoint.
	BaseURL string `toml:"base_url"`

	// Model is the chat model used for summaries.
	Model string `toml:"model"`
}

// IngestConfig controls pipeline behaviour.
type IngestConfig struct {
	// Mode is "insert" or "update".
	Mode string `toml:"mode"`

	// FailurePolicy is "fail-fast" or "best-effort".
	FailurePolicy string `toml:"failure_policy"`

	// MaxRetries bounds per-passage insert attempts.
	MaxRetries int `toml:"max_retries"`

	// RetryDelayMS is the linear backoff base in milliseconds.
	RetryDelayMS int `toml:"retry_delay_ms"`

	// FanOut bounds concurrent passage assembly in insert mode.
	// Zero or one means sequential.
	FanOut int `toml:"fan_out"`

	// FilePattern selects source files relative to each version's
	// content root.
	FilePattern string `toml:"file_pattern"`

	// Exclude lists glob patterns of files to skip.
	Exclude []string `toml:"exclude"`
}

// SearchConfig controls the search command.
type SearchConfig struct {
	// Limit is the maximum number of results returned.
	Limit int `toml:"limit"`
}

// DefaultPath returns the default config file location,
// ~/.docvec/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".docvec", "config.toml"), nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			ChunkSize: chunker.DefaultChunkSize,
			Overlap:   chunker.DefaultOverlap,
		},
		Locator: LocatorConfig{
			BaseURL: locator.DefaultBaseURL,
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Summary: SummaryConfig{
			Model: "gpt-4o-mini",
		},
		Ingest: IngestConfig{
			Mode:          "insert",
			FailurePolicy: "fail-fast",
			MaxRetries:    services.DefaultMaxRetries,
			RetryDelayMS:  int(services.DefaultRetryDelay / time.Millisecond),
			FilePattern:   services.DefaultFilePattern,
		},
		Search: SearchConfig{
			Limit: services.DefaultSearchLimit,
		},
	}
}

// Load reads the config file at path, applying defaults for missing
// values and environment overrides for secrets. A missing file is not
// an error and yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if cfg.Summary.APIKey == "" {
		cfg.Summary.APIKey = cfg.Embedding.APIKey
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("config: overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("config: overlap (%d) must be smaller than chunk_size (%d)",
			c.Chunking.Overlap, c.Chunking.ChunkSize)
	}

	switch c.Ingest.Mode {
	case "insert", "update":
	default:
		return fmt.Errorf("config: mode must be %q or %q, got %q", "insert", "update", c.Ingest.Mode)
	}

	switch c.Ingest.FailurePolicy {
	case "fail-fast", "best-effort":
	default:
		return fmt.Errorf("config: failure_policy must be %q or %q, got %q",
			"fail-fast", "best-effort", c.Ingest.FailurePolicy)
	}

	if c.Ingest.MaxRetries < 1 {
		return fmt.Errorf("config: max_retries must be at least 1, got %d", c.Ingest.MaxRetries)
	}
	if c.Ingest.FanOut < 0 {
		return fmt.Errorf("config: fan_out must not be negative, got %d", c.Ingest.FanOut)
	}
	if c.Search.Limit < 1 {
		return fmt.Errorf("config: search limit must be at least 1, got %d", c.Search.Limit)
	}

	return nil
}

// PipelineMode converts the configured mode string to the pipeline type.
func (c IngestConfig) PipelineMode() services.Mode {
	if c.Mode == "update" {
		return services.ModeUpdate
	}
	return services.ModeInsert
}

// PipelinePolicy converts the configured policy string to the
// pipeline type.
func (c IngestConfig) PipelinePolicy() services.FailurePolicy {
	if c.FailurePolicy == "best-effort" {
		return services.BestEffort
	}
	return services.FailFast
}

// RetryDelay returns the backoff base as a duration.
func (c IngestConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/archipel-labs/docvec/internal/chunker"
	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
	"github.com/archipel-labs/docvec/internal/locator"
	"github.com/archipel-labs/docvec/internal/logger"
)

// Mode selects how the pipeline treats files that may already have
// stored passages.
type Mode int

const (
	// ModeInsert inserts passages without looking for existing ones.
	// Files already present in the checkpoint are skipped.
	ModeInsert Mode = iota

	// ModeUpdate replaces a file's stored passages wholesale: find by
	// filename and version, delete in one batch, settle, re-insert.
	// Checkpointed files are reprocessed regardless.
	ModeUpdate
)

// FailurePolicy selects what happens after a file exhausts its retries.
type FailurePolicy int

const (
	// FailFast aborts the whole run on the first failed file.
	FailFast FailurePolicy = iota

	// BestEffort logs the failure and continues with the next file,
	// trading completeness for throughput.
	BestEffort
)

// Pipeline defaults.
const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = time.Second
	DefaultSettleDelay = time.Second
	DefaultFilePattern = "**/*.md"
)

// versionDirRe matches release directory names under <base>/versions.
var versionDirRe = regexp.MustCompile(`^\d+\.\d+$`)

// IngestionPipeline orchestrates per-version directory traversal,
// per-file chunk processing, retries and checkpointing.
type IngestionPipeline struct {
	store       driven.PassageStore
	embedder    driven.EmbeddingService
	summariser  driven.SummaryService
	checkpoints driven.CheckpointStore
	resolver    *locator.Resolver
	chunker     *chunker.Chunker

	mode        Mode
	policy      FailurePolicy
	maxRetries  int
	retryDelay  time.Duration
	settleDelay time.Duration
	fanOut      int
	pattern     string
	excludes    []string
	onFile      func(path string)
	onCommit    func(path string)

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// PipelineOption configures the pipeline.
type PipelineOption func(*IngestionPipeline)

// WithMode selects insert-only or update processing.
func WithMode(mode Mode) PipelineOption {
	return func(p *IngestionPipeline) { p.mode = mode }
}

// WithFailurePolicy selects fail-fast or best-effort behaviour for
// failed files.
func WithFailurePolicy(policy FailurePolicy) PipelineOption {
	return func(p *IngestionPipeline) { p.policy = policy }
}

// WithMaxRetries sets the attempts per passage in insert mode.
func WithMaxRetries(n int) PipelineOption {
	return func(p *IngestionPipeline) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base backoff delay; attempt n waits n times
// this value.
func WithRetryDelay(d time.Duration) PipelineOption {
	return func(p *IngestionPipeline) {
		if d > 0 {
			p.retryDelay = d
		}
	}
}

// WithSettleDelay sets the wait between batch delete and re-insert in
// update mode, accommodating eventually consistent deletes.
func WithSettleDelay(d time.Duration) PipelineOption {
	return func(p *IngestionPipeline) {
		if d >= 0 {
			p.settleDelay = d
		}
	}
}

// WithFanOut bounds the number of passages of one file processed
// concurrently in insert mode. Values below 2 keep processing
// sequential. Update mode is always sequential.
func WithFanOut(n int) PipelineOption {
	return func(p *IngestionPipeline) {
		if n > 0 {
			p.fanOut = n
		}
	}
}

// WithFilePattern sets the doublestar glob for source files.
func WithFilePattern(pattern string) PipelineOption {
	return func(p *IngestionPipeline) {
		if pattern != "" {
			p.pattern = pattern
		}
	}
}

// WithExcludePatterns sets doublestar globs for files to skip.
func WithExcludePatterns(patterns []string) PipelineOption {
	return func(p *IngestionPipeline) { p.excludes = patterns }
}

// WithOnFile registers a hook invoked before each file is processed.
// Used by the CLI for progress reporting.
func WithOnFile(fn func(path string)) PipelineOption {
	return func(p *IngestionPipeline) { p.onFile = fn }
}

// WithOnCommit registers a hook invoked after a file's work has been
// durably checkpointed. Incremental ingestion uses it to advance its
// snapshot only for files that actually committed.
func WithOnCommit(fn func(path string)) PipelineOption {
	return func(p *IngestionPipeline) { p.onCommit = fn }
}

// NewIngestionPipeline creates a pipeline. The store, embedder and
// checkpoint store are required; the summariser may be nil, in which
// case passages carry the summary placeholder.
func NewIngestionPipeline(
	store driven.PassageStore,
	embedder driven.EmbeddingService,
	summariser driven.SummaryService,
	checkpoints driven.CheckpointStore,
	resolver *locator.Resolver,
	chk *chunker.Chunker,
	opts ...PipelineOption,
) (*IngestionPipeline, error) {
	if store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store: %w", domain.ErrInvalidInput)
	}
	if resolver == nil {
		resolver = locator.NewResolver("")
	}
	if chk == nil {
		var err error
		chk, err = chunker.New()
		if err != nil {
			return nil, err
		}
	}

	p := &IngestionPipeline{
		store:       store,
		embedder:    embedder,
		summariser:  summariser,
		checkpoints: checkpoints,
		resolver:    resolver,
		chunker:     chk,
		mode:        ModeInsert,
		policy:      FailFast,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		settleDelay: DefaultSettleDelay,
		fanOut:      1,
		pattern:     DefaultFilePattern,
		sleep:       sleepCtx,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// IngestDirectory walks every release directory under <base>/versions
// and processes its files. The checkpoint is loaded once at start,
// updated after each committed file and never advanced for a failed
// file, so an interrupted run resumes at the in-flight file.
func (p *IngestionPipeline) IngestDirectory(ctx context.Context, base string) error {
	cp, err := p.checkpoints.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	versions, err := DiscoverVersions(base)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		logger.Warn("No version directories under %s", filepath.Join(base, "versions"))
		return nil
	}

	for _, versionStr := range versions {
		versionPath := filepath.Join(base, "versions", versionStr)
		files, err := p.listFiles(versionPath)
		if err != nil {
			return fmt.Errorf("scan %s: %w", versionPath, err)
		}

		logger.Info("Processing version %s: %d files", versionStr, len(files))

		for _, file := range files {
			if p.mode == ModeInsert && cp.Done(versionStr, file) {
				logger.Debug("Skipping already processed file: %s", file)
				continue
			}

			if p.onFile != nil {
				p.onFile(file)
			}

			if err := p.processFile(ctx, file, versionStr); err != nil {
				ferr := &domain.FileError{Path: file, Err: err}
				if p.policy == BestEffort {
					logger.Warn("Skipping failed file: %v", ferr)
					continue
				}
				return ferr
			}

			cp.MarkDone(versionStr, file)
			if err := p.checkpoints.Save(ctx, cp); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
			if p.onCommit != nil {
				p.onCommit(file)
			}
			logger.Debug("Committed: %s", file)
		}
	}

	return nil
}

// IngestWorklist processes a pre-filtered list of changes for one
// release instead of a full directory scan. Modified files always get
// update semantics; removed files have their passages deleted.
func (p *IngestionPipeline) IngestWorklist(ctx context.Context, versionStr string, changes []domain.FileChange) error {
	if _, err := locator.ParseVersion(versionStr); err != nil {
		return err
	}

	cp, err := p.checkpoints.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	for _, change := range changes {
		if p.onFile != nil && change.Type != domain.ChangeRemoved {
			p.onFile(change.Path)
		}

		var perr error
		switch change.Type {
		case domain.ChangeAdded:
			logger.Debug("Processing added file: %s", change.Path)
			perr = p.processFile(ctx, change.Path, versionStr)

		case domain.ChangeModified:
			logger.Debug("Processing modified file: %s", change.Path)
			perr = p.updateFile(ctx, change.Path, versionStr)

		case domain.ChangeRemoved:
			logger.Debug("Deleting passages for removed file: %s", change.Path)
			if err := p.deleteFilePassages(ctx, filepath.Base(change.Path), versionStr); err != nil {
				perr = err
			} else {
				delete(cp[versionStr], change.Path)
				if err := p.checkpoints.Save(ctx, cp); err != nil {
					return fmt.Errorf("save checkpoint: %w", err)
				}
				if p.onCommit != nil {
					p.onCommit(change.Path)
				}
				continue
			}
		}

		if perr != nil {
			ferr := &domain.FileError{Path: change.Path, Err: perr}
			if p.policy == BestEffort {
				logger.Warn("Skipping failed file: %v", ferr)
				continue
			}
			return ferr
		}

		if change.Type != domain.ChangeRemoved {
			cp.MarkDone(versionStr, change.Path)
			if err := p.checkpoints.Save(ctx, cp); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
			if p.onCommit != nil {
				p.onCommit(change.Path)
			}
		}
	}

	return nil
}

// processFile runs one file through chunking, assembly and storage
// according to the configured mode.
func (p *IngestionPipeline) processFile(ctx context.Context, path, versionStr string) error {
	if p.mode == ModeUpdate {
		return p.updateFile(ctx, path, versionStr)
	}
	return p.insertFile(ctx, path, versionStr)
}

// insertFile processes passages with per-passage retries and optional
// fan-out. No delete step: the store replaces passages occupying the
// same locator slot, so reprocessing after a crash cannot duplicate.
func (p *IngestionPipeline) insertFile(ctx context.Context, path, versionStr string) error {
	sections, err := p.chunkFile(path)
	if err != nil {
		return err
	}
	logger.Info("Processing file: %s (%d passages)", path, len(sections))

	if p.fanOut <= 1 {
		for i, section := range sections {
			if err := p.insertPassageWithRetry(ctx, path, versionStr, i, section); err != nil {
				return err
			}
		}
		return nil
	}

	// Fan-out: sequence indexes were assigned above; write order is
	// not guaranteed.
	var (
		wg   sync.WaitGroup
		sem  = make(chan struct{}, p.fanOut)
		mu   sync.Mutex
		errs []error
	)
	for i, section := range sections {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, sec chunker.Section) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := p.insertPassageWithRetry(ctx, path, versionStr, idx, sec); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i, section)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// insertPassageWithRetry assembles and inserts one passage, retrying
// transient failures with linearly increasing backoff. Malformed paths
// are never retried.
func (p *IngestionPipeline) insertPassageWithRetry(ctx context.Context, path, versionStr string, idx int, section chunker.Section) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		record, err := p.assemblePassage(ctx, path, versionStr, idx, section)
		if err == nil {
			_, err = p.store.Insert(ctx, []domain.Passage{record})
			if err == nil {
				return nil
			}
		}
		if errors.Is(err, domain.ErrMalformedPath) || ctx.Err() != nil {
			return err
		}

		lastErr = err
		if attempt < p.maxRetries {
			logger.Warn("Retry %d/%d for passage %d of %s: %v", attempt, p.maxRetries, idx, path, err)
			if serr := p.sleep(ctx, time.Duration(attempt)*p.retryDelay); serr != nil {
				return serr
			}
		}
	}
	return fmt.Errorf("passage %d: %w", idx, lastErr)
}

// updateFile replaces all stored passages of the file. Processing is
// strictly sequential: a concurrent delete-then-insert across passages
// of the same file could clobber a freshly inserted sibling row.
func (p *IngestionPipeline) updateFile(ctx context.Context, path, versionStr string) error {
	sections, err := p.chunkFile(path)
	if err != nil {
		return err
	}
	logger.Info("Processing file with update: %s (%d passages)", path, len(sections))

	// Assemble every record before touching the store so a mid-file
	// embedding failure leaves existing passages intact.
	records := make([]domain.Passage, 0, len(sections))
	for i, section := range sections {
		record, err := p.assemblePassage(ctx, path, versionStr, i, section)
		if err != nil {
			return fmt.Errorf("passage %d: %w", i, err)
		}
		records = append(records, record)
	}

	// Failing the delete loudly beats inserting alongside stale
	// duplicates.
	if err := p.deleteFilePassages(ctx, filepath.Base(path), versionStr); err != nil {
		return err
	}

	if p.settleDelay > 0 {
		if err := p.sleep(ctx, p.settleDelay); err != nil {
			return err
		}
	}

	result, err := p.store.Insert(ctx, records)
	if err != nil {
		return fmt.Errorf("insert %d/%d passages: %w", result.Succeeded, result.Attempted, err)
	}
	return nil
}

// deleteFilePassages removes all stored passages matching the filename
// and version string in one batch.
func (p *IngestionPipeline) deleteFilePassages(ctx context.Context, filename, versionStr string) error {
	refs, err := p.store.FindByFile(ctx, filename, versionStr)
	if err != nil {
		return fmt.Errorf("find existing passages: %w", err)
	}
	if len(refs) == 0 {
		logger.Debug("No existing passages for %s (%s)", filename, versionStr)
		return nil
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}

	result, err := p.store.DeleteByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("delete %d/%d passages: %w", result.Succeeded, result.Attempted, err)
	}
	logger.Debug("Deleted %d passages for %s (%s)", result.Succeeded, filename, versionStr)
	return nil
}

// assemblePassage builds a complete record for one section: locator,
// title, best-effort summary, embedding and metadata. Nothing is
// written until the record is whole.
func (p *IngestionPipeline) assemblePassage(ctx context.Context, path, versionStr string, idx int, section chunker.Section) (domain.Passage, error) {
	loc, err := p.resolver.Resolve(path, section.HeadingPath)
	if err != nil {
		return domain.Passage{}, err
	}

	embedding, err := p.embedder.Embed(ctx, section.Content)
	if err != nil {
		return domain.Passage{}, fmt.Errorf("embed passage: %w", err)
	}

	return domain.Passage{
		ID:            uuid.New().String(),
		Locator:       loc.URL,
		Version:       loc.Version,
		SequenceIndex: idx,
		HeadingPath:   section.HeadingPath,
		Content:       section.Content,
		Title:         ExtractTitle(section.HeadingPath, section.Headings, section.Content),
		Summary:       summarise(ctx, p.summariser, section.Content),
		Embedding:     embedding,
		Metadata: domain.PassageMetadata{
			Source:        "markdown_file",
			Filename:      filepath.Base(path),
			VersionString: loc.VersionString,
			PassageSize:   len(section.Content),
			ProcessedAt:   time.Now().UTC(),
			Headings:      section.Headings,
		},
	}, nil
}

// chunkFile reads and chunks one source file.
func (p *IngestionPipeline) chunkFile(path string) ([]chunker.Section, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.chunker.Chunk(string(content)), nil
}

// listFiles enumerates source files under dir matching the configured
// pattern, minus excludes, in path order.
func (p *IngestionPipeline) listFiles(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), p.pattern)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, rel := range matches {
		if p.excluded(rel) {
			logger.Debug("Excluded by pattern: %s", rel)
			continue
		}
		files = append(files, filepath.Join(dir, rel))
	}
	sort.Strings(files)
	return files, nil
}

// excluded reports whether the relative path matches any exclude glob.
func (p *IngestionPipeline) excluded(rel string) bool {
	for _, pattern := range p.excludes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// DiscoverVersions lists release directories under <base>/versions in
// ascending release order.
func DiscoverVersions(base string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(base, "versions"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", base, domain.ErrMalformedPath)
		}
		return nil, fmt.Errorf("read versions directory: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() && versionDirRe.MatchString(entry.Name()) {
			versions = append(versions, entry.Name())
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		vi, _ := locator.ParseVersion(versions[i])
		vj, _ := locator.ParseVersion(versions[j])
		return vi < vj
	})
	return versions, nil
}

// sleepCtx waits for the duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

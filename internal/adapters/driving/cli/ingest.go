package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/archipel-labs/docvec/internal/changes"
	"github.com/archipel-labs/docvec/internal/core/services"
	"github.com/archipel-labs/docvec/internal/logger"
)

var (
	ingestMode        string
	ingestPolicy      string
	ingestFanOut      int
	ingestIncremental bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [docs-dir]",
	Short: "Ingest versioned documentation into the passage store",
	Long: `Walks every release directory under <docs-dir>/versions, chunks the
markdown files it finds and stores the resulting passages. Progress is
checkpointed after each file, so an interrupted run picks up where it
stopped. With --incremental only files changed since the previous run
are processed.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "", `ingestion mode: "insert" or "update" (default from config)`)
	ingestCmd.Flags().StringVar(&ingestPolicy, "policy", "", `failure policy: "fail-fast" or "best-effort" (default from config)`)
	ingestCmd.Flags().IntVar(&ingestFanOut, "fan-out", 0, "concurrent passage workers in insert mode (default from config)")
	ingestCmd.Flags().BoolVar(&ingestIncremental, "incremental", false, "only process files changed since the last run")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	base, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving docs directory: %w", err)
	}

	applyIngestFlags()
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	emb, err := newEmbedder()
	if err != nil {
		return err
	}

	bar := newIngestBar(cmd)
	opts := []services.PipelineOption{
		services.WithOnFile(func(path string) {
			bar.Describe(filepath.Base(path))
			bar.Add(1)
		}),
	}

	var committed []string
	if ingestIncremental {
		opts = append(opts, services.WithOnCommit(func(path string) {
			committed = append(committed, path)
		}))
	}

	pipeline, err := newPipeline(store, emb, opts...)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if ingestIncremental {
		err = runIncremental(ctx, pipeline, base, &committed)
	} else {
		err = pipeline.IngestDirectory(ctx, base)
	}
	bar.Finish()
	cmd.Println()

	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	cmd.Println("Ingestion complete.")
	return nil
}

// applyIngestFlags folds command line overrides into the loaded
// configuration before validation.
func applyIngestFlags() {
	if ingestMode != "" {
		cfg.Ingest.Mode = ingestMode
	}
	if ingestPolicy != "" {
		cfg.Ingest.FailurePolicy = ingestPolicy
	}
	if ingestFanOut > 0 {
		cfg.Ingest.FanOut = ingestFanOut
	}
}

// runIncremental narrows each release's worklist to the files changed
// since the previous run. The snapshot advances only for files the
// pipeline actually committed, so a file skipped under best-effort is
// re-detected on the next run.
func runIncremental(ctx context.Context, pipeline *services.IngestionPipeline, base string, committed *[]string) error {
	detector, err := changes.NewDetector(
		filepath.Join(base, ".docvec-snapshot.json"),
		changes.WithPattern(cfg.Ingest.FilePattern),
	)
	if err != nil {
		return err
	}

	versions, err := services.DiscoverVersions(base)
	if err != nil {
		return err
	}

	for _, versionStr := range versions {
		versionDir := filepath.Join(base, "versions", versionStr)

		detected, err := detector.Detect(ctx, versionDir)
		if err != nil {
			return fmt.Errorf("detect changes for %s: %w", versionStr, err)
		}
		if len(detected) == 0 {
			logger.Debug("Version %s unchanged", versionStr)
			continue
		}

		logger.Info("Version %s: %d changed files", versionStr, len(detected))
		*committed = (*committed)[:0]
		werr := pipeline.IngestWorklist(ctx, versionStr, detected)

		if len(*committed) > 0 {
			if err := detector.Commit(ctx, *committed); err != nil {
				return fmt.Errorf("commit snapshot for %s: %w", versionStr, err)
			}
		}
		if werr != nil {
			return werr
		}
	}

	return nil
}

// newIngestBar builds a progress bar counting processed files. The
// total is unknown up front, so the spinner variant is used.
func newIngestBar(cmd *cobra.Command) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)
}

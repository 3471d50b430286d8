package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/archipel-labs/docvec/internal/changes"
	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/services"
	"github.com/archipel-labs/docvec/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [docs-dir]",
	Short: "Watch documentation for changes and ingest continuously",
	Long: `Watches every release directory under <docs-dir>/versions and runs
the update pipeline for each markdown file as it is added or changed.
Removing a file deletes its passages. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	base, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving docs directory: %w", err)
	}

	// Live changes always use update semantics so re-saves replace
	// passages instead of duplicating them.
	cfg.Ingest.Mode = "update"
	if err := cfg.Validate(); err != nil {
		return err
	}

	versions, err := services.DiscoverVersions(base)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("no version directories under %s", filepath.Join(base, "versions"))
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

	pipeline, err := newPipeline(store, emb)
	if err != nil {
		return err
	}

	watcher, err := changes.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, watchErrs := watcher.Watch(ctx, base)
	cmd.Printf("Watching %s (interrupt to stop)\n", base)

	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped.")
			return nil

		case err, ok := <-watchErrs:
			if !ok {
				cmd.Println("Stopped.")
				return nil
			}
			return err

		case event, ok := <-events:
			if !ok {
				cmd.Println("Stopped.")
				return nil
			}

			versionStr, inVersion := versionForPath(base, event.Path)
			if !inVersion {
				logger.Debug("Ignoring change outside a release: %s", event.Path)
				continue
			}

			logger.Info("%s: %s", event.Type, event.Path)
			worklist := []domain.FileChange{event}
			if err := pipeline.IngestWorklist(ctx, versionStr, worklist); err != nil {
				logger.Warn("Failed to process %s: %v", event.Path, err)
			}
		}
	}
}

// versionForPath extracts the release a changed file belongs to, e.g.
// <base>/versions/17.0/content/a.md yields "17.0".
func versionForPath(base, path string) (string, bool) {
	rel, err := filepath.Rel(filepath.Join(base, "versions"), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "", false
	}
	return parts[0], true
}

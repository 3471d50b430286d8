// Package cli provides the docvec command line interface.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/archipel-labs/docvec/internal/adapters/driven/config/file"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
	"github.com/archipel-labs/docvec/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	verbose    bool
	configPath string

	// cfg is the loaded configuration, populated before any command
	// runs.
	cfg file.Config

	// Injection points for tests. When nil, commands construct the
	// real adapters from cfg.
	passageStore driven.PassageStore
	embedder     driven.EmbeddingService
	summariser   driven.SummaryService
)

var rootCmd = &cobra.Command{
	Use:   "docvec",
	Short: "Ingest versioned documentation into a searchable passage store",
	Long: `docvec chunks versioned markdown documentation, enriches each
passage with embeddings and metadata and persists the result to a
searchable passage store. Ingestion is checkpointed so interrupted
runs resume where they left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Best effort; a missing .env file is the normal case.
		_ = godotenv.Load()

		logger.SetVerbose(verbose)
		logger.SetOutput(cmd.ErrOrStderr())

		path := configPath
		if path == "" {
			var err error
			path, err = file.DefaultPath()
			if err != nil {
				return err
			}
		}

		var err error
		cfg, err = file.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.docvec/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

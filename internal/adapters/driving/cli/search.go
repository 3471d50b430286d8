package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/services"
	"github.com/archipel-labs/docvec/internal/locator"
)

var (
	searchVersion string
	searchLimit   int
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored passages",
	Long: `Embeds the query and returns the most similar passages for one
documentation release, ordered by cosine similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchVersion, "release", "", `documentation release to search, e.g. "17.0" (required)`)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchVersion == "" {
		return fmt.Errorf("--release is required")
	}
	version, err := locator.ParseVersion(searchVersion)
	if err != nil {
		return err
	}

	limit := searchLimit
	if limit <= 0 {
		limit = cfg.Search.Limit
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

	svc, err := services.NewSearchService(store, emb)
	if err != nil {
		return err
	}

	results, err := svc.Query(context.Background(), query, version, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

// searchResult is the JSON output shape for one hit.
type searchResult struct {
	Title   string  `json:"title"`
	Locator string  `json:"locator"`
	Summary string  `json:"summary,omitempty"`
	Score   float64 `json:"score"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.ScoredPassage) error {
	out := make([]searchResult, 0, len(results))
	for _, r := range results {
		out = append(out, searchResult{
			Title:   r.Passage.Title,
			Locator: r.Passage.Locator,
			Summary: r.Passage.Summary,
			Score:   r.Score,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.ScoredPassage) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, r.Passage.Title, r.Score)
		cmd.Printf("      %s\n", r.Passage.Locator)
		if r.Passage.Summary != "" && r.Passage.Summary != services.SummaryPlaceholder {
			cmd.Printf("      %s\n", r.Passage.Summary)
		}
		cmd.Println()
	}

	return nil
}

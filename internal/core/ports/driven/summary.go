package driven

import "context"

// SummaryService produces short synopses of passage content.
// This is an optional service - when nil, summaries are skipped.
//
// Summaries are best effort: callers recover from any error with a
// placeholder and never abort ingestion because of a failed summary.
type SummaryService interface {
	// Summarise returns a 1-2 sentence summary of the content.
	Summarise(ctx context.Context, content string) (string, error)

	// Close releases resources.
	Close() error
}

package services

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
	"github.com/archipel-labs/docvec/internal/logger"
)

// SummaryPlaceholder is stored when summary generation fails or no
// summary service is configured. Summaries are best effort and never
// abort ingestion.
const SummaryPlaceholder = "Error generating summary"

// maxTitleLen is the truncation limit for titles taken from content.
const maxTitleLen = 100

var contentHeadingRe = regexp.MustCompile(`(?m)^#+\s+(.+)$`)

// ExtractTitle derives a passage title. The fallback order is fixed:
// the full heading path, then the shallowest heading level recorded in
// metadata, then the first markdown heading found in the content, then
// the first content line truncated to 100 characters.
func ExtractTitle(headingPath string, headings domain.HeadingMeta, content string) string {
	if headingPath != "" {
		return headingPath
	}

	for level := 1; level <= 4; level++ {
		if text := headings.Level(level); text != "" {
			return text
		}
	}

	// A heading-path line at position 0 is not content; drop it before
	// searching for in-content headings.
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && strings.Contains(lines[0], "[#") && strings.Contains(lines[0], " > ") {
		content = strings.Join(lines[1:], "\n")
	}

	if m := contentHeadingRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}

	first := strings.TrimSpace(strings.Split(content, "\n")[0])
	if len(first) > maxTitleLen {
		return truncateRunes(first, maxTitleLen-3) + "..."
	}
	return first
}

// truncateRunes cuts s to at most n bytes without splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// summarise returns a best-effort summary of the content. Any failure
// is recovered with the fixed placeholder.
func summarise(ctx context.Context, svc driven.SummaryService, content string) string {
	if svc == nil {
		return SummaryPlaceholder
	}

	summary, err := svc.Summarise(ctx, content)
	if err != nil {
		logger.Warn("Summary generation failed: %v", err)
		return SummaryPlaceholder
	}
	return summary
}

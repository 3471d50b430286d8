package chunker

import (
	"regexp"
	"strings"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

// maxHeadingLevel is the deepest heading level used as a split boundary.
const maxHeadingLevel = 4

var (
	headingRe = regexp.MustCompile(`^(#{1,4})\s+(.*)$`)

	// selfLinkRe matches the pilcrow self-link marker emitted by the
	// markup converter after each heading.
	selfLinkRe = regexp.MustCompile(`\s*\[¶\]\(\)`)

	// linkRe collapses markdown links to their visible text.
	linkRe = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// headingBlock is a run of text governed by one set of active headings.
type headingBlock struct {
	content  string
	headings domain.HeadingMeta
}

// splitByHeadings splits markdown on heading lines at levels 1-4.
// The heading line stays attached to the content that follows it, and
// a heading at level n clears all deeper active levels. Headings inside
// fenced code blocks are not boundaries. Text with no headings yields
// a single block with zero heading metadata.
func splitByHeadings(text string) []headingBlock {
	var (
		blocks  []headingBlock
		current []string
		active  domain.HeadingMeta
		inFence bool
	)

	flush := func() {
		content := strings.TrimRight(strings.Join(current, "\n"), "\n")
		if strings.TrimSpace(content) != "" {
			blocks = append(blocks, headingBlock{content: content, headings: active})
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			current = append(current, line)
			continue
		}

		m := headingRe.FindStringSubmatch(line)
		if m == nil || inFence {
			current = append(current, line)
			continue
		}

		flush()

		level := len(m[1])
		setHeading(&active, level, m[2])
		current = append(current, line)
	}
	flush()

	return blocks
}

// setHeading records the heading text for a level and clears all
// deeper levels, which are no longer in scope.
func setHeading(h *domain.HeadingMeta, level int, text string) {
	switch level {
	case 1:
		h.H1, h.H2, h.H3, h.H4 = text, "", "", ""
	case 2:
		h.H2, h.H3, h.H4 = text, "", ""
	case 3:
		h.H3, h.H4 = text, ""
	case 4:
		h.H4 = text
	}
}

// headingPath renders the active headings as a single line, e.g.
// "[#] Accounting > [##] Setup". Headings that clean to an empty
// string are skipped.
func headingPath(h domain.HeadingMeta) string {
	var parts []string
	for level := 1; level <= maxHeadingLevel; level++ {
		text := cleanHeading(h.Level(level))
		if text == "" {
			continue
		}
		parts = append(parts, "["+strings.Repeat("#", level)+"] "+text)
	}
	return strings.Join(parts, " > ")
}

// cleanHeading strips self-link markers and collapses embedded
// markdown links to their visible text.
func cleanHeading(text string) string {
	text = selfLinkRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

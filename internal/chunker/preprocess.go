package chunker

import (
	"regexp"
	"strings"
)

// Patterns for converter artifacts that survive normalization but add
// no retrieval value: page-local navigation, dead file links and the
// repeated site banner.
var (
	onThisPageRe = regexp.MustCompile(`(?s)##### On this page.*?\n\n`)
	navigationRe = regexp.MustCompile(`(?s)### Navigation.*?\n\n`)
	fileLinkRe   = regexp.MustCompile(`\(file:[^)]*\)`)
	emptyItemRe  = regexp.MustCompile(`\* \[[^\]]*\]\(\)`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	bannerRe     = regexp.MustCompile(`\[ !\[Odoo\]\(\)\s*docs \]\(\)\s*\[Try Odoo for FREE\]\(\)\s*EN\s*Odoo \d+\s*`)
)

// preprocess removes navigation sections and other converter artifacts
// before heading splitting.
func preprocess(text string) string {
	text = onThisPageRe.ReplaceAllString(text, "\n\n")
	text = navigationRe.ReplaceAllString(text, "\n\n")
	text = fileLinkRe.ReplaceAllString(text, "()")
	text = emptyItemRe.ReplaceAllString(text, "")
	text = bannerRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

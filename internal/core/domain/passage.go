package domain

import "time"

// Passage represents a retrieval-sized unit of documentation text.
// It is the canonical record persisted to the passage store.
type Passage struct {
	// ID is the unique record identifier.
	ID string

	// Locator is the canonical documentation URL, optionally suffixed
	// with a section anchor (e.g. ".../odoo_basics.html#install").
	Locator string

	// Version is the integer-encoded documentation release.
	// Release "16.0" is encoded as 160, "17.5" as 175.
	Version int

	// SequenceIndex is the zero-based position of the passage within
	// its source file after chunking.
	SequenceIndex int

	// HeadingPath is the rendered chain of enclosing headings, e.g.
	// "[#] Accounting > [##] Setup". Empty when the passage has no
	// enclosing headings.
	HeadingPath string

	// Content is the passage text, prefixed with the heading path line
	// when one is present. Never empty for a persisted passage.
	Content string

	// Title is a human-readable title derived from the heading path
	// with documented fallbacks.
	Title string

	// Summary is an optional 1-2 sentence synopsis. Best effort; a
	// fixed placeholder is used when generation fails.
	Summary string

	// Embedding is the fixed-length vector representation. A zero
	// vector of the model dimensionality marks a degraded embedding,
	// never a nil slice.
	Embedding []float32

	// Metadata carries descriptive fields about the passage's origin.
	Metadata PassageMetadata
}

// PassageMetadata describes where a passage came from and how it was
// produced. Heading levels are typed rather than free-form map keys;
// Extra carries forward-compatible extension values.
type PassageMetadata struct {
	// Source identifies the ingestion source kind (e.g. "markdown_file").
	Source string

	// Filename is the base name of the source file.
	Filename string

	// VersionString is the release in "major.minor" form (e.g. "16.0").
	VersionString string

	// PassageSize is the content length in bytes.
	PassageSize int

	// ProcessedAt is when the passage was assembled.
	ProcessedAt time.Time

	// Headings holds the active heading text per level.
	Headings HeadingMeta

	// Extra carries additional key-value pairs.
	Extra map[string]string
}

// HeadingMeta holds the text of the enclosing headings, one field per
// markdown heading level 1-4. Empty string means the level is not set.
type HeadingMeta struct {
	H1 string
	H2 string
	H3 string
	H4 string
}

// Level returns the heading text for a 1-based level, or "" when the
// level is out of range or unset.
func (h HeadingMeta) Level(n int) string {
	switch n {
	case 1:
		return h.H1
	case 2:
		return h.H2
	case 3:
		return h.H3
	case 4:
		return h.H4
	default:
		return ""
	}
}

// IsZero reports whether no heading level is set.
func (h HeadingMeta) IsZero() bool {
	return h == HeadingMeta{}
}

// PassageRef identifies a stored passage without carrying its content.
// Used when collecting records for batch deletion.
type PassageRef struct {
	// ID is the store-assigned record identifier.
	ID string

	// Locator is the passage URL.
	Locator string

	// SequenceIndex is the passage position within its file.
	SequenceIndex int
}

// ScoredPassage pairs a passage with its similarity score from a
// vector search, higher is more similar.
type ScoredPassage struct {
	Passage Passage
	Score   float64
}

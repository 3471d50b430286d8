// Package chunker splits normalized markdown into retrieval-sized
// sections along heading boundaries, re-splitting oversized sections
// by character budget with overlap.
package chunker

import (
	"strings"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

// DefaultChunkSize is the default maximum section size in characters.
const DefaultChunkSize = 5000

// DefaultOverlap is the default number of overlapping characters
// between consecutive size-split sections.
const DefaultOverlap = 500

// Section is one chunk of a source document in document order.
type Section struct {
	// Content is the section text, prefixed with the heading path line
	// when the section has enclosing headings.
	Content string

	// HeadingPath is the rendered heading chain, e.g. "[#] A > [##] B".
	HeadingPath string

	// Headings holds the active heading text per level.
	Headings domain.HeadingMeta
}

// Chunker splits markdown text into sections.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum section size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between size-split sections in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker. Configuring an overlap that is not smaller
// than the chunk size is rejected: such a splitter cannot make progress.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.overlap >= c.chunkSize {
		return nil, domain.ErrInvalidInput
	}

	return c, nil
}

// ChunkSize returns the configured maximum section size.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits the text into ordered sections. The text is first split
// on heading boundaries (levels 1-4, heading lines kept attached to the
// content below them), then any section over the size budget is
// re-split with overlap. Whitespace-only pieces are dropped.
func (c *Chunker) Chunk(text string) []Section {
	cleaned := preprocess(text)
	if cleaned == "" {
		return nil
	}

	var sections []Section
	for _, block := range splitByHeadings(cleaned) {
		path := headingPath(block.headings)

		for _, piece := range c.splitBySize(block.content) {
			if strings.TrimSpace(piece) == "" {
				continue
			}

			content := piece
			if path != "" {
				content = path + "\n" + piece
			}

			sections = append(sections, Section{
				Content:     content,
				HeadingPath: path,
				Headings:    block.headings,
			})
		}
	}

	return sections
}

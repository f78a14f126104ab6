package generate

import (
	"strings"

	"github.com/dgallion1/docforge/internal/chunker"
	"github.com/dgallion1/docforge/internal/doctree"
)

// Source supplies the reference material for one section.
type Source interface {
	Excerpt(s *doctree.Section) string
}

// StaticSource hands every section the same text.
type StaticSource string

func (s StaticSource) Excerpt(*doctree.Section) string { return string(s) }

// ChunkSource picks, per section, the chunks that best match the section's
// title and requirements.
type ChunkSource struct {
	Chunks []doctree.Chunk
	Budget int // tokens per excerpt
}

// NewChunkSource chunks tree with the default config. budget <= 0 means 1500.
func NewChunkSource(tree *doctree.DocTree, budget int) *ChunkSource {
	if budget <= 0 {
		budget = 1500
	}
	return &ChunkSource{
		Chunks: chunker.ChunkTree(tree, chunker.DefaultConfig()),
		Budget: budget,
	}
}

func (c *ChunkSource) Excerpt(s *doctree.Section) string {
	query := strings.Join(append([]string{s.Title, s.Requirements}, s.BulletPoints...), " ")
	return chunker.Excerpt(c.Chunks, query, c.Budget)
}

func excerpt(src Source, s *doctree.Section) string {
	if src == nil {
		return ""
	}
	return src.Excerpt(s)
}

// all returns the excerpt used for a whole-document batch call.
func all(src Source, sections []*doctree.Section) string {
	if src == nil {
		return ""
	}
	if c, ok := src.(*ChunkSource); ok {
		var query []string
		for _, s := range sections {
			query = append(query, s.Title, s.Requirements)
		}
		return chunker.Excerpt(c.Chunks, strings.Join(query, " "), c.Budget*2)
	}
	if len(sections) == 0 {
		return ""
	}
	return src.Excerpt(sections[0])
}

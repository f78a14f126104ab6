// Package chunker splits source material into sized pieces and picks the
// pieces most relevant to a template section.
package chunker

import (
	"slices"
	"strings"

	"github.com/dgallion1/docforge/internal/doctree"
)

// Config controls chunk sizing, in estimated tokens.
type Config struct {
	ChunkSize int // Target chunk size.
	MinChunk  int // Chunks smaller than this are dropped.
}

// DefaultConfig suits prompt excerpts for a 2000-token completion budget.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 600,
		MinChunk:  5,
	}
}

// ChunkTree walks a DocTree in order and splits each node's text into
// chunks that carry the node's heading path.
func ChunkTree(tree *doctree.DocTree, cfg Config) []doctree.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = DefaultConfig().MinChunk
	}
	if tree == nil {
		return nil
	}

	var chunks []doctree.Chunk
	var walk func(n *doctree.DocNode, path []string)
	walk = func(n *doctree.DocNode, path []string) {
		if n.Title != "" {
			path = append(slices.Clip(path), n.Title)
		}
		for _, part := range pack(n.Text, cfg.ChunkSize) {
			if EstimateTokens(part) < cfg.MinChunk {
				continue
			}
			chunks = append(chunks, doctree.Chunk{
				Text:       part,
				Index:      len(chunks),
				Breadcrumb: slices.Clone(path),
			})
		}
		for _, c := range n.Children {
			walk(c, path)
		}
	}
	for _, c := range tree.Children {
		walk(c, nil)
	}
	return chunks
}

// pack greedily fills chunks with whole paragraphs, falling back to
// sentences for paragraphs larger than the target.
func pack(text string, target int) []string {
	var out []string
	var cur []string
	curTokens := 0
	emit := func(sep string) {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, sep))
		}
		cur, curTokens = nil, 0
	}

	for _, para := range SplitParagraphs(text) {
		n := EstimateTokens(para)
		if n > target {
			emit("\n\n")
			var sent []string
			sentTokens := 0
			for _, s := range SplitSentences(para) {
				st := EstimateTokens(s)
				if sentTokens+st > target && len(sent) > 0 {
					out = append(out, joinSentences(sent))
					sent, sentTokens = nil, 0
				}
				sent = append(sent, s)
				sentTokens += st
			}
			if len(sent) > 0 {
				out = append(out, joinSentences(sent))
			}
			continue
		}
		if curTokens+n > target && len(cur) > 0 {
			emit("\n\n")
		}
		cur = append(cur, para)
		curTokens += n
	}
	emit("\n\n")
	return out
}

// joinSentences glues sentences back together, with a space only after
// Western punctuation.
func joinSentences(sents []string) string {
	var b strings.Builder
	for i, s := range sents {
		if i > 0 {
			prev := []rune(sents[i-1])
			if last := prev[len(prev)-1]; last < 0x3000 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(s)
	}
	return b.String()
}

// Query terms are split on whitespace and common CJK list punctuation so a
// requirement like "目标、时间范围、预期成果" yields three terms.
var termSeparators = strings.NewReplacer(
	"，", " ", "、", " ", "；", " ", "：", " ", "（", " ", "）", " ",
	",", " ", ";", " ", ":", " ", "(", " ", ")", " ", "/", " ", "+", " ", "•", " ",
)

// Terms extracts lowercase search terms from free text.
func Terms(s string) []string {
	var out []string
	for _, f := range strings.Fields(termSeparators.Replace(s)) {
		f = strings.ToLower(strings.TrimSpace(f))
		if len([]rune(f)) < 2 || slices.Contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Excerpt picks the chunks that mention the most query terms and returns
// them in document order, within budget tokens. When nothing matches it
// returns the leading chunks instead.
func Excerpt(chunks []doctree.Chunk, query string, budget int) string {
	if len(chunks) == 0 {
		return ""
	}
	terms := Terms(query)

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(chunks))
	for i, c := range chunks {
		hay := strings.ToLower(c.Text + " " + strings.Join(c.Breadcrumb, " "))
		s := 0
		for _, t := range terms {
			if strings.Contains(hay, t) {
				s++
			}
		}
		ranked = append(ranked, scored{idx: i, score: s})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int { return b.score - a.score })

	var picked []int
	used := 0
	for _, r := range ranked {
		n := EstimateTokens(chunks[r.idx].Text)
		if used+n > budget && len(picked) > 0 {
			continue
		}
		picked = append(picked, r.idx)
		used += n
		if used >= budget {
			break
		}
	}
	slices.Sort(picked)

	parts := make([]string, 0, len(picked))
	for _, i := range picked {
		parts = append(parts, chunks[i].Text)
	}
	return strings.Join(parts, "\n\n")
}

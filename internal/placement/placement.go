// Package placement decides which template section each extracted image
// belongs to.
package placement

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/generate"
	"github.com/dgallion1/docforge/internal/images"
)

// PositionEnd appends the image after the section's content.
const PositionEnd = "end"

const (
	titleWeight   = 0.5
	keywordWeight = 0.1

	// Sections with more generated text than this are preferred by the
	// first fallback rule.
	substantialRunes = 100
)

// Placement targets a section. An empty SectionID means no target, which
// only happens for an empty template.
type Placement struct {
	SectionID string `json:"section_id,omitempty"`
	Position  string `json:"position"`
}

// Resolver scores sections against an image's surrounding text.
type Resolver struct {
	log *slog.Logger
}

func NewResolver(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{log: log}
}

// Score rates how well s fits img: 0.5 each when the section title occurs
// in the preceding or following text, plus 0.1 per requirement keyword
// found in the image paragraph's own text. Matching ignores case.
func Score(img images.Metadata, s *doctree.Section) float64 {
	var score float64
	if title := strings.ToLower(strings.TrimSpace(s.Title)); title != "" {
		if strings.Contains(strings.ToLower(img.PrecedingText), title) {
			score += titleWeight
		}
		if strings.Contains(strings.ToLower(img.FollowingText), title) {
			score += titleWeight
		}
	}
	para := strings.ToLower(img.ParagraphText)
	if para != "" {
		for _, kw := range s.Keywords() {
			if strings.Contains(para, strings.ToLower(kw)) {
				score += keywordWeight
			}
		}
	}
	return score
}

// Resolve picks the best-scoring section; ties go to the earliest in
// pre-order. When nothing scores above zero it falls back, in order, to
// the first section with substantial generated text, the last section
// that has any generated text, and finally the first section.
func (r *Resolver) Resolve(img images.Metadata, res generate.Result, t *doctree.Template) Placement {
	flat := t.Flatten()
	if len(flat) == 0 {
		return Placement{Position: PositionEnd}
	}

	best, bestScore := -1, 0.0
	for i, s := range flat {
		if sc := Score(img, s); sc > bestScore {
			best, bestScore = i, sc
		}
	}
	if best >= 0 {
		r.log.Debug("image placed by score",
			"image", img.Filename, "section", flat[best].ID, "score", bestScore)
		return Placement{SectionID: flat[best].ID, Position: PositionEnd}
	}

	id, rule := fallback(flat, res)
	r.log.Debug("image placed by fallback", "image", img.Filename, "section", id, "rule", rule)
	return Placement{SectionID: id, Position: PositionEnd}
}

func fallback(flat []*doctree.Section, res generate.Result) (string, string) {
	for _, s := range flat {
		if utf8.RuneCountInString(res[s.ID]) > substantialRunes {
			return s.ID, "substantial_content"
		}
	}
	for i := len(flat) - 1; i >= 0; i-- {
		if _, ok := res[flat[i].ID]; ok {
			return flat[i].ID, "last_generated"
		}
	}
	return flat[0].ID, "first_section"
}

// ResolveAll places every image, keeping input order.
func (r *Resolver) ResolveAll(imgs []images.Metadata, res generate.Result, t *doctree.Template) []Placement {
	out := make([]Placement, len(imgs))
	for i, img := range imgs {
		out[i] = r.Resolve(img, res, t)
	}
	return out
}

package office

import (
	"bytes"

	"github.com/fumiama/go-docx"
)

// ImageMatcher decides whether a paragraph carries an image. Writers differ
// in how they embed pictures, so detection is a list of independent checks;
// a paragraph is an image paragraph if any matcher fires.
type ImageMatcher struct {
	Name  string
	Match func(it Item) bool
}

func rawContains(tag string) func(Item) bool {
	b := []byte(tag)
	return func(it Item) bool { return bytes.Contains(it.Raw, b) }
}

// DefaultMatchers are tried in order.
var DefaultMatchers = []ImageMatcher{
	// Word 2007+ and LibreOffice: DrawingML inline or anchored pictures.
	{Name: "w:drawing", Match: rawContains("<w:drawing")},
	{Name: "pic:pic", Match: rawContains("<pic:pic")},
	// Word 97-2003 conversions and some exporters write VML.
	{Name: "v:shape", Match: rawContains("<v:shape")},
	{Name: "v:image", Match: rawContains("<v:image")},
	{Name: "w:pict", Match: rawContains("<w:pict")},
	// Documents built in memory have no raw markup; look at decoded runs.
	{Name: "run-drawing", Match: runHasDrawing},
	// Last resort for unfamiliar producers.
	{Name: "graphic-blip", Match: func(it Item) bool {
		return bytes.Contains(it.Raw, []byte(":graphic")) || bytes.Contains(it.Raw, []byte(":blip"))
	}},
}

// HasImage reports whether any matcher fires.
func HasImage(it Item, matchers []ImageMatcher) bool {
	for _, p := range matchers {
		if p.Match(it) {
			return true
		}
	}
	return false
}

func runHasDrawing(it Item) bool {
	if it.Para == nil {
		return false
	}
	for _, c := range it.Para.Children {
		r, ok := c.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range r.Children {
			if _, ok := rc.(*docx.Drawing); ok {
				return true
			}
		}
	}
	return false
}

// EmbedIDs returns the r:embed relationship IDs of the paragraph's
// DrawingML pictures, in order.
func EmbedIDs(p *docx.Paragraph) []string {
	var ids []string
	for _, c := range p.Children {
		r, ok := c.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range r.Children {
			d, ok := rc.(*docx.Drawing)
			if !ok {
				continue
			}
			var g *docx.AGraphic
			switch {
			case d.Inline != nil:
				g = d.Inline.Graphic
			case d.Anchor != nil:
				g = d.Anchor.Graphic
			}
			if g == nil || g.GraphicData == nil || g.GraphicData.Pic == nil || g.GraphicData.Pic.BlipFill == nil {
				continue
			}
			if id := g.GraphicData.Pic.BlipFill.Blip.Embed; id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

package rebuild

import (
	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docforge/internal/office"
)

// ReformatReport counts what Reformat did.
type ReformatReport struct {
	Blocks   int `json:"blocks"`
	Consumed int `json:"consumed"` // blocks that replaced a text paragraph
	Appended int `json:"appended"` // surplus blocks added at the end
	Images   int `json:"images"`
	Tables   int `json:"tables"`
}

// Reformat rewrites doc's body in place around text. The original item
// order is replayed: each text paragraph is replaced by the next block of
// text, image paragraphs keep their original runs in a fresh centered
// paragraph, blank paragraphs stay, tables stay and are restyled. Text
// paragraphs left over once blocks run out are dropped; blocks left over
// once paragraphs run out are appended before the trailing section
// properties.
func Reformat(doc *office.Document, text string) ReformatReport {
	f := doc.Docx
	blocks := SplitBlocks(text)
	rep := ReformatReport{Blocks: len(blocks)}

	// AddParagraph appends to Body.Items; the new sequence is assembled
	// separately and swapped in at the end.
	var out, tail []any
	take := func(n int) []*docx.Paragraph {
		return renderBlock(f, blocks[n])
	}
	next := 0

	for _, it := range doc.Items() {
		switch it.Kind {
		case office.KindImage:
			p := f.AddParagraph()
			p.Children = it.Para.Children
			office.ApplyPara(p, imagePara)
			out = append(out, p)
			rep.Images++
		case office.KindText:
			if next < len(blocks) {
				for _, p := range take(next) {
					out = append(out, p)
				}
				next++
				rep.Consumed++
			}
		case office.KindBlank:
			out = append(out, it.Value)
		case office.KindTable:
			styleTable(it.Table)
			out = append(out, it.Value)
			rep.Tables++
		case office.KindSection:
			tail = append(tail, it.Value)
		}
	}
	for ; next < len(blocks); next++ {
		for _, p := range take(next) {
			out = append(out, p)
		}
		rep.Appended++
	}

	f.Document.Body.Items = append(out, tail...)
	return rep
}

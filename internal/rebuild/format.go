// Package rebuild writes output documents: it restyles an existing
// document around new text, or builds a fresh one from a template and
// generated section content.
package rebuild

import (
	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docforge/internal/office"
)

// Formatting presets.
var (
	headingPara = office.ParaFormat{Align: "center"}
	headingRun  = office.RunFormat{Font: "黑体", Size: 22, Bold: true, Color: "000000"}

	subheadingPara = office.ParaFormat{Align: "start", Before: 240}
	subheadingRun  = office.RunFormat{Font: "黑体", Size: 16, Bold: true, Color: "000000"}

	bodyPara = office.ParaFormat{Align: "both", Line: 360, FirstLine: 21 * office.TwipsPerPoint}
	bodyRun  = office.RunFormat{Font: "宋体", Size: 12, Color: "444444"}

	listIndent = 720 // 0.5in

	imagePara = office.ParaFormat{Align: "center", Before: 12 * office.TwipsPerPoint}
)

// Image size used for placed pictures.
var (
	ImageWidth  = office.InchesToEMU(5.91)
	ImageHeight = office.InchesToEMU(4.43)
)

// TableStyle is the style ID Word uses for "Table Grid".
const TableStyle = "TableGrid"

// renderBlock appends one block to f as one or more paragraphs.
func renderBlock(f *docx.Docx, block string) []*docx.Paragraph {
	switch Classify(block) {
	case BlockOrdered:
		return renderList(f, OrderedItems(block))
	case BlockBullet:
		return renderList(f, BulletItems(block))
	case BlockHeading:
		p := f.AddParagraph()
		office.ApplyPara(p, headingPara)
		office.AddText(p, block, headingRun)
		return []*docx.Paragraph{p}
	default:
		p := f.AddParagraph()
		office.ApplyPara(p, bodyPara)
		office.AddText(p, block, bodyRun)
		return []*docx.Paragraph{p}
	}
}

func renderList(f *docx.Docx, items []string) []*docx.Paragraph {
	out := make([]*docx.Paragraph, 0, len(items))
	pf := bodyPara
	pf.Left = listIndent
	for _, it := range items {
		p := f.AddParagraph()
		office.ApplyPara(p, pf)
		office.AddText(p, it, bodyRun)
		out = append(out, p)
	}
	return out
}

// styleTable applies the grid style and body formatting to every cell.
func styleTable(t *docx.Table) {
	office.StyleTable(t, TableStyle)
	for _, row := range t.TableRows {
		for _, cell := range row.TableCells {
			for _, p := range cell.Paragraphs {
				office.ApplyPara(p, bodyPara)
				for _, c := range p.Children {
					if r, ok := c.(*docx.Run); ok {
						office.ApplyRun(r, bodyRun)
					}
				}
			}
		}
	}
}

package office

import (
	"fmt"
	"os"

	"github.com/fumiama/go-docx"
)

// Measurement helpers. Twips are 1/20 pt; EMU are 1/914400 in.
const (
	TwipsPerPoint = 20
	EMUPerInch    = 914400
)

// InchesToEMU converts inches to English Metric Units.
func InchesToEMU(in float64) int64 { return int64(in * EMUPerInch) }

// ParaFormat is the paragraph-level formatting docforge applies.
type ParaFormat struct {
	Align     string // start, center, end, both
	Line      int    // line spacing in 240ths of a line (360 = 1.5)
	Before    int    // space before, twips
	FirstLine int    // first-line indent, twips
	Left      int    // left indent, twips
}

// RunFormat is the character-level formatting docforge applies.
type RunFormat struct {
	Font  string // applied to ascii, eastAsia and hAnsi
	Size  int    // points
	Bold  bool
	Color string // RRGGBB
}

// ApplyPara sets f on p, replacing spacing, indent and alignment.
func ApplyPara(p *docx.Paragraph, f ParaFormat) {
	if f.Align != "" {
		p.Justification(f.Align)
	}
	if p.Properties == nil {
		p.Properties = &docx.ParagraphProperties{}
	}
	if f.Line > 0 || f.Before > 0 {
		sp := &docx.Spacing{Before: f.Before}
		if f.Line > 0 {
			sp.Line = f.Line
			sp.LineRule = "auto"
		}
		p.Properties.Spacing = sp
	}
	if f.FirstLine > 0 || f.Left > 0 {
		p.Properties.Ind = &docx.Ind{FirstLine: f.FirstLine, Left: f.Left}
	}
}

// ApplyRun sets f on r.
func ApplyRun(r *docx.Run, f RunFormat) {
	if r.RunProperties == nil {
		r.RunProperties = &docx.RunProperties{}
	}
	if f.Font != "" {
		r.Font(f.Font, f.Font, f.Font, "eastAsia")
	}
	if f.Size > 0 {
		r.Size(fmt.Sprint(f.Size * 2)) // half-points
	}
	if f.Bold {
		r.Bold()
	}
	if f.Color != "" {
		r.Color(f.Color)
	}
}

// AddText appends a formatted text run to p.
func AddText(p *docx.Paragraph, text string, f RunFormat) *docx.Run {
	r := p.AddText(text)
	ApplyRun(r, f)
	return r
}

// AddImage appends an inline picture to p, sized to w by h EMU. p must
// belong to a document (created with AddParagraph).
func AddImage(p *docx.Paragraph, data []byte, w, h int64) (*docx.Run, error) {
	r, err := p.AddInlineDrawing(data)
	if err != nil {
		return nil, fmt.Errorf("add picture: %w", err)
	}
	for _, c := range r.Children {
		if d, ok := c.(*docx.Drawing); ok && d.Inline != nil {
			d.Inline.Size(w, h)
		}
	}
	return r, nil
}

// AddImageFile reads path and appends it like AddImage.
func AddImageFile(p *docx.Paragraph, path string, w, h int64) (*docx.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return AddImage(p, data, w, h)
}

// StyleTable sets the table style ID, e.g. "TableGrid".
func StyleTable(t *docx.Table, style string) {
	if t.TableProperties == nil {
		t.TableProperties = &docx.WTableProperties{}
	}
	t.TableProperties.Style = &docx.WTableStyle{Val: style}
}

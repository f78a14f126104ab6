package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/office"
)

// DOCXReader handles Word documents. Paragraphs with heading styles open
// sections; tables become one line per row.
type DOCXReader struct{}

func (DOCXReader) Read(r io.Reader, filename string) (*doctree.DocTree, error) {
	doc, err := office.Read(r)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return FromDocument(doc, titleFrom(filename)), nil
}

// FromDocument builds a tree from an already opened document.
func FromDocument(doc *office.Document, title string) *doctree.DocTree {
	o := newOutline()
	for _, it := range doc.Items() {
		switch it.Kind {
		case office.KindText:
			text := strings.TrimSpace(it.Text)
			if lvl := office.HeadingLevel(it.Style); lvl > 0 {
				o.heading(lvl, text)
				continue
			}
			o.text(text)
		case office.KindImage:
			o.text(it.Text) // caption text sharing the picture's paragraph
		case office.KindTable:
			o.text(tableText(it))
		}
	}
	return &doctree.DocTree{Title: title, Children: o.nodes()}
}

func tableText(it office.Item) string {
	if it.Table == nil {
		return ""
	}
	var rows []string
	for _, row := range it.Table.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if t := strings.TrimSpace(office.ParagraphText(p)); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if line := strings.Join(cells, " | "); strings.Trim(line, " |") != "" {
			rows = append(rows, line)
		}
	}
	return strings.Join(rows, "\n")
}

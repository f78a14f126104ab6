package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docforge/internal/doctree"
)

// csvBatch is how many data rows go into one node.
const csvBatch = 20

// CSVReader handles CSV. The first row is the header; data rows are
// rendered as "header：value" pairs in batches.
type CSVReader struct{}

func (CSVReader) Read(r io.Reader, filename string) (*doctree.DocTree, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: titleFrom(filename)}
	if len(records) == 0 {
		return tree, nil
	}
	header, rows := records[0], records[1:]

	for start := 0; start < len(rows); start += csvBatch {
		end := min(start+csvBatch, len(rows))
		var sb strings.Builder
		for _, row := range rows[start:end] {
			pairs := make([]string, 0, len(row))
			for j, cell := range row {
				if cell = strings.TrimSpace(cell); cell == "" {
					continue
				}
				if j < len(header) && header[j] != "" {
					pairs = append(pairs, header[j]+"："+cell)
				} else {
					pairs = append(pairs, cell)
				}
			}
			if len(pairs) > 0 {
				sb.WriteString(strings.Join(pairs, "，"))
				sb.WriteString("\n")
			}
		}
		// Row numbers are 1-based and count the header line.
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("第%d-%d行", start+2, end+1),
			Text:  strings.TrimSpace(sb.String()),
			Page:  start + 2,
		})
	}
	return tree, nil
}

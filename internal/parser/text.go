package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/docforge/internal/chunker"
	"github.com/dgallion1/docforge/internal/doctree"
)

// TextReader handles plain text. A paragraph whose first line is a short
// Chinese report heading ("一、", "第二章") opens a new section.
type TextReader struct{}

func (TextReader) Read(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Whitespace-only lines separate paragraphs too.
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			lines[i] = ""
		}
	}

	o := newOutline()
	for _, para := range chunker.SplitParagraphs(strings.Join(lines, "\n")) {
		first, rest, _ := strings.Cut(para, "\n")
		first = strings.TrimSpace(first)
		if isTextHeading(first) {
			o.heading(1, first)
			o.text(rest)
			continue
		}
		o.text(para)
	}
	return &doctree.DocTree{Title: titleFrom(filename), Children: o.nodes()}, nil
}

// Numbered lines ("1. ") are usually list items in plain text, so only
// the Chinese numbering forms count here.
func isTextHeading(line string) bool {
	if line == "" || line[0] >= '0' && line[0] <= '9' {
		return false
	}
	return chunker.IsHeadingLine(line) && len([]rune(line)) <= 40
}

// Package parser reads source material into a doctree.DocTree. The tree
// feeds excerpt selection for templated generation.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docforge/internal/doctree"
)

// Reader converts raw document bytes into a DocTree.
type Reader interface {
	Read(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists the source formats docforge accepts.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the reader for a filename's extension.
func ForFile(filename string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextReader{}, nil
	case ".md", ".markdown":
		return &MarkdownReader{}, nil
	case ".csv":
		return &CSVReader{}, nil
	case ".html", ".htm":
		return &HTMLReader{}, nil
	case ".pdf":
		return &PDFReader{}, nil
	case ".docx":
		return &DOCXReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ReadFile picks a reader by extension and reads path.
func ReadFile(path string) (*doctree.DocTree, error) {
	rd, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tree, err := rd.Read(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return tree, nil
}

// PlainText flattens a tree into headings and paragraphs separated by
// blank lines, in document order.
func PlainText(tree *doctree.DocTree) string {
	if tree == nil {
		return ""
	}
	var parts []string
	var walk func(nodes []*doctree.DocNode)
	walk = func(nodes []*doctree.DocNode) {
		for _, n := range nodes {
			if t := strings.TrimSpace(n.Title); t != "" {
				parts = append(parts, t)
			}
			if t := strings.TrimSpace(n.Text); t != "" {
				parts = append(parts, t)
			}
			walk(n.Children)
		}
	}
	walk(tree.Children)
	return strings.Join(parts, "\n\n")
}

func titleFrom(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

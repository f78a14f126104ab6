package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docforge/internal/doctree"
)

// MarkdownReader handles Markdown using goldmark's AST.
type MarkdownReader struct{}

func (MarkdownReader) Read(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	o := newOutline()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			o.heading(node.Level, blockText(node, src))
		case *ast.List:
			// One line per item keeps list markers meaningful for the
			// segmenter and the model.
			var items []string
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				if t := blockText(li, src); t != "" {
					items = append(items, "- "+t)
				}
			}
			o.text(strings.Join(items, "\n"))
		default:
			o.text(blockText(n, src))
		}
	}
	return &doctree.DocTree{Title: titleFrom(filename), Children: o.nodes()}, nil
}

// blockText returns the text of a node: inline content for nodes with
// children, raw lines for leaf blocks such as code.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writeNode(&buf, n, src)
	return strings.TrimSpace(buf.String())
}

func writeNode(buf *bytes.Buffer, n ast.Node, src []byte) {
	if n.ChildCount() == 0 {
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			return
		}
		if n.Type() == ast.TypeBlock {
			lines := n.Lines()
			for i := range lines.Len() {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
		}
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		writeNode(buf, c, src)
	}
}

package parser

import (
	"strings"

	"github.com/dgallion1/docforge/internal/doctree"
)

// outline nests text under the most recent heading of a lower level.
// Readers feed it headings and paragraphs in document order.
type outline struct {
	root  doctree.DocNode
	stack []level
	buf   []string
}

type level struct {
	node *doctree.DocNode
	n    int
}

func newOutline() *outline {
	o := &outline{}
	o.stack = []level{{node: &o.root}}
	return o
}

func (o *outline) flush() {
	if len(o.buf) == 0 {
		return
	}
	t := strings.Join(o.buf, "\n\n")
	top := o.stack[len(o.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
	o.buf = o.buf[:0]
}

func (o *outline) heading(n int, title string) {
	o.flush()
	node := &doctree.DocNode{Title: title}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].n >= n {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, node)
	o.stack = append(o.stack, level{node: node, n: n})
}

func (o *outline) text(s string) {
	if s = strings.TrimSpace(s); s != "" {
		o.buf = append(o.buf, s)
	}
}

// nodes returns the top-level nodes. Text before the first heading
// becomes a leading untitled node.
func (o *outline) nodes() []*doctree.DocNode {
	o.flush()
	out := o.root.Children
	if o.root.Text != "" {
		out = append([]*doctree.DocNode{{Text: o.root.Text}}, out...)
	}
	return out
}

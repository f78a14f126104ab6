// Package doctree holds the two trees docforge works with: the parsed
// structure of source material (DocTree) and the section template a new
// document is generated from (Template).
package doctree

// DocTree is the root of parsed source material.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section of source material.
type DocNode struct {
	Title    string     // Heading (empty for leaf text)
	Text     string     // Body text under the heading
	Page     int        // Source page/line (0 if N/A)
	Children []*DocNode // Subsections
}

// Chunk is a sized slice of source text with its heading path.
type Chunk struct {
	Text       string
	Index      int
	Breadcrumb []string // e.g. ["项目背景", "业务需求"]
}

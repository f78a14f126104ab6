// Package office reads and writes .docx containers. It wraps go-docx and
// adds what go-docx does not expose: the raw markup of each body
// paragraph and a listing of the archive's media files.
package office

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"
)

// Kind classifies a body item.
type Kind int

const (
	KindText Kind = iota
	KindImage
	KindBlank
	KindTable
	KindSection // trailing <w:sectPr>
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindBlank:
		return "blank"
	case KindTable:
		return "table"
	case KindSection:
		return "section"
	}
	return "unknown"
}

// Item is one element of the document body, in order.
type Item struct {
	Kind Kind

	// Paragraph fields. Index counts body paragraphs only.
	Para  *docx.Paragraph
	Index int
	Raw   []byte // <w:p>...</w:p> as it appears in word/document.xml
	Text  string
	Style string

	Table *docx.Table

	// Value is the body element itself, for replaying items verbatim.
	Value any
}

// Document is an opened .docx.
type Document struct {
	Docx *docx.Docx

	data  []byte
	zr    *zip.Reader
	items []Item
}

// Open reads and parses the .docx at p.
func Open(p string) (*Document, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return Parse(data)
}

// Read parses a .docx from r.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	return Parse(data)
}

// Parse parses an in-memory .docx, classifying every body item with
// DefaultMatchers.
func Parse(data []byte) (*Document, error) {
	f, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	d := &Document{Docx: f, data: data, zr: zr}
	raw, err := d.rawParagraphs()
	if err != nil {
		return nil, err
	}
	d.items = classify(f.Document.Body.Items, raw, DefaultMatchers)
	return d, nil
}

func classify(body []any, raw [][]byte, matchers []ImageMatcher) []Item {
	items := make([]Item, 0, len(body))
	pi := 0
	for _, v := range body {
		switch el := v.(type) {
		case *docx.Paragraph:
			it := Item{Para: el, Index: pi, Text: ParagraphText(el), Style: styleOf(el), Value: v}
			if pi < len(raw) {
				it.Raw = raw[pi]
			}
			switch {
			case HasImage(it, matchers):
				it.Kind = KindImage
			case strings.TrimSpace(it.Text) == "":
				it.Kind = KindBlank
			default:
				it.Kind = KindText
			}
			pi++
			items = append(items, it)
		case *docx.Table:
			items = append(items, Item{Kind: KindTable, Table: el, Index: -1, Value: v})
		default:
			items = append(items, Item{Kind: KindSection, Index: -1, Value: v})
		}
	}
	return items
}

// Items returns the body items in document order.
func (d *Document) Items() []Item { return d.items }

// Paragraphs returns only the paragraph items.
func (d *Document) Paragraphs() []Item {
	out := make([]Item, 0, len(d.items))
	for _, it := range d.items {
		if it.Para != nil {
			out = append(out, it)
		}
	}
	return out
}

// MediaFile is one binary under word/media/.
type MediaFile struct {
	Name string // base name, e.g. image1.png
	File *zip.File
}

// Open returns a reader over the media bytes.
func (m MediaFile) Open() (io.ReadCloser, error) { return m.File.Open() }

// Media lists word/media/* in archive order.
func (d *Document) Media() []MediaFile {
	var out []MediaFile
	for _, f := range d.zr.File {
		if !strings.HasPrefix(f.Name, docx.MEDIA_FOLDER) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		out = append(out, MediaFile{Name: path.Base(f.Name), File: f})
	}
	return out
}

// EmbedTarget resolves a relationship ID (r:embed) to a media base name.
func (d *Document) EmbedTarget(rid string) (string, bool) {
	if rid == "" {
		return "", false
	}
	tgt, err := d.Docx.ReferTarget(rid)
	if err != nil || tgt == "" {
		return "", false
	}
	return path.Base(tgt), true
}

// WriteTo serializes the document.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	return d.Docx.WriteTo(w)
}

// Save writes the document to p through a temporary file in the same
// directory, so p is either the complete new file or untouched.
func (d *Document) Save(p string) error {
	return Save(d.Docx, p)
}

// Save writes f to p through a temporary file and a rename.
func Save(f *docx.Docx, p string) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".docforge-*.docx.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write docx: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// Package officetest builds small .docx fixtures for tests.
package officetest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
)

// PNG returns a w by h single-color PNG.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// Builder appends body items to a new document.
type Builder struct {
	t testing.TB
	F *docx.Docx
}

func New(t testing.TB) *Builder {
	return &Builder{t: t, F: docx.New().WithDefaultTheme()}
}

func (b *Builder) Text(s string) *Builder {
	b.F.AddParagraph().AddText(s)
	return b
}

func (b *Builder) Heading(s string) *Builder {
	b.F.AddParagraph().Style("Heading1").AddText(s)
	return b
}

func (b *Builder) Blank() *Builder {
	b.F.AddParagraph()
	return b
}

// Image adds a paragraph holding one inline picture.
func (b *Builder) Image(data []byte) *Builder {
	b.t.Helper()
	if _, err := b.F.AddParagraph().AddInlineDrawing(data); err != nil {
		b.t.Fatalf("add drawing: %v", err)
	}
	return b
}

// CaptionedImage adds one paragraph holding a picture followed by caption.
func (b *Builder) CaptionedImage(data []byte, caption string) *Builder {
	b.t.Helper()
	p := b.F.AddParagraph()
	if _, err := p.AddInlineDrawing(data); err != nil {
		b.t.Fatalf("add drawing: %v", err)
	}
	p.AddText(caption)
	return b
}

// Table adds a rows by cols table.
func (b *Builder) Table(rows, cols int) *Builder {
	b.F.AddTable(rows, cols, 0, nil)
	return b
}

// Bytes finishes the document with an A4 section and serializes it.
func (b *Builder) Bytes() []byte {
	b.t.Helper()
	b.F.WithA4Page()
	var buf bytes.Buffer
	if _, err := b.F.WriteTo(&buf); err != nil {
		b.t.Fatalf("write docx: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes the document under dir and returns its path.
func (b *Builder) WriteFile(dir, name string) string {
	b.t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b.Bytes(), 0o644); err != nil {
		b.t.Fatalf("write %s: %v", p, err)
	}
	return p
}

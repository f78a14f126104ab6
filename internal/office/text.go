package office

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fumiama/go-docx"
)

// ParagraphText returns the visible text of a paragraph: text runs, tabs
// and line breaks, including those inside hyperlinks.
func ParagraphText(p *docx.Paragraph) string {
	var sb strings.Builder
	writeRun := func(r *docx.Run) {
		for _, c := range r.Children {
			switch x := c.(type) {
			case *docx.Text:
				sb.WriteString(x.Text)
			case *docx.Tab:
				sb.WriteByte('\t')
			case *docx.BarterRabbet:
				sb.WriteByte('\n')
			}
		}
	}
	for _, c := range p.Children {
		switch x := c.(type) {
		case *docx.Run:
			writeRun(x)
		case *docx.Hyperlink:
			writeRun(&x.Run)
		}
	}
	return sb.String()
}

func styleOf(p *docx.Paragraph) string {
	if p.Properties == nil || p.Properties.Style == nil {
		return ""
	}
	return p.Properties.Style.Val
}

// HeadingLevel returns 1-9 for heading styles and 0 otherwise. It accepts
// style IDs ("Heading2"), display names ("heading 2"), the Chinese
// "标题 2" and the bare numeric IDs localized Word versions write.
func HeadingLevel(style string) int {
	s := strings.ToLower(strings.TrimSpace(style))
	for _, prefix := range []string{"heading", "标题"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			rest = strings.TrimSpace(rest)
			if rest == "" {
				return 1
			}
			if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 9 {
				return n
			}
			return 0
		}
	}
	if s == "title" {
		return 1
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		return int(s[0] - '0')
	}
	return 0
}

// FullText joins the non-empty paragraph texts with blank lines.
func (d *Document) FullText() string {
	var parts []string
	for _, it := range d.items {
		if t := strings.TrimSpace(it.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// BodyText joins the text paragraphs with blank lines. Image paragraphs
// are left out, captions included, since a rewrite keeps them in place.
func (d *Document) BodyText() string {
	var parts []string
	for _, it := range d.items {
		if it.Kind != KindText {
			continue
		}
		if t := strings.TrimSpace(it.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HeadingSection is the text found under one heading paragraph.
type HeadingSection struct {
	Heading string
	Level   int
	Text    string
}

// ByHeadings groups paragraph text under the nearest preceding heading.
// Text before the first heading is dropped.
func (d *Document) ByHeadings() []HeadingSection {
	var (
		out  []HeadingSection
		cur  *HeadingSection
		body []string
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(body, "\n")
			out = append(out, *cur)
		}
		body = nil
	}
	for _, it := range d.items {
		text := strings.TrimSpace(it.Text)
		if lvl := HeadingLevel(it.Style); lvl > 0 && text != "" {
			flush()
			cur = &HeadingSection{Heading: text, Level: lvl}
			continue
		}
		if text != "" {
			body = append(body, text)
		}
	}
	flush()
	return out
}

// Stats summarizes a document.
type Stats struct {
	Paragraphs int `json:"paragraph_count"` // non-empty text paragraphs
	Headings   int `json:"heading_count"`
	Images     int `json:"image_count"`
	Tables     int `json:"table_count"`
	Words      int `json:"word_count"`
	Chars      int `json:"char_count"`
}

func (d *Document) Stats() Stats {
	var s Stats
	for _, it := range d.items {
		switch it.Kind {
		case KindImage:
			s.Images++
		case KindTable:
			s.Tables++
		}
		text := strings.TrimSpace(it.Text)
		if text == "" {
			continue
		}
		s.Paragraphs++
		s.Chars += utf8.RuneCountInString(it.Text)
		s.Words += countWords(text)
		if HeadingLevel(it.Style) > 0 {
			s.Headings++
		}
	}
	return s
}

// countWords counts whitespace-separated words, with each Han character
// counting as one word.
func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			n++
			inWord = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			inWord = false
		default:
			if !inWord {
				n++
				inWord = true
			}
		}
	}
	return n
}

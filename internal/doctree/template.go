package doctree

import (
	"fmt"
	"strings"
)

// SectionType tags how a section's content is shaped.
type SectionType string

const (
	SectionHeading  SectionType = "heading"
	SectionList     SectionType = "list"
	SectionNested   SectionType = "nested"
	SectionTable    SectionType = "table"
	SectionOptional SectionType = "optional"
)

// Valid reports whether t is one of the known section types.
func (t SectionType) Valid() bool {
	switch t {
	case SectionHeading, SectionList, SectionNested, SectionTable, SectionOptional:
		return true
	}
	return false
}

// Section is one named unit of a template. Subsections are owned by their
// parent; a section without a parent is a template root.
type Section struct {
	ID           string      `json:"id" yaml:"id"`
	Title        string      `json:"title" yaml:"title"`
	Type         SectionType `json:"section_type" yaml:"section_type"`
	WordCount    int         `json:"word_count,omitempty" yaml:"word_count,omitempty"`
	Requirements string      `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Subsections  []*Section  `json:"subsections,omitempty" yaml:"subsections,omitempty"`
	BulletPoints []string    `json:"bullet_points,omitempty" yaml:"bullet_points,omitempty"`
	IsOptional   bool        `json:"is_optional,omitempty" yaml:"is_optional,omitempty"`
	Placeholder  string      `json:"placeholder_template,omitempty" yaml:"placeholder_template,omitempty"`
}

// Keywords splits the requirements on whitespace.
func (s *Section) Keywords() []string {
	return strings.Fields(s.Requirements)
}

// Template is a named document layout: an ordered forest of sections.
// A template is read-only for the duration of a generation run.
type Template struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Description    string     `json:"description" yaml:"description"`
	Category       string     `json:"category" yaml:"category"`
	Sections       []*Section `json:"sections" yaml:"sections"`
	TotalWordCount int        `json:"total_word_count,omitempty" yaml:"total_word_count,omitempty"`
	CreatedBy      string     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	Version        string     `json:"version,omitempty" yaml:"version,omitempty"`
}

// Walk visits every section in pre-order with its depth (roots are 0).
// Returning false from fn skips that section's children.
func (t *Template) Walk(fn func(s *Section, depth int) bool) {
	var walk func(sections []*Section, depth int)
	walk = func(sections []*Section, depth int) {
		for _, s := range sections {
			if s == nil {
				continue
			}
			if fn(s, depth) {
				walk(s.Subsections, depth+1)
			}
		}
	}
	walk(t.Sections, 0)
}

// Flatten returns all sections in pre-order.
func (t *Template) Flatten() []*Section {
	var out []*Section
	t.Walk(func(s *Section, _ int) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Find returns the first section with the given ID in pre-order.
func (t *Template) Find(id string) *Section {
	var found *Section
	t.Walk(func(s *Section, _ int) bool {
		if found == nil && s.ID == id {
			found = s
		}
		return found == nil
	})
	return found
}

// Outline renders the section titles as an indented list, one per line.
func (t *Template) Outline() string {
	var sb strings.Builder
	t.Walk(func(s *Section, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(s.Title)
		if s.WordCount > 0 {
			fmt.Fprintf(&sb, " (约%d字)", s.WordCount)
		}
		sb.WriteString("\n")
		return true
	})
	return sb.String()
}

// Summary is the listing form of a template.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Sections    int    `json:"section_count"`
}

func (t *Template) Summary() Summary {
	return Summary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Sections:    len(t.Flatten()),
	}
}

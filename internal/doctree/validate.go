package doctree

import (
	"fmt"
	"regexp"
	"slices"
)

const (
	MaxSections       = 50
	MaxWordCount      = 10000
	MaxTotalWordCount = 100000
)

var templateIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Report is the outcome of Validate. A template with warnings but no
// errors is still usable; the warnings should be shown to whoever picked it.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether the template has no errors.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// ValidID reports whether id is made of letters, digits, '_' and '-'.
func ValidID(id string) bool {
	return templateIDPattern.MatchString(id)
}

// Validate checks structure and limits, then consistency.
func Validate(t *Template) Report {
	r := Report{Errors: []string{}, Warnings: []string{}}
	if t == nil {
		r.Errors = append(r.Errors, "template is nil")
		return r
	}

	if !ValidID(t.ID) {
		r.Errors = append(r.Errors, fmt.Sprintf("invalid template id %q: only letters, digits, '_' and '-' allowed", t.ID))
	}
	if t.Name == "" {
		r.Errors = append(r.Errors, "template must have a name")
	}
	switch {
	case len(t.Sections) == 0:
		r.Errors = append(r.Errors, "template must have at least one section")
	case len(t.Sections) > MaxSections:
		r.Errors = append(r.Errors, fmt.Sprintf("template has too many sections (%d), max %d", len(t.Sections), MaxSections))
	}
	for i, s := range t.Sections {
		for _, e := range validateSection(s) {
			r.Errors = append(r.Errors, fmt.Sprintf("section %d: %s", i+1, e))
		}
	}
	if t.TotalWordCount < 0 {
		r.Errors = append(r.Errors, "total_word_count must not be negative")
	}
	if t.TotalWordCount > MaxTotalWordCount {
		r.Errors = append(r.Errors, fmt.Sprintf("total_word_count too large (max %d)", MaxTotalWordCount))
	}

	r.Warnings = append(r.Warnings, consistencyWarnings(t)...)
	return r
}

func validateSection(s *Section) []string {
	if s == nil {
		return []string{"section is empty"}
	}
	var errs []string
	if s.ID == "" {
		errs = append(errs, "section must have an id")
	}
	if s.Title == "" {
		errs = append(errs, fmt.Sprintf("section %q must have a title", s.ID))
	}
	if !s.Type.Valid() {
		errs = append(errs, fmt.Sprintf("section %q has invalid section_type %q", s.ID, s.Type))
	}
	if s.WordCount < 0 {
		errs = append(errs, fmt.Sprintf("section %q: word_count must not be negative", s.ID))
	}
	if s.WordCount > MaxWordCount {
		errs = append(errs, fmt.Sprintf("section %q: word_count too large (max %d)", s.ID, MaxWordCount))
	}
	if s.Type == SectionList && len(s.BulletPoints) == 0 {
		errs = append(errs, fmt.Sprintf("section %q: list sections must have bullet_points", s.ID))
	}
	for i, sub := range s.Subsections {
		for _, e := range validateSection(sub) {
			errs = append(errs, fmt.Sprintf("section %q subsection %d: %s", s.ID, i+1, e))
		}
	}
	return errs
}

func consistencyWarnings(t *Template) []string {
	var warnings []string

	seen := map[string]int{}
	var order []string
	sum := 0
	t.Walk(func(s *Section, _ int) bool {
		if seen[s.ID] == 1 {
			order = append(order, s.ID)
		}
		seen[s.ID]++
		sum += s.WordCount
		return true
	})
	if len(order) > 0 {
		slices.Sort(order)
		warnings = append(warnings, fmt.Sprintf("duplicate section ids: %v", order))
	}

	if t.TotalWordCount > 0 && sum > 0 {
		total := float64(t.TotalWordCount)
		switch {
		case float64(sum) > total*1.5:
			warnings = append(warnings, fmt.Sprintf("section word counts (%d) significantly exceed template total (%d)", sum, t.TotalWordCount))
		case float64(sum) < total*0.5:
			warnings = append(warnings, fmt.Sprintf("section word counts (%d) significantly below template total (%d)", sum, t.TotalWordCount))
		}
	}
	return warnings
}

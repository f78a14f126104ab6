package rebuild

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/generate"
	"github.com/dgallion1/docforge/internal/images"
	"github.com/dgallion1/docforge/internal/office"
	"github.com/dgallion1/docforge/internal/placement"
)

// BuildOptions tweak BuildFromTemplate.
type BuildOptions struct {
	// Title, when set, is written as the first heading.
	Title string
	Log   *slog.Logger
}

// BuildFromTemplate writes a new document from generated section content.
// Sections are visited in pre-order: each present section gets its title
// as a heading, its content blocks and then the images placed on it.
// placements[i] belongs to imgs[i]. Sections absent from res are omitted,
// though their subsections are still visited. Images whose section is
// not written end up after the last section. An image that cannot be
// read or decoded is logged and skipped.
func BuildFromTemplate(t *doctree.Template, res generate.Result, placements []placement.Placement, imgs []images.Metadata, opts BuildOptions) (*docx.Docx, error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if len(placements) != len(imgs) {
		return nil, fmt.Errorf("build: %d placements for %d images", len(placements), len(imgs))
	}

	f := docx.New().WithDefaultTheme()
	if opts.Title != "" {
		p := f.AddParagraph()
		office.ApplyPara(p, headingPara)
		office.AddText(p, opts.Title, headingRun)
	}

	bySection := make(map[string][]images.Metadata)
	for i, pl := range placements {
		bySection[pl.SectionID] = append(bySection[pl.SectionID], imgs[i])
	}

	placeImages := func(list []images.Metadata) {
		for _, img := range list {
			data, err := os.ReadFile(img.Path)
			if err != nil {
				log.Warn("skip image", "file", img.Filename, "error", err)
				continue
			}
			p := f.AddParagraph()
			office.ApplyPara(p, imagePara)
			if _, err := office.AddImage(p, data, ImageWidth, ImageHeight); err != nil {
				log.Warn("skip image", "file", img.Filename, "error", err)
			}
		}
	}

	written := make(map[string]bool)
	if t != nil {
		t.Walk(func(s *doctree.Section, depth int) bool {
			content, ok := res[s.ID]
			if !ok {
				return true
			}
			written[s.ID] = true
			sectionHeading(f, s.Title, depth)
			for _, b := range SplitBlocks(content) {
				renderBlock(f, b)
			}
			placeImages(bySection[s.ID])
			return true
		})
	}

	var orphans []images.Metadata
	for i, pl := range placements {
		if !written[pl.SectionID] {
			orphans = append(orphans, imgs[i])
		}
	}
	if len(orphans) > 0 {
		log.Warn("images placed on sections that were not written; appending at end", "count", len(orphans))
		placeImages(orphans)
	}

	f.WithA4Page()
	return f, nil
}

func sectionHeading(f *docx.Docx, title string, depth int) {
	p := f.AddParagraph()
	if depth == 0 {
		office.ApplyPara(p, headingPara)
		office.AddText(p, title, headingRun)
	} else {
		office.ApplyPara(p, subheadingPara)
		office.AddText(p, title, subheadingRun)
	}
	level := min(depth+1, 9)
	p.Style(fmt.Sprintf("Heading%d", level))
}

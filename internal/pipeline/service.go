package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/generate"
	"github.com/dgallion1/docforge/internal/images"
	"github.com/dgallion1/docforge/internal/office"
	"github.com/dgallion1/docforge/internal/parser"
	"github.com/dgallion1/docforge/internal/placement"
	"github.com/dgallion1/docforge/internal/rebuild"
)

// Observer receives stage changes and progress lines while a flow runs.
// *Job implements it; the CLI drives a progress bar with it.
type Observer interface {
	Stage(status JobStatus, phase string)
	Message(msg string)
}

type nopObserver struct{}

func (nopObserver) Stage(JobStatus, string) {}
func (nopObserver) Message(string)          {}

// Service wires the core components into the format and generate flows.
// It is safe for concurrent use; per-run state lives on the stack.
type Service struct {
	Engine    *generate.Engine
	Polisher  *generate.Polisher
	Images    *images.Extractor
	Placer    *placement.Resolver
	Templates *doctree.Registry

	log *slog.Logger
}

func NewService(engine *generate.Engine, polisher *generate.Polisher, templates *doctree.Registry, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		Engine:    engine,
		Polisher:  polisher,
		Images:    images.NewExtractor(log),
		Placer:    placement.NewResolver(log),
		Templates: templates,
		log:       log,
	}
}

// FormatRequest describes a format run.
type FormatRequest struct {
	Data  []byte
	UseAI bool
}

// Format polishes the document's text (when UseAI is set) and rewrites the
// document around it, keeping images, blank lines and tables in place.
// A failed polish keeps the original text.
func (s *Service) Format(ctx context.Context, req FormatRequest, out string, obs Observer) (Summary, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	var sum Summary

	obs.Stage(StatusExtracting, "reading document")
	doc, err := office.Parse(req.Data)
	if err != nil {
		return sum, err
	}
	text := doc.BodyText()
	if strings.TrimSpace(text) == "" {
		return sum, errors.New("document has no text")
	}

	if req.UseAI && s.Polisher != nil {
		obs.Stage(StatusGenerating, "polishing text")
		polished, err := s.Polisher.Process(ctx, text)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			s.log.Warn("polish failed, keeping original text", "error", err)
			obs.Message("润色失败，保留原文")
			sum.PolishFailed = true
		case polished != "":
			text = polished
		}
	}

	obs.Stage(StatusRendering, "rebuilding document")
	rep := rebuild.Reformat(doc, text)
	sum.Blocks = rep.Blocks
	sum.Paragraphs = rep.Consumed
	sum.Images = rep.Images
	if rep.Appended > 0 {
		obs.Message(fmt.Sprintf("%d 段新增内容追加在文末", rep.Appended))
	}
	if err := doc.Save(out); err != nil {
		return sum, fmt.Errorf("save: %w", err)
	}
	return sum, nil
}

// GenerateRequest describes a templated generation run.
type GenerateRequest struct {
	Data       []byte
	Filename   string
	TemplateID string
	Outline    string
	Tone       string
	Mode       generate.Mode
}

// Generate extracts the source document's text and images, generates
// content for each template section, places the images and writes the
// new document. Image extraction failures are logged and leave the
// output without pictures.
func (s *Service) Generate(ctx context.Context, req GenerateRequest, out string, obs Observer) (Summary, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	var sum Summary

	tpl, err := s.Templates.Get(ctx, req.TemplateID)
	if err != nil {
		return sum, err
	}

	obs.Stage(StatusExtracting, "extracting source")
	doc, err := office.Parse(req.Data)
	if err != nil {
		return sum, err
	}
	run, err := s.Images.ExtractDocument(doc)
	if err != nil {
		s.log.Warn("image extraction failed, continuing without images", "error", err)
		run = &images.Run{}
	}
	defer run.Cleanup()
	sum.Images = len(run.Images)
	obs.Message(fmt.Sprintf("提取到 %d 张图片", len(run.Images)))

	tree := parser.FromDocument(doc, req.Filename)
	src := generate.NewChunkSource(tree, 0)

	obs.Stage(StatusGenerating, "generating sections")
	res, err := s.Engine.ForRun(req.Tone, obs.Message).Run(ctx, req.Mode, tpl, req.Outline, src)
	if err != nil {
		return sum, err
	}
	sum.Sections = len(res)

	obs.Stage(StatusPlacing, "placing images")
	placements := s.Placer.ResolveAll(run.Images, res, tpl)
	for _, p := range placements {
		if _, ok := res[p.SectionID]; ok {
			sum.Placed++
		}
	}

	obs.Stage(StatusRendering, "writing document")
	f, err := rebuild.BuildFromTemplate(tpl, res, placements, run.Images, rebuild.BuildOptions{Title: tpl.Name, Log: s.log})
	if err != nil {
		return sum, err
	}
	if err := office.Save(f, out); err != nil {
		return sum, fmt.Errorf("save: %w", err)
	}
	return sum, nil
}

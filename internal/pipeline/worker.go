package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/docforge/internal/generate"
)

// Worker processes a single document job.
type Worker struct {
	svc       *Service
	outputDir string
	log       *slog.Logger
}

func NewWorker(svc *Service, outputDir string, log *slog.Logger) *Worker {
	return &Worker{svc: svc, outputDir: outputDir, log: log}
}

// Process runs the job's flow and records the outcome on the job. The
// output file only appears once it is completely written.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "kind", job.Kind, "filename", job.Filename)
	data := job.takeInput()

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		log.Error("create output dir", "error", err)
		job.Fail("setup", err)
		return
	}
	out := filepath.Join(w.outputDir, job.ID+".docx")

	var (
		sum Summary
		err error
	)
	switch job.Kind {
	case KindFormat:
		sum, err = w.svc.Format(ctx, FormatRequest{Data: data, UseAI: job.UseAI}, out, job)
	case KindGenerate:
		sum, err = w.svc.Generate(ctx, GenerateRequest{
			Data:       data,
			Filename:   job.Filename,
			TemplateID: job.TemplateID,
			Outline:    job.Outline,
			Tone:       job.Tone,
			Mode:       job.Mode,
		}, out, job)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	if err != nil {
		phase := job.Snapshot().Phase
		if errors.Is(err, generate.ErrNoContent) {
			log.Warn("job produced no content")
		} else {
			log.Error("job failed", "phase", phase, "error", err)
		}
		job.Fail(phase, err)
		return
	}

	job.Complete(out, sum)
	log.Info("job completed",
		"sections", sum.Sections, "images", sum.Images, "placed", sum.Placed, "blocks", sum.Blocks)
}

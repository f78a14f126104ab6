package main

import (
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/dgallion1/docforge/internal/pipeline"
)

// progress shows pipeline stages on a bar. Messages replace the bar's
// description until the next stage begins.
type progress struct {
	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	stage string
}

var _ pipeline.Observer = (*progress)(nil)

func newProgress(w io.Writer, stages int, description string) *progress {
	return &progress{
		stage: description,
		bar: progressbar.NewOptions(stages,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(color.CyanString(description)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "|",
				BarEnd:        "|",
			}),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
}

func (p *progress) Stage(_ pipeline.JobStatus, phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = phase
	p.bar.Describe(color.CyanString(phase))
	_ = p.bar.Add(1)
}

func (p *progress) Message(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Describe(color.CyanString(p.stage) + " " + msg)
}

func (p *progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

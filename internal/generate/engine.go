// Package generate writes section content for a template by driving the
// completion service through a result cache and a retry policy.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docforge/internal/cache"
	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/llm"
	"github.com/dgallion1/docforge/internal/retry"
)

// ErrNoContent is returned by Run when no section produced usable text.
var ErrNoContent = errors.New("no usable content produced")

// errExhausted marks a call whose retries ran out. It keeps the empty
// fallback out of the cache.
var errExhausted = errors.New("completion attempts exhausted")

// Result maps section IDs to generated text. A missing key means the
// section failed or was never attempted.
type Result map[string]string

// Progress receives human-readable status lines. A nil Progress is valid.
type Progress func(string)

func (p Progress) report(format string, args ...any) {
	if p != nil {
		p(fmt.Sprintf(format, args...))
	}
}

// Mode selects a generation strategy.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeBatch      Mode = "batch"
	ModeParallel   Mode = "parallel"
)

// ParseMode maps a name to a Mode, defaulting to parallel.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSequential:
		return ModeSequential
	case ModeBatch:
		return ModeBatch
	default:
		return ModeParallel
	}
}

// Options tunes the engine's completion calls.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Workers     int    // parallel width
	MinLength   int    // parallel outputs shorter than this (in runes) are dropped
	Tone        string // e.g. "正式"
}

// DefaultOptions matches the service defaults.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.3,
		MaxTokens:   2000,
		Timeout:     15 * time.Second,
		Workers:     5,
		MinLength:   50,
		Tone:        "正式",
	}
}

// Engine generates section content. It owns its cache; the cache is the
// only state shared between parallel tasks.
type Engine struct {
	llm   llm.Completer
	cache *cache.Cache
	retry retry.Policy
	opts  Options
	log   *slog.Logger

	Progress Progress
}

// NewEngine creates an Engine. A nil cache gets a fresh one with the
// default TTL; zero option fields take their defaults.
func NewEngine(c llm.Completer, rc *cache.Cache, policy retry.Policy, opts Options, log *slog.Logger) *Engine {
	def := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.MinLength <= 0 {
		opts.MinLength = def.MinLength
	}
	if rc == nil {
		rc = cache.New(cache.DefaultTTL)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if policy.Log == nil {
		policy.Log = log
	}
	return &Engine{llm: c, cache: rc, retry: policy, opts: opts, log: log}
}

// ForRun returns a copy of e for a single run with its own tone and
// progress sink. The copy shares the completer, cache and retry policy.
func (e *Engine) ForRun(tone string, p Progress) *Engine {
	c := *e
	if tone = strings.TrimSpace(tone); tone != "" {
		c.opts.Tone = tone
	}
	c.Progress = p
	return &c
}

func (e *Engine) request(system, user string) llm.Request {
	return llm.Request{
		Model: e.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
		Timeout:     e.opts.Timeout,
	}
}

// call runs one prompt through the cache and the retry policy with the
// empty fallback. Exhausted retries come back as ("", nil) and are not
// cached.
func (e *Engine) call(ctx context.Context, system, user string) (string, error) {
	out, err := e.cache.GetOrCompute(user, func() (string, error) {
		out, err := e.retry.Do(ctx, user, retry.Empty, func(ctx context.Context) (string, error) {
			return e.llm.Complete(ctx, e.request(system, user))
		})
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", errExhausted
		}
		return out, nil
	})
	if errors.Is(err, errExhausted) {
		return "", nil
	}
	return strings.TrimSpace(out), err
}

// GenerateOne writes the content for a single section. An empty string with
// a nil error means the remote service stayed unavailable.
func (e *Engine) GenerateOne(ctx context.Context, s *doctree.Section, outline, excerpt string) (string, error) {
	out, err := e.call(ctx, sectionSystemPrompt, sectionPrompt(s, outline, excerpt, e.opts.Tone))
	if err != nil {
		return "", fmt.Errorf("generate section %s: %w", s.ID, err)
	}
	return out, nil
}

// Run dispatches to the strategy named by mode. It returns ErrNoContent
// when every section came back absent.
func (e *Engine) Run(ctx context.Context, mode Mode, t *doctree.Template, outline string, src Source) (Result, error) {
	if src == nil {
		src = StaticSource("")
	}
	if outline == "" {
		outline = t.Outline()
	}

	var (
		res Result
		err error
	)
	switch mode {
	case ModeSequential:
		res, err = e.Sequential(ctx, t, outline, src)
	case ModeBatch:
		res, err = e.Batch(ctx, t, outline, src)
	default:
		res, err = e.Parallel(ctx, t, outline, src)
	}
	if err != nil {
		return res, err
	}
	if len(res) == 0 {
		return res, ErrNoContent
	}
	return res, nil
}

// Sequential walks the template in pre-order, recording each non-empty
// result before visiting the section's children. Only context
// cancellation is returned as an error.
func (e *Engine) Sequential(ctx context.Context, t *doctree.Template, outline string, src Source) (Result, error) {
	res := Result{}
	total := len(t.Flatten())
	done := 0
	var ctxErr error

	t.Walk(func(s *doctree.Section, _ int) bool {
		if ctxErr != nil {
			return false
		}
		done++
		e.Progress.report("generating %d/%d: %s", done, total, s.Title)

		out, err := e.GenerateOne(ctx, s, outline, excerpt(src, s))
		switch {
		case ctx.Err() != nil:
			ctxErr = ctx.Err()
			return false
		case err != nil:
			e.log.Warn("section generation failed", "section", s.ID, "error", err)
		case out == "":
			e.log.Warn("section generation returned nothing", "section", s.ID)
		default:
			res[s.ID] = out
		}
		return true
	})
	return res, ctxErr
}

// Batch asks for every section in one call and splits the response at the
// section titles. Any failure, including a response in which no title can
// be found, falls back to Sequential for the whole template.
func (e *Engine) Batch(ctx context.Context, t *doctree.Template, outline string, src Source) (Result, error) {
	flat := t.Flatten()
	e.Progress.report("generating %d sections in one request", len(flat))

	out, err := e.call(ctx, batchSystemPrompt, batchPrompt(flat, outline, all(src, flat), e.opts.Tone))
	if err == nil && out == "" {
		err = errExhausted
	}
	var res Result
	if err == nil {
		res = splitBatch(out, flat)
		if len(res) == 0 {
			err = errors.New("batch response matched no section titles")
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		e.log.Warn("batch generation failed, falling back to sequential", "error", err)
		e.Progress.report("batch failed, generating section by section")
		return e.Sequential(ctx, t, outline, src)
	}
	return res, nil
}

// splitBatch assigns response lines to sections. Titles are matched in
// tree order: a line only opens a section at or after the one most
// recently opened, so a repeated title goes to the next section that has
// it. Text before the first matched title is dropped.
func splitBatch(text string, flat []*doctree.Section) Result {
	bodies := make([][]string, len(flat))
	cur, next := -1, 0

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if h := headingText(line); h != "" {
			if j := matchTitle(h, flat, next); j >= 0 {
				cur, next = j, j+1
				continue
			}
		}
		if cur >= 0 {
			bodies[cur] = append(bodies[cur], line)
		}
	}

	res := Result{}
	for i, lines := range bodies {
		if body := strings.TrimSpace(strings.Join(lines, "\n")); body != "" {
			res[flat[i].ID] = body
		}
	}
	return res
}

// headingText returns the title on a markdown-ish heading line, or "" if
// the line is not a heading.
func headingText(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "**") && !strings.HasPrefix(line, "【") {
		return ""
	}
	return normalizeTitle(line)
}

func normalizeTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#* 【")
	s = strings.TrimRight(s, "*：: 】")
	return strings.TrimSpace(s)
}

func matchTitle(h string, flat []*doctree.Section, from int) int {
	for j := from; j < len(flat); j++ {
		if normalizeTitle(flat[j].Title) == h {
			return j
		}
	}
	return -1
}

type slot struct {
	out string
	err error
}

// Parallel generates every section concurrently, at most Workers at a
// time. Each task writes only its own slot and never returns an error to
// the group, so one failure cannot cancel its siblings.
func (e *Engine) Parallel(ctx context.Context, t *doctree.Template, outline string, src Source) (Result, error) {
	flat := t.Flatten()
	slots := make([]slot, len(flat))

	var (
		mu   sync.Mutex
		done int
	)
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, s := range flat {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slots[i] = slot{err: fmt.Errorf("panic: %v", r)}
				}
				mu.Lock()
				done++
				e.Progress.report("generated %d/%d: %s", done, len(flat), s.Title)
				mu.Unlock()
			}()
			out, err := e.GenerateOne(ctx, s, outline, excerpt(src, s))
			slots[i] = slot{out: out, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{}
	for i, s := range flat {
		sl := slots[i]
		switch {
		case sl.err != nil:
			e.log.Warn("section generation failed", "section", s.ID, "error", sl.err)
		case len([]rune(sl.out)) < e.opts.MinLength:
			e.log.Warn("section output below minimum length",
				"section", s.ID, "runes", len([]rune(sl.out)), "min", e.opts.MinLength)
		default:
			res[s.ID] = sl.out
		}
	}
	return res, nil
}

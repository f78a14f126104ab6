// Package extract pulls named fields out of free text with the completion
// service, checking the answers against the source.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgallion1/docforge/internal/llm"
	"github.com/dgallion1/docforge/internal/retry"
)

// ErrUnknownTemplate is returned for an extraction template name that is
// not in Templates.
var ErrUnknownTemplate = errors.New("unknown extraction template")

// Templates are the built-in field sets.
var Templates = map[string][]string{
	"cause_process_result": {"原因", "过程", "结果"},
	"problem_solution":     {"问题", "解决方案"},
	"summary_bullets":      {"要点"},
}

// TemplateNames lists the built-in templates in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(Templates))
	for n := range Templates {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

const defaultMaxChars = 1000

// Extractor asks the model for a fixed set of fields.
type Extractor struct {
	llm      llm.Completer
	retry    retry.Policy
	model    string
	timeout  time.Duration
	maxChars int
	log      *slog.Logger
}

func New(c llm.Completer, policy retry.Policy, model string, timeout time.Duration, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if policy.Log == nil {
		policy.Log = log
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Extractor{llm: c, retry: policy, model: model, timeout: timeout, maxChars: defaultMaxChars, log: log}
}

// StructureNamed extracts the fields of a built-in template.
func (x *Extractor) StructureNamed(ctx context.Context, text, name string) (map[string]string, error) {
	fields, ok := Templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return x.Structure(ctx, text, fields)
}

// Structure extracts fields from text. Empty text yields an empty map. Too
// long text, a failed call or an unparsable answer yield every field empty.
// Only context cancellation is returned as an error.
func (x *Extractor) Structure(ctx context.Context, text string, fields []string) (map[string]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]string{}, nil
	}
	if n := len([]rune(text)); n > x.maxChars {
		x.log.Warn("text too long to extract", "runes", n, "max", x.maxChars)
		return emptyFields(fields), nil
	}

	prompt := BuildPrompt(fields, text)
	resp, err := x.retry.Do(ctx, prompt, retry.Empty, func(ctx context.Context) (string, error) {
		return x.llm.Complete(ctx, llm.Request{
			Model: x.model,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: systemPrompt},
				{Role: llm.RoleUser, Content: prompt},
			},
			Temperature: 0.1,
			MaxTokens:   1000,
			Timeout:     x.timeout,
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		x.log.Warn("extraction call failed", "error", err)
		return emptyFields(fields), nil
	}

	out := ParseResponse(resp, fields)
	if bad := Ungrounded(out, text); len(bad) > 0 {
		slices.Sort(bad)
		x.log.Warn("extracted values not found in source", "fields", bad)
	}
	return out, nil
}

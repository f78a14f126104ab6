package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docforge/internal/cache"
	"github.com/dgallion1/docforge/internal/llm"
	"github.com/dgallion1/docforge/internal/retry"
)

// DefaultMaxPolishChars is the longest input the polisher sends out.
const DefaultMaxPolishChars = 1000

// Polisher rewrites free text into tidier, paragraphed prose. Transient
// failures degrade to the input text; an empty response is an error.
type Polisher struct {
	llm      llm.Completer
	cache    *cache.Cache
	retry    retry.Policy
	model    string
	timeout  time.Duration
	maxChars int
	log      *slog.Logger
}

func NewPolisher(c llm.Completer, rc *cache.Cache, policy retry.Policy, model string, timeout time.Duration, maxChars int, log *slog.Logger) *Polisher {
	if rc == nil {
		rc = cache.New(cache.DefaultTTL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxPolishChars
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if policy.Log == nil {
		policy.Log = log
	}
	return &Polisher{llm: c, cache: rc, retry: policy, model: model, timeout: timeout, maxChars: maxChars, log: log}
}

// Process polishes raw. Empty input yields "". Input longer than the
// configured limit is returned trimmed but otherwise untouched.
func (p *Polisher) Process(ctx context.Context, raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", nil
	}
	if n := len([]rune(text)); n > p.maxChars {
		p.log.Warn("text too long to polish, keeping original", "runes", n, "max", p.maxChars)
		return text, nil
	}

	// Fallbacks are never cached so a recovered backend gets another try.
	policy := p.retry
	exhausted := false
	policy.OnFallback = func(fb retry.Fallback, err error) {
		exhausted = true
		if p.retry.OnFallback != nil {
			p.retry.OnFallback(fb, err)
		}
	}
	out, err := p.cache.GetOrCompute(text, func() (string, error) {
		out, err := policy.Do(ctx, text, retry.KeepInput, func(ctx context.Context) (string, error) {
			out, err := p.llm.Complete(ctx, llm.Request{
				Model: p.model,
				Messages: []llm.Message{
					{Role: llm.RoleSystem, Content: polishSystemPrompt},
					{Role: llm.RoleUser, Content: fmt.Sprintf(polishPrompt, text)},
				},
				Temperature: 0.3,
				MaxTokens:   2000,
				Timeout:     p.timeout,
			})
			if err != nil {
				return "", err
			}
			out = strings.TrimSpace(out)
			if out == "" {
				return "", &llm.MalformedError{Message: "empty polish response"}
			}
			return out, nil
		})
		if err != nil {
			return "", err
		}
		if exhausted {
			return "", errExhausted
		}
		return out, nil
	})
	if errors.Is(err, errExhausted) {
		return text, nil
	}
	if err != nil {
		return "", fmt.Errorf("polish: %w", err)
	}
	return out, nil
}

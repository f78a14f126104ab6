package llm

import (
	"context"
	"fmt"
	"time"
)

// Options selects and configures a completion backend.
type Options struct {
	Provider   string // openai, claude or gemini
	APIKey     string
	BaseURL    string
	Model      string
	RatePerSec float64
	StatsAge   time.Duration
}

// New builds the configured backend wrapped with rate limiting and latency
// stats.
func New(ctx context.Context, opts Options) (*Metered, error) {
	var base Completer
	switch opts.Provider {
	case "openai", "":
		base = NewOpenAIClient(opts.APIKey, opts.BaseURL, opts.Model)
	case "claude":
		c := NewClaudeClient(opts.APIKey, opts.Model)
		if opts.BaseURL != "" {
			c.WithURL(opts.BaseURL)
		}
		base = c
	case "gemini":
		g, err := NewGeminiClient(ctx, opts.APIKey, opts.Model)
		if err != nil {
			return nil, err
		}
		base = g
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
	return NewMetered(NewRateLimited(base, opts.RatePerSec), opts.Model, NewLLMStats(opts.StatsAge)), nil
}

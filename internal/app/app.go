// Package app assembles the docforge components from configuration. The
// server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docforge/internal/cache"
	"github.com/dgallion1/docforge/internal/config"
	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/extract"
	"github.com/dgallion1/docforge/internal/generate"
	"github.com/dgallion1/docforge/internal/llm"
	"github.com/dgallion1/docforge/internal/pathstore"
	"github.com/dgallion1/docforge/internal/pipeline"
	"github.com/dgallion1/docforge/internal/retry"
)

// App holds the wired components.
type App struct {
	LLM       *llm.Metered
	Cache     *cache.Cache
	Policy    retry.Policy
	Templates *doctree.Registry
	Store     *pathstore.Client // nil without PATHSTORE_URL
	Service   *pipeline.Service
	Extractor *extract.Extractor
}

// New builds the completion backend, the template registry and the
// generation service. c overrides the configured backend when non-nil.
func New(ctx context.Context, cfg config.Config, c llm.Completer, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	a := &App{
		Cache: cache.New(cfg.CacheTTL),
		Policy: retry.Policy{
			MaxRetries:    cfg.RetryMax,
			BackoffFactor: cfg.RetryBackoffFactor,
			InitialWait:   cfg.RetryInitialWait,
			Log:           log,
		},
	}

	if c == nil {
		m, err := llm.New(ctx, llm.Options{
			Provider:   cfg.LLMProvider,
			APIKey:     cfg.LLMAPIKey,
			BaseURL:    cfg.LLMBaseURL,
			Model:      cfg.LLMModel,
			RatePerSec: cfg.LLMRatePerSec,
		})
		if err != nil {
			return nil, fmt.Errorf("llm backend: %w", err)
		}
		a.LLM = m
		c = m
	}

	var remote doctree.RemoteSource
	if cfg.PathstoreURL != "" {
		a.Store = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		remote = a.Store
	}
	a.Templates = doctree.NewRegistry(remote, log)
	if cfg.TemplateDir != "" {
		if err := a.Templates.AddDir(cfg.TemplateDir); err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
	}

	opts := generate.DefaultOptions()
	opts.Model = cfg.LLMModel
	opts.Temperature = cfg.LLMTemperature
	opts.MaxTokens = cfg.LLMMaxTokens
	opts.Timeout = cfg.LLMTimeout
	opts.Workers = cfg.GenerationWorkers
	eng := generate.NewEngine(c, a.Cache, a.Policy, opts, log)
	pol := generate.NewPolisher(c, a.Cache, a.Policy, cfg.LLMModel, cfg.LLMTimeout, cfg.MaxPolishChars, log)
	a.Service = pipeline.NewService(eng, pol, a.Templates, log)
	a.Extractor = extract.New(c, a.Policy, cfg.LLMModel, cfg.LLMTimeout, log)

	log.Info("components ready",
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"templates", len(a.Templates.List(ctx)),
		"remote_templates", a.Store != nil,
	)
	return a, nil
}

// Close releases network resources.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

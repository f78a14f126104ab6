package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docforge/internal/config"
	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/extract"
	"github.com/dgallion1/docforge/internal/llm"
	"github.com/dgallion1/docforge/internal/pipeline"
)

// TemplateStore persists templates saved through the API.
type TemplateStore interface {
	PutTemplate(ctx context.Context, t *doctree.Template) error
}

// Server is the HTTP API server for docforge.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	templates    *doctree.Registry
	store        TemplateStore
	extractor    *extract.Extractor
	llm          *llm.Metered
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. metered may be nil, in
// which case the LLM stats endpoint reports itself unavailable.
func NewServer(orch *pipeline.Orchestrator, templates *doctree.Registry, metered *llm.Metered, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		orchestrator: orch,
		templates:    templates,
		llm:          metered,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

// WithTemplateStore enables persisting templates saved through the API.
func (s *Server) WithTemplateStore(store TemplateStore) *Server {
	s.store = store
	return s
}

// WithExtractor enables the structured extraction endpoint.
func (s *Server) WithExtractor(x *extract.Extractor) *Server {
	s.extractor = x
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.DocforgeAPIKey, s.log))

		r.Post("/api/format", s.handleFormat)
		r.Post("/api/generate", s.handleGenerate)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/download", s.handleJobDownload)

		r.Get("/api/templates", s.handleListTemplates)
		r.Post("/api/templates/validate", s.handleValidateTemplate)
		r.Get("/api/templates/{templateID}", s.handleGetTemplate)
		r.Put("/api/templates/{templateID}", s.handlePutTemplate)

		r.Post("/api/segment", s.handleSegment)
		r.Get("/api/extract/templates", s.handleExtractTemplates)
		r.Post("/api/extract", s.handleExtract)
		r.Post("/api/documents/stats", s.handleDocumentStats)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

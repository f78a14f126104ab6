package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docforge/internal/doctree"
)

// maxTemplateBytes bounds template bodies posted for validation or saving.
const maxTemplateBytes = 1 << 20

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list := s.templates.List(r.Context())
	out := make([]doctree.Summary, 0, len(list))
	for _, t := range list {
		out = append(out, t.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.Get(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		code := http.StatusNotFound
		if !errors.Is(err, doctree.ErrTemplateNotFound) {
			code = http.StatusBadGateway
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// readTemplate parses a YAML or JSON template from the request body.
func readTemplate(w http.ResponseWriter, r *http.Request) (*doctree.Template, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateBytes))
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	t, err := doctree.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"valid":  false,
			"report": doctree.Report{Errors: []string{err.Error()}, Warnings: []string{}},
		})
		return nil, false
	}
	return t, true
}

func (s *Server) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := readTemplate(w, r)
	if !ok {
		return
	}
	rep := doctree.Validate(t)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  rep.OK(),
		"report": rep,
	})
}

func (s *Server) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := readTemplate(w, r)
	if !ok {
		return
	}
	if id := chi.URLParam(r, "templateID"); t.ID != id {
		jsonError(w, "template id does not match the url", http.StatusBadRequest)
		return
	}
	rep, err := s.templates.Add(t)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"valid": false, "report": rep})
		return
	}
	persisted := false
	if s.store != nil {
		if err := s.store.PutTemplate(r.Context(), t); err != nil {
			s.log.Error("persist template", "template_id", t.ID, "error", err)
			jsonError(w, "template registered but not persisted: "+err.Error(), http.StatusBadGateway)
			return
		}
		persisted = true
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"template":  t.Summary(),
		"report":    rep,
		"persisted": persisted,
	})
}

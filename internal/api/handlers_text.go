package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/docforge/internal/chunker"
	"github.com/dgallion1/docforge/internal/extract"
	"github.com/dgallion1/docforge/internal/office"
)

// maxTextBytes bounds JSON text payloads.
const maxTextBytes = 4 << 20

type segmentRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if !decodeJSON(w, r, maxTextBytes, &req) {
		return
	}
	mode := chunker.ParseMode(req.Mode)
	segs := chunker.SegmentText(req.Text, mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":     mode,
		"count":    len(segs),
		"segments": segs,
	})
}

type extractRequest struct {
	Text     string   `json:"text"`
	Template string   `json:"template"`
	Fields   []string `json:"fields"`
}

func (s *Server) handleExtractTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": extract.Templates,
		"names":     extract.TemplateNames(),
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		jsonError(w, "extraction unavailable", http.StatusServiceUnavailable)
		return
	}
	var req extractRequest
	if !decodeJSON(w, r, maxTextBytes, &req) {
		return
	}

	var (
		out map[string]string
		err error
	)
	switch {
	case req.Template != "":
		out, err = s.extractor.StructureNamed(r.Context(), req.Text, req.Template)
	case len(req.Fields) > 0:
		out, err = s.extractor.Structure(r.Context(), req.Text, req.Fields)
	default:
		jsonError(w, "template or fields is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		if errors.Is(err, extract.ErrUnknownTemplate) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": out})
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	doc, err := office.Parse(up.Data)
	if err != nil {
		jsonError(w, "not a readable docx: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	type heading struct {
		Text  string `json:"text"`
		Level int    `json:"level"`
	}
	var headings []heading
	for _, h := range doc.ByHeadings() {
		headings = append(headings, heading{Text: h.Heading, Level: h.Level})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename": up.Filename,
		"stats":    doc.Stats(),
		"headings": headings,
	})
}

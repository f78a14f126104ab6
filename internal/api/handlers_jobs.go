package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docforge/internal/generate"
	"github.com/dgallion1/docforge/internal/pipeline"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	useAI := true
	if v := r.FormValue("use_ai"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, "use_ai must be true or false", http.StatusBadRequest)
			return
		}
		useAI = b
	}

	job := pipeline.NewJob(pipeline.KindFormat, up.Filename, up.Data)
	job.UseAI = useAI
	s.submit(w, job)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	templateID := strings.TrimSpace(r.FormValue("template_id"))
	if templateID == "" {
		jsonError(w, "template_id is required", http.StatusBadRequest)
		return
	}
	if _, err := s.templates.Get(r.Context(), templateID); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	mode := r.FormValue("mode")
	if mode == "" {
		mode = s.cfg.GenerationMode
	}

	job := pipeline.NewJob(pipeline.KindGenerate, up.Filename, up.Data)
	job.TemplateID = templateID
	job.Outline = r.FormValue("outline")
	job.Tone = r.FormValue("tone")
	job.Mode = generate.ParseMode(mode)
	s.submit(w, job)
}

func (s *Server) submit(w http.ResponseWriter, job *pipeline.Job) {
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("job queued", "job_id", job.ID, "kind", job.Kind, "filename", job.Filename)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       job.ID,
		"kind":         job.Kind,
		"status":       pipeline.StatusQueued,
		"status_url":   fmt.Sprintf("/api/jobs/%s/status", job.ID),
		"download_url": fmt.Sprintf("/api/jobs/%s/download", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobDownload(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Download {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job output is not ready",
			"status": snap.Status,
		})
		return
	}

	f, err := os.Open(job.OutputPath())
	if err != nil {
		s.log.Error("open job output", "job_id", job.ID, "error", err)
		jsonError(w, "job output is gone", http.StatusGone)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "job output is unreadable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", docxContentType)
	name := downloadName(snap)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q; filename*=UTF-8''%s`, name, url.PathEscape(name)))
	http.ServeContent(w, r, "", info.ModTime(), f)
}

// downloadName derives the served file name from the uploaded one.
func downloadName(snap pipeline.JobSnapshot) string {
	base := strings.TrimSuffix(snap.Filename, filepath.Ext(snap.Filename))
	if base == "" {
		base = "document"
	}
	switch snap.Kind {
	case pipeline.KindGenerate:
		return base + "_" + snap.TemplateID + ".docx"
	default:
		return base + "_formatted.docx"
	}
}

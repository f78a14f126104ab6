package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docforge/internal/config"
	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/extract"
	"github.com/dgallion1/docforge/internal/generate"
	"github.com/dgallion1/docforge/internal/llm"
	"github.com/dgallion1/docforge/internal/office/officetest"
	"github.com/dgallion1/docforge/internal/pipeline"
	"github.com/dgallion1/docforge/internal/retry"
)

const testKey = "test-key"

// stubLLM answers section prompts with a paragraph naming the section,
// extraction prompts with a JSON object, and anything else with two
// polished paragraphs.
func stubLLM(ctx context.Context, req llm.Request) (string, error) {
	user := req.Messages[len(req.Messages)-1].Content
	if title, ok := strings.CutPrefix(strings.SplitN(user, "\n", 2)[0], "章节："); ok {
		return title + "：" + strings.Repeat("各项工作按计划推进，", 8), nil
	}
	if strings.Contains(user, "JSON") {
		return `{"问题": "服务器宕机", "解决方案": "重启服务"}`, nil
	}
	return "润色后的第一段。\n\n润色后的第二段。", nil
}

type testEnv struct {
	srv  *Server
	orch *pipeline.Orchestrator
	reg  *doctree.Registry
}

func newTestEnv(t *testing.T, start bool) *testEnv {
	t.Helper()
	reg := doctree.NewRegistry(nil, nil)
	if _, err := reg.Add(&doctree.Template{
		ID:   "brief",
		Name: "简报",
		Sections: []*doctree.Section{
			{ID: "progress", Title: "项目进展", Type: doctree.SectionHeading, Requirements: "进度 里程碑"},
			{ID: "issues", Title: "存在问题", Type: doctree.SectionHeading},
		},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	c := llm.CompleterFunc(stubLLM)
	policy := retry.Default()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	eng := generate.NewEngine(c, nil, policy, generate.Options{}, nil)
	pol := generate.NewPolisher(c, nil, policy, "", 0, 0, nil)
	svc := pipeline.NewService(eng, pol, reg, nil)

	cfg := config.Config{
		DocforgeAPIKey: testKey,
		GenerationMode: "parallel",
		WorkerCount:    2,
		MaxQueueSize:   4,
		JobTTL:         time.Hour,
		MaxUploadBytes: 10 << 20,
		OutputDir:      t.TempDir(),
	}
	orch := pipeline.NewOrchestrator(cfg, svc, nil)
	if start {
		orch.Start(context.Background())
	}
	t.Cleanup(orch.Stop)

	srv := NewServer(orch, reg, nil, nil, cfg).
		WithExtractor(extract.New(c, policy, "", 0, nil))
	return &testEnv{srv: srv, orch: orch, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func sourceDoc(t *testing.T) []byte {
	t.Helper()
	pic := officetest.PNG(t, 16, 16, color.RGBA{B: 200, A: 255})
	return officetest.New(t).
		Heading("概述").
		Text("本月项目进展顺利，完成了第二阶段的里程碑。").
		Image(pic).
		Text("下月计划开展验收测试。").
		Bytes()
}

func waitJob(t *testing.T, e *testEnv, id string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := e.do(t, http.MethodGet, "/api/jobs/"+id+"/status", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status code = %d: %s", rec.Code, rec.Body.String())
		}
		snap := decode(t, rec)
		if s := snap["status"]; s == "completed" || s == "failed" {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func TestHealth_NoAuth(t *testing.T) {
	e := newTestEnv(t, false)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("status = %v", got)
	}
}

func TestAuth(t *testing.T) {
	e := newTestEnv(t, false)
	for name, header := range map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"scheme":  "Basic " + testKey,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		e.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: code = %d", name, rec.Code)
		}
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	e := newTestEnv(t, true)
	body, ct := multipartBody(t, "报告.docx", sourceDoc(t), map[string]string{"use_ai": "true"})
	rec := e.do(t, http.MethodPost, "/api/format", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	id, _ := resp["job_id"].(string)
	if id == "" || resp["status_url"] != "/api/jobs/"+id+"/status" {
		t.Fatalf("unexpected response %v", resp)
	}

	snap := waitJob(t, e, id)
	if snap["status"] != "completed" {
		t.Fatalf("job = %v", snap)
	}
	if snap["download_ready"] != true {
		t.Errorf("download_ready = %v", snap["download_ready"])
	}

	dl := e.do(t, http.MethodGet, "/api/jobs/"+id+"/download", nil, "")
	if dl.Code != http.StatusOK {
		t.Fatalf("download code = %d: %s", dl.Code, dl.Body.String())
	}
	if ct := dl.Header().Get("Content-Type"); ct != docxContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "报告_formatted.docx") {
		t.Errorf("content disposition = %q", cd)
	}
	if !bytes.HasPrefix(dl.Body.Bytes(), []byte("PK")) {
		t.Error("download is not a zip archive")
	}
}

func TestFormat_BadUseAI(t *testing.T) {
	e := newTestEnv(t, false)
	body, ct := multipartBody(t, "a.docx", sourceDoc(t), map[string]string{"use_ai": "maybe"})
	if rec := e.do(t, http.MethodPost, "/api/format", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestUpload_RejectsNonDocx(t *testing.T) {
	e := newTestEnv(t, false)
	body, ct := multipartBody(t, "notes.txt", []byte("hello"), nil)
	rec := e.do(t, http.MethodPost, "/api/format", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
	if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, ".txt") {
		t.Errorf("error = %q", msg)
	}
}

func TestGenerate_RoundTrip(t *testing.T) {
	e := newTestEnv(t, true)
	body, ct := multipartBody(t, "月报.docx", sourceDoc(t), map[string]string{
		"template_id": "brief",
		"tone":        "简洁",
		"mode":        "sequential",
	})
	rec := e.do(t, http.MethodPost, "/api/generate", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	id := decode(t, rec)["job_id"].(string)

	snap := waitJob(t, e, id)
	if snap["status"] != "completed" {
		t.Fatalf("job = %v", snap)
	}
	sum, _ := snap["summary"].(map[string]any)
	if sum["sections_generated"] != float64(2) {
		t.Errorf("summary = %v", sum)
	}
	dl := e.do(t, http.MethodGet, "/api/jobs/"+id+"/download", nil, "")
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "月报_brief.docx") {
		t.Errorf("content disposition = %q", cd)
	}
}

func TestGenerate_Validation(t *testing.T) {
	e := newTestEnv(t, false)

	body, ct := multipartBody(t, "a.docx", sourceDoc(t), nil)
	if rec := e.do(t, http.MethodPost, "/api/generate", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("missing template_id: code = %d", rec.Code)
	}

	body, ct = multipartBody(t, "a.docx", sourceDoc(t), map[string]string{"template_id": "nope"})
	if rec := e.do(t, http.MethodPost, "/api/generate", body, ct); rec.Code != http.StatusNotFound {
		t.Errorf("unknown template: code = %d", rec.Code)
	}
}

func TestJobs_NotFoundAndNotReady(t *testing.T) {
	e := newTestEnv(t, false)
	if rec := e.do(t, http.MethodGet, "/api/jobs/missing/status", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("status code = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/jobs/missing/download", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("download code = %d", rec.Code)
	}

	// Workers are not running, so the job stays queued.
	body, ct := multipartBody(t, "a.docx", sourceDoc(t), nil)
	id := decode(t, e.do(t, http.MethodPost, "/api/format", body, ct))["job_id"].(string)
	rec := e.do(t, http.MethodGet, "/api/jobs/"+id+"/download", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "queued" {
		t.Errorf("status = %v", got)
	}
}

func TestTemplates_ListAndGet(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodGet, "/api/templates", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var list struct {
		Templates []doctree.Summary `json:"templates"`
	}
	json.Unmarshal(rec.Body.Bytes(), &list)
	var found bool
	for _, s := range list.Templates {
		if s.ID == "brief" {
			found = s.Sections == 2
		}
	}
	if !found {
		t.Errorf("brief missing from %+v", list.Templates)
	}

	rec = e.do(t, http.MethodGet, "/api/templates/brief", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get code = %d", rec.Code)
	}
	var tpl doctree.Template
	json.Unmarshal(rec.Body.Bytes(), &tpl)
	if tpl.Name != "简报" || len(tpl.Sections) != 2 {
		t.Errorf("template = %+v", tpl)
	}

	if rec := e.do(t, http.MethodGet, "/api/templates/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown code = %d", rec.Code)
	}
}

const validYAML = `
id: weekly
name: 周报
sections:
  - id: done
    title: 本周完成
    section_type: heading
  - id: next
    title: 下周计划
    section_type: heading
`

func TestValidateTemplate(t *testing.T) {
	e := newTestEnv(t, false)

	rec := e.do(t, http.MethodPost, "/api/templates/validate", strings.NewReader(validYAML), "application/yaml")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["valid"]; got != true {
		t.Errorf("valid = %v", got)
	}

	rec = e.do(t, http.MethodPost, "/api/templates/validate", strings.NewReader(`{"id": "x y", "name": ""}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["valid"] != false {
		t.Errorf("valid = %v", resp["valid"])
	}
	errs := resp["report"].(map[string]any)["errors"].([]any)
	if len(errs) < 3 {
		t.Errorf("errors = %v", errs)
	}

	rec = e.do(t, http.MethodPost, "/api/templates/validate", strings.NewReader("id: [unclosed"), "application/yaml")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unparsable code = %d", rec.Code)
	}
}

type memStore struct {
	mu  sync.Mutex
	ids []string
}

func (m *memStore) PutTemplate(_ context.Context, t *doctree.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, t.ID)
	return nil
}

func TestPutTemplate(t *testing.T) {
	e := newTestEnv(t, false)
	store := &memStore{}
	e.srv.WithTemplateStore(store)

	rec := e.do(t, http.MethodPut, "/api/templates/weekly", strings.NewReader(validYAML), "application/yaml")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["persisted"]; got != true {
		t.Errorf("persisted = %v", got)
	}
	if len(store.ids) != 1 || store.ids[0] != "weekly" {
		t.Errorf("store = %v", store.ids)
	}
	if _, err := e.reg.Get(context.Background(), "weekly"); err != nil {
		t.Errorf("registry: %v", err)
	}

	rec = e.do(t, http.MethodPut, "/api/templates/other", strings.NewReader(validYAML), "application/yaml")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("mismatched id code = %d", rec.Code)
	}
}

func TestSegment(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodPost, "/api/segment",
		strings.NewReader(`{"text": "第一句。第二句！第三句？", "mode": "sentence"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["mode"] != "sentence" || resp["count"] != float64(3) {
		t.Errorf("resp = %v", resp)
	}

	if rec := e.do(t, http.MethodPost, "/api/segment", strings.NewReader("{"), "application/json"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json code = %d", rec.Code)
	}
}

func TestExtract(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodPost, "/api/extract",
		strings.NewReader(`{"text": "昨天服务器宕机，我们重启服务后恢复。", "template": "problem_solution"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	fields := decode(t, rec)["fields"].(map[string]any)
	if fields["问题"] != "服务器宕机" || fields["解决方案"] != "重启服务" {
		t.Errorf("fields = %v", fields)
	}

	rec = e.do(t, http.MethodPost, "/api/extract", strings.NewReader(`{"text": "x", "template": "nope"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown template code = %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/extract", strings.NewReader(`{"text": "x"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no fields code = %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/extract/templates", nil, "")
	if names := decode(t, rec)["names"].([]any); len(names) != len(extract.Templates) {
		t.Errorf("names = %v", names)
	}
}

func TestExtract_Unavailable(t *testing.T) {
	e := newTestEnv(t, false)
	e.srv.extractor = nil
	rec := e.do(t, http.MethodPost, "/api/extract", strings.NewReader(`{"text": "x", "fields": ["a"]}`), "application/json")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestDocumentStats(t *testing.T) {
	e := newTestEnv(t, false)
	body, ct := multipartBody(t, "a.docx", sourceDoc(t), nil)
	rec := e.do(t, http.MethodPost, "/api/documents/stats", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	stats := resp["stats"].(map[string]any)
	if stats["image_count"] != float64(1) || stats["heading_count"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}
	headings := resp["headings"].([]any)
	if len(headings) != 1 || headings[0].(map[string]any)["text"] != "概述" {
		t.Errorf("headings = %v", headings)
	}
}

func TestLLMStats(t *testing.T) {
	e := newTestEnv(t, false)
	if rec := e.do(t, http.MethodGet, "/api/stats/llm", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("nil metered code = %d", rec.Code)
	}

	m := llm.NewMetered(llm.CompleterFunc(stubLLM), "test-model", llm.NewLLMStats(time.Hour))
	if _, err := m.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	e.srv.llm = m
	rec := e.do(t, http.MethodGet, "/api/stats/llm", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["model"] != "test-model" || resp["stats"].(map[string]any)["count"] != float64(1) {
		t.Errorf("resp = %v", resp)
	}
}

func TestSanitizeFilename(t *testing.T) {
	for in, want := range map[string]string{
		"../../etc/passwd.docx": "passwd.docx",
		`C:\Users\me\报告.docx`:   "报告.docx",
		"a..b.docx":             "a_b.docx",
		"":                      "unnamed",
	} {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

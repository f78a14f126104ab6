package pipeline

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docforge/internal/generate"
)

// JobStatus represents the state of a document job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusGenerating JobStatus = "generating"
	StatusPlacing    JobStatus = "placing"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobKind selects the flow a job runs.
type JobKind string

const (
	KindFormat   JobKind = "format"
	KindGenerate JobKind = "generate"
)

// maxMessages caps the progress lines kept per job.
const maxMessages = 200

// Job tracks the state of a single document job.
type Job struct {
	mu sync.Mutex

	ID       string  `json:"job_id"`
	Kind     JobKind `json:"kind"`
	Filename string  `json:"filename"`

	// Generate parameters.
	TemplateID string        `json:"template_id,omitempty"`
	Outline    string        `json:"outline,omitempty"`
	Tone       string        `json:"tone,omitempty"`
	Mode       generate.Mode `json:"mode,omitempty"`

	// Format parameters.
	UseAI bool `json:"use_ai"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Messages []string  `json:"messages"`
	Error    string    `json:"error,omitempty"`
	Summary  Summary   `json:"summary"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData   []byte
	outputPath string
}

// Summary counts what a finished job produced.
type Summary struct {
	Sections     int  `json:"sections_generated"`
	Images       int  `json:"images_found"`
	Placed       int  `json:"images_placed"`
	Blocks       int  `json:"blocks"`
	Paragraphs   int  `json:"paragraphs_replaced"`
	PolishFailed bool `json:"polish_failed,omitempty"`
}

// NewJob creates a queued job with a fresh ID.
func NewJob(kind JobKind, filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Filename:    filename,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs together with their output files.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	var expired []*Job
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		old := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if old {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	s.mu.Unlock()

	for _, job := range expired {
		if p := job.OutputPath(); p != "" {
			os.Remove(p)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed with a terminal error.
func (j *Job) Fail(phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Phase = phase
	j.Error = err.Error()
	j.UpdatedAt = time.Now()
}

// AddMessage appends a progress line, dropping the oldest past the cap.
func (j *Job) AddMessage(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Messages = append(j.Messages, msg)
	if len(j.Messages) > maxMessages {
		j.Messages = j.Messages[len(j.Messages)-maxMessages:]
	}
	j.UpdatedAt = time.Now()
}

// Complete records the output file and summary and marks the job done.
func (j *Job) Complete(path string, sum Summary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputPath = path
	j.Summary = sum
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Stage implements Observer.
func (j *Job) Stage(status JobStatus, phase string) { j.SetStatus(status, phase) }

// Message implements Observer.
func (j *Job) Message(msg string) { j.AddMessage(msg) }

// FileData returns the uploaded file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// takeInput hands the upload to a worker and drops the job's reference.
func (j *Job) takeInput() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	data := j.fileData
	j.fileData = nil
	return data
}

// OutputPath returns the finished document path, or "" before completion.
func (j *Job) OutputPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputPath
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	Kind       JobKind   `json:"kind"`
	Filename   string    `json:"filename"`
	TemplateID string    `json:"template_id,omitempty"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	Messages   []string  `json:"messages"`
	Error      string    `json:"error,omitempty"`
	Summary    Summary   `json:"summary"`
	Download   bool      `json:"download_ready"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	msgs := make([]string, len(j.Messages))
	copy(msgs, j.Messages)
	return JobSnapshot{
		ID:         j.ID,
		Kind:       j.Kind,
		Filename:   j.Filename,
		TemplateID: j.TemplateID,
		Status:     j.Status,
		Phase:      j.Phase,
		Messages:   msgs,
		Error:      j.Error,
		Summary:    j.Summary,
		Download:   j.Status == StatusCompleted && j.outputPath != "",
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docforge/internal/config"
	"github.com/dgallion1/docforge/internal/llm"
)

func waitTerminal(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if snap := job.Snapshot(); snap.Status.Terminal() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", job.ID)
	return JobSnapshot{}
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		WorkerCount:  2,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
		OutputDir:    t.TempDir(),
	}
}

func TestOrchestrator_RunsJobs(t *testing.T) {
	svc := testService(t, llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return sectionStub(req)
	}))
	o := NewOrchestrator(testConfig(t), svc, nil)
	o.Start(context.Background())
	defer o.Stop()

	format := NewJob(KindFormat, "a.docx", sourceDoc(t))
	format.UseAI = true
	gen := NewJob(KindGenerate, "b.docx", sourceDoc(t))
	gen.TemplateID = "brief"
	for _, j := range []*Job{format, gen} {
		if err := o.Submit(j); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	for _, j := range []*Job{format, gen} {
		snap := waitTerminal(t, j)
		if snap.Status != StatusCompleted {
			t.Fatalf("job %s (%s) = %s: %s", j.ID, j.Kind, snap.Status, snap.Error)
		}
		if _, err := os.Stat(j.OutputPath()); err != nil {
			t.Errorf("output for %s: %v", j.Kind, err)
		}
		if j.FileData() != nil {
			t.Errorf("upload for %s still held", j.Kind)
		}
		if o.GetJob(j.ID) != j {
			t.Error("GetJob did not return the submitted job")
		}
	}
}

func TestOrchestrator_FailedJobReportsError(t *testing.T) {
	svc := testService(t, llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return sectionStub(req)
	}))
	o := NewOrchestrator(testConfig(t), svc, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob(KindGenerate, "b.docx", sourceDoc(t))
	job.TemplateID = "missing"
	if err := o.Submit(job); err != nil {
		t.Fatal(err)
	}
	snap := waitTerminal(t, job)
	if snap.Status != StatusFailed || !strings.Contains(snap.Error, "template not found") {
		t.Errorf("snapshot = %+v", snap)
	}
	if job.OutputPath() != "" {
		t.Error("failed job has an output path")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxQueueSize = 1
	o := NewOrchestrator(cfg, nil, nil) // not started: nothing drains the queue

	if err := o.Submit(NewJob(KindFormat, "a.docx", nil)); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second := NewJob(KindFormat, "b.docx", nil)
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if snap := second.Snapshot(); snap.Status != StatusFailed || snap.Phase != "queue_full" {
		t.Errorf("rejected job = %+v", snap)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("queue depth = %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(testConfig(t), nil, nil)
	o.Start(context.Background())
	o.Stop()
	o.Stop() // second call is a no-op

	job := NewJob(KindFormat, "a.docx", nil)
	if err := o.Submit(job); !errors.Is(err, ErrStopped) {
		t.Fatalf("Submit after Stop = %v", err)
	}
	if snap := job.Snapshot(); snap.Status != StatusFailed {
		t.Errorf("status = %s", snap.Status)
	}
}

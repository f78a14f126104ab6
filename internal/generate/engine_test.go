package generate

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/llm"
	"github.com/dgallion1/docforge/internal/retry"
)

func noSleep() retry.Policy {
	p := retry.Default()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func testTemplate() *doctree.Template {
	return &doctree.Template{
		ID:   "t",
		Name: "Test",
		Sections: []*doctree.Section{
			{ID: "a", Title: "总体情况", Type: doctree.SectionHeading, Subsections: []*doctree.Section{
				{ID: "a1", Title: "主要成绩", Type: doctree.SectionList, BulletPoints: []string{"指标"}},
			}},
			{ID: "b", Title: "存在问题", Type: doctree.SectionHeading},
			{ID: "c", Title: "下一步计划", Type: doctree.SectionHeading},
		},
	}
}

// sectionTitle pulls the title out of a per-section prompt.
func sectionTitle(req llm.Request) string {
	user := req.Messages[len(req.Messages)-1].Content
	first, _, _ := strings.Cut(user, "\n")
	return strings.TrimPrefix(first, "章节：")
}

func longBody(title string) string {
	return title + "：" + strings.Repeat("本年度各项工作稳步推进，", 6)
}

func TestSequential_StubReturnsInput(t *testing.T) {
	tmpl := &doctree.Template{Sections: []*doctree.Section{{ID: "node", Title: "正文"}}}
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "A.\n\nB.\n\nC.", nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)

	res, err := e.Sequential(context.Background(), tmpl, "", StaticSource("A.\n\nB.\n\nC."))
	if err != nil {
		t.Fatalf("Sequential: %v", err)
	}
	if len(res) != 1 || res["node"] != "A.\n\nB.\n\nC." {
		t.Errorf("result = %#v", res)
	}
}

func TestSequential_SkipsEmptyAndFailed(t *testing.T) {
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		switch sectionTitle(req) {
		case "存在问题":
			return "", &llm.MalformedError{Message: "empty"}
		case "下一步计划":
			return "", &llm.TransientError{StatusCode: 503}
		}
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)

	res, err := e.Sequential(context.Background(), testTemplate(), "", nil)
	if err != nil {
		t.Fatalf("Sequential: %v", err)
	}
	if len(res) != 2 || res["a"] == "" || res["a1"] == "" {
		t.Errorf("expected a and a1 only, got %v", keys(res))
	}
}

func TestParallel_OneFailingNode(t *testing.T) {
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if sectionTitle(req) == "存在问题" {
			return "", errors.New("boom")
		}
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{Workers: 2}, nil)

	res, err := e.Parallel(context.Background(), testTemplate(), "", nil)
	if err != nil {
		t.Fatalf("Parallel: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 sections, got %v", keys(res))
	}
	if _, ok := res["b"]; ok {
		t.Error("failing section should be absent")
	}
	for _, id := range []string{"a", "a1", "c"} {
		if res[id] == "" {
			t.Errorf("section %s missing", id)
		}
	}
}

func TestParallel_PanickingNode(t *testing.T) {
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if sectionTitle(req) == "存在问题" {
			panic("backend exploded")
		}
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{Workers: 2}, nil)

	res, err := e.Parallel(context.Background(), testTemplate(), "", nil)
	if err != nil {
		t.Fatalf("Parallel: %v", err)
	}
	if _, ok := res["b"]; ok {
		t.Error("panicking section should be absent")
	}
	for _, id := range []string{"a", "a1", "c"} {
		if res[id] == "" {
			t.Errorf("section %s missing", id)
		}
	}
}

func TestParallel_DropsShortOutput(t *testing.T) {
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if sectionTitle(req) == "下一步计划" {
			return "太短", nil
		}
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)

	res, err := e.Parallel(context.Background(), testTemplate(), "", nil)
	if err != nil {
		t.Fatalf("Parallel: %v", err)
	}
	if _, ok := res["c"]; ok {
		t.Error("short output should be dropped")
	}
	if len(res) != 3 {
		t.Errorf("expected 3 sections, got %v", keys(res))
	}
}

func TestParallel_RespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{Workers: 2}, nil)

	if _, err := e.Parallel(context.Background(), testTemplate(), "", nil); err != nil {
		t.Fatalf("Parallel: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak.Load())
	}
}

func TestBatch_MatchesSequential(t *testing.T) {
	tmpl := testTemplate()
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if req.Messages[0].Content == batchSystemPrompt {
			var sb strings.Builder
			sb.WriteString("以下是各章节内容。\n\n")
			for _, s := range tmpl.Flatten() {
				sb.WriteString("### " + s.Title + "\n\n" + longBody(s.Title) + "\n\n")
			}
			return sb.String(), nil
		}
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)

	batch, err := e.Batch(context.Background(), tmpl, "", nil)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	seq, err := e.Sequential(context.Background(), tmpl, "", nil)
	if err != nil {
		t.Fatalf("Sequential: %v", err)
	}
	if len(batch) != len(seq) {
		t.Fatalf("batch has %v, sequential has %v", keys(batch), keys(seq))
	}
	for id, want := range seq {
		if batch[id] != want {
			t.Errorf("section %s: batch %q, sequential %q", id, batch[id], want)
		}
	}
}

func TestBatch_FallsBackWhenNoTitlesMatch(t *testing.T) {
	var batchCalls, sectionCalls atomic.Int32
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if req.Messages[0].Content == batchSystemPrompt {
			batchCalls.Add(1)
			return "a wall of text with no headings", nil
		}
		sectionCalls.Add(1)
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)

	res, err := e.Batch(context.Background(), testTemplate(), "", nil)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if batchCalls.Load() != 1 || sectionCalls.Load() != 4 {
		t.Errorf("batch calls %d, section calls %d", batchCalls.Load(), sectionCalls.Load())
	}
	if len(res) != 4 {
		t.Errorf("expected all 4 sections from fallback, got %v", keys(res))
	}
}

func TestSplitBatch_RepeatedTitlesGoInOrder(t *testing.T) {
	flat := []*doctree.Section{
		{ID: "x1", Title: "小结"},
		{ID: "mid", Title: "过程"},
		{ID: "x2", Title: "小结"},
	}
	got := splitBatch("## 小结\none\n## 过程\ntwo\n**小结**\nthree", flat)
	if got["x1"] != "one" || got["mid"] != "two" || got["x2"] != "three" {
		t.Errorf("got %#v", got)
	}
}

func TestRun_NoContent(t *testing.T) {
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", &llm.TransientError{StatusCode: 502}
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)

	_, err := e.Run(context.Background(), ModeParallel, testTemplate(), "", nil)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestRun_ReportsProgress(t *testing.T) {
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)
	var lines []string
	e.Progress = func(s string) { lines = append(lines, s) }

	if _, err := e.Run(context.Background(), ModeSequential, testTemplate(), "", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 4 || !strings.Contains(lines[0], "1/4") {
		t.Errorf("progress = %v", lines)
	}
}

func TestGenerateOne_UsesCache(t *testing.T) {
	var calls atomic.Int32
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		calls.Add(1)
		return longBody(sectionTitle(req)), nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)
	s := &doctree.Section{ID: "a", Title: "总体情况"}

	for range 3 {
		if _, err := e.GenerateOne(context.Background(), s, "", ""); err != nil {
			t.Fatalf("GenerateOne: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 remote call, got %d", calls.Load())
	}
}

func TestGenerateOne_ExhaustedIsNotCached(t *testing.T) {
	var calls atomic.Int32
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if calls.Add(1) <= 3 {
			return "", &llm.TransientError{StatusCode: 429}
		}
		return "恢复后的内容", nil
	})
	e := NewEngine(stub, nil, noSleep(), Options{}, nil)
	s := &doctree.Section{ID: "a", Title: "总体情况"}

	out, err := e.GenerateOne(context.Background(), s, "", "")
	if err != nil || out != "" {
		t.Fatalf("first call: %q, %v", out, err)
	}
	out, err = e.GenerateOne(context.Background(), s, "", "")
	if err != nil || out != "恢复后的内容" {
		t.Fatalf("second call: %q, %v", out, err)
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("Batch") != ModeBatch || ParseMode("") != ModeParallel || ParseMode("sequential") != ModeSequential {
		t.Error("unexpected mode mapping")
	}
}

func keys(r Result) []string {
	var out []string
	for k := range r {
		out = append(out, k)
	}
	return out
}

func TestForRun_OverridesToneAndSharesCache(t *testing.T) {
	var calls atomic.Int32
	var prompts []string
	stub := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		calls.Add(1)
		prompts = append(prompts, req.Messages[len(req.Messages)-1].Content)
		return longBody(sectionTitle(req)), nil
	})
	base := NewEngine(stub, nil, noSleep(), Options{}, nil)
	tmpl := &doctree.Template{Sections: []*doctree.Section{{ID: "x", Title: "概述"}}}

	var lines []string
	run := base.ForRun("轻松", func(s string) { lines = append(lines, s) })
	if _, err := run.Sequential(context.Background(), tmpl, "", nil); err != nil {
		t.Fatalf("Sequential: %v", err)
	}
	if len(lines) == 0 {
		t.Error("progress sink not used")
	}
	if base.Progress != nil {
		t.Error("ForRun modified the base engine")
	}
	if !strings.Contains(prompts[0], "轻松") {
		t.Errorf("tone missing from prompt: %q", prompts[0])
	}

	// Same prompt through a sibling run is served from the shared cache.
	if _, err := base.ForRun("轻松", nil).Sequential(context.Background(), tmpl, "", nil); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 completion call, got %d", calls.Load())
	}
}

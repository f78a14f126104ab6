package cache

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func counter(result string) (func() (string, error), *int) {
	n := 0
	return func() (string, error) {
		n++
		return result, nil
	}, &n
}

func TestGetOrCompute_HitWithinTTL(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := New(30 * time.Second).WithClock(clk.now)
	fn, calls := counter("polished")

	for range 2 {
		got, err := c.GetOrCompute("same input", fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "polished" {
			t.Fatalf("expected polished, got %q", got)
		}
		clk.advance(10 * time.Second)
	}
	if *calls != 1 {
		t.Fatalf("expected compute once, got %d", *calls)
	}
}

func TestGetOrCompute_RecomputesAfterTTL(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := New(30 * time.Second).WithClock(clk.now)
	fn, calls := counter("x")

	c.GetOrCompute("input", fn)
	clk.advance(31 * time.Second)
	c.GetOrCompute("input", fn)

	if *calls != 2 {
		t.Fatalf("expected compute twice after expiry, got %d", *calls)
	}
}

func TestGetOrCompute_FingerprintIgnoresOuterWhitespace(t *testing.T) {
	c := New(time.Minute)
	fn, calls := counter("x")
	c.GetOrCompute("  hello  ", fn)
	c.GetOrCompute("hello", fn)
	if *calls != 1 {
		t.Fatalf("expected trimmed inputs to share an entry, got %d computes", *calls)
	}
}

func TestGetOrCompute_PrefixCollisionIsShared(t *testing.T) {
	base := strings.Repeat("a", 100)
	c := New(time.Minute)
	fn, calls := counter("x")
	c.GetOrCompute(base+"b", fn)
	c.GetOrCompute(base+"c", fn)
	if *calls != 1 {
		t.Fatalf("expected same-length same-prefix inputs to collide, got %d computes", *calls)
	}
}

func TestGetOrCompute_ErrorsNotCached(t *testing.T) {
	c := New(time.Minute)
	n := 0
	fail := func() (string, error) {
		n++
		return "", errors.New("boom")
	}
	if _, err := c.GetOrCompute("x", fail); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.GetOrCompute("x", fail); err == nil {
		t.Fatal("expected error")
	}
	if n != 2 {
		t.Fatalf("expected errors to bypass the cache, got %d calls", n)
	}
}

func TestSweepOnWrite(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := New(30 * time.Second).WithClock(clk.now)
	fn, _ := counter("x")

	c.GetOrCompute("one", fn)
	c.GetOrCompute("two", fn)
	clk.advance(time.Minute)
	c.GetOrCompute("three", fn)

	if c.Len() != 1 {
		t.Fatalf("expected expired entries swept on write, got %d entries", c.Len())
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint("  你好  "); got != "2_你好" {
		t.Errorf("expected rune-based fingerprint, got %q", got)
	}
	long := strings.Repeat("x", 150)
	if got := Fingerprint(long); got != "150_"+strings.Repeat("x", 100) {
		t.Errorf("unexpected fingerprint for long input: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := string(rune('a' + i%5))
			c.GetOrCompute(key, func() (string, error) { return key, nil })
		}()
	}
	wg.Wait()
	if c.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", c.Len())
	}
}

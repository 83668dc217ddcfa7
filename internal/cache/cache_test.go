package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := NewWithClock[string, int](3*time.Minute, clk.Now)

	c.Set("stats", 42)
	clk.Advance(2*time.Minute + 59*time.Second)
	if v, ok := c.Get("stats"); !ok || v != 42 {
		t.Fatalf("expected fresh entry, got %v %v", v, ok)
	}
	clk.Advance(time.Second)
	if _, ok := c.Get("stats"); ok {
		t.Fatal("entry at exactly TTL must be expired")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped on read, len=%d", c.Len())
	}
}

func TestGetOrLoadReadThrough(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewWithClock[string, string](time.Minute, clk.Now)
	calls := 0
	load := func() (string, error) { calls++; return "v", nil }

	for i := 0; i < 3; i++ {
		if v, err := c.GetOrLoad("k", load); err != nil || v != "v" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("load called %d times, want 1", calls)
	}
	clk.Advance(time.Minute)
	_, _ = c.GetOrLoad("k", load)
	if calls != 2 {
		t.Fatalf("load should run again after expiry, calls=%d", calls)
	}
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New[string, int](time.Minute)
	boom := errors.New("boom")
	if _, err := c.GetOrLoad("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("failed load must not be cached")
	}
}

func TestGetOrLoadSharesConcurrentLoad(t *testing.T) {
	c := New[string, int](time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			if err != nil || v != 7 {
				t.Errorf("GetOrLoad = %d, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("load ran %d times, want 1", calls.Load())
	}
}

func TestGetOrLoadRecoversFromPanickingLoad(t *testing.T) {
	c := New[string, int](time.Minute)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the load panic to reach the caller")
			}
		}()
		_, _ = c.GetOrLoad("k", func() (int, error) { panic("load failed") })
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if v, err := c.GetOrLoad("k", func() (int, error) { return 3, nil }); err != nil || v != 3 {
			t.Errorf("GetOrLoad after panic = %d, %v", v, err)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("GetOrLoad blocked after a panicking load")
	}
}

func TestPurge(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewWithClock[int, int](time.Minute, clk.Now)
	c.Set(1, 1)
	clk.Advance(30 * time.Second)
	c.Set(2, 2)
	clk.Advance(45 * time.Second)
	if n := c.Purge(); n != 1 {
		t.Fatalf("Purge removed %d, want 1", n)
	}
	if _, ok := c.Get(2); !ok {
		t.Fatal("entry 2 should survive")
	}
}

package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int64, string](2, time.Minute)
	c.Set(1, "a")
	c.Set(2, "b")
	if _, ok := c.Get(1); !ok {
		t.Fatalf("expected key 1")
	}
	c.Set(3, "c")

	if _, ok := c.Get(2); ok {
		t.Fatalf("key 2 should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Fatalf("key 1 should survive, got %q %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}

func TestLRUExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUWithClock[string, int](10, time.Minute, clock.Now)
	c.Set("a", 1)
	c.Set("b", 2)

	clock.t = clock.t.Add(2 * time.Minute)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned entry (b), got %d", n)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("expected fresh entry c")
	}
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c := NewLRU[string, int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a deleted")
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after purge")
	}
}

func TestJanitorSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUWithClock[int, int](10, time.Second, clock.Now)
	c.Set(1, 1)
	c.Set(2, 2)

	j := NewJanitor()
	j.Register("test", c)
	clock.t = clock.t.Add(time.Minute)
	if n := j.Sweep(context.Background()); n != 2 {
		t.Fatalf("expected 2 swept entries, got %d", n)
	}

	j.Start(context.Background(), time.Hour)
	j.Stop()
	j.Stop()
}

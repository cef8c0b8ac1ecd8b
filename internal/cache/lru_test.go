package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"ledger/internal/log"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a is now most recent
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("old", "x")
	clock.t = clock.t.Add(30 * time.Second)
	c.Set("new", "y")

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("old"); ok {
		t.Error("old entry should have expired")
	}

	clock.t = clock.t.Add(time.Minute)
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after cleanup", c.Size())
	}
}

func TestLRUCache_OverwriteAndDelete(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)
	c.Set("k", "1")
	c.Set("k", "2")
	if v, _ := c.Get("k"); v != "2" {
		t.Errorf("Get(k) = %q, want 2", v)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("k should be deleted")
	}

	for i := 0; i < 3; i++ {
		c.Set(strconv.Itoa(i), "v")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() = %d after Purge", c.Size())
	}
}

func TestLRUCache_Stats(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)
	c.Set("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	c, clock := newTestCache(3, time.Second)
	c.Set("a", "1")
	clock.t = clock.t.Add(time.Hour)

	m := NewManager(log.NewNop())
	m.Register(c)
	if n := m.CleanAll(); n != 1 {
		t.Errorf("CleanAll() = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx, time.Millisecond)
	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

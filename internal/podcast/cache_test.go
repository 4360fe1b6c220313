package podcast

import (
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(func() time.Duration { return time.Hour })
	c.now = func() time.Time { return now }

	p := &Podcast{Title: "x"}
	c.Put("alice's shows", p)

	if got, ok := c.Get("alice's shows"); !ok || got != p {
		t.Fatal("fresh entry should hit")
	}
	if !c.Contains("alice's shows") {
		t.Error("Contains should report the fresh entry")
	}

	now = now.Add(time.Hour + time.Second)
	if _, ok := c.Get("alice's shows"); ok {
		t.Error("expired entry should miss")
	}
	if c.Contains("alice's shows") {
		t.Error("Contains should not report an expired entry")
	}
}

func TestCacheTTLIsReadPerUse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour
	c := NewCache(func() time.Duration { return ttl })
	c.now = func() time.Time { return now }

	c.Put("k", &Podcast{})
	now = now.Add(30 * time.Minute)
	ttl = time.Minute // runtime settings change shrinks the TTL
	if _, ok := c.Get("k"); ok {
		t.Error("entry older than the new TTL should miss")
	}
}

func TestCachePutScrubsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(func() time.Duration { return time.Minute })
	c.now = func() time.Time { return now }

	c.Put("stale", &Podcast{})
	now = now.Add(2 * time.Minute)
	c.Put("fresh", &Podcast{})

	if len(c.entries) != 1 {
		t.Errorf("expected the stale entry to be scrubbed, have %d entries", len(c.entries))
	}
}

func TestDefaultViewCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewDefaultViewCache(func() time.Duration { return time.Hour })
	c.now = func() time.Time { return now }

	if _, ok := c.Get("alice"); ok {
		t.Error("empty cache should miss")
	}
	c.Put("alice", "shows")
	if got, ok := c.Get("alice"); !ok || got != "shows" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("alice"); ok {
		t.Error("expired view should miss")
	}
}

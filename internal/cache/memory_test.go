package cache

import (
	"testing"
	"time"
)

func newTestMemoryCache(t *testing.T, size int) Cache {
	t.Helper()

	c, err := New("memory", ProviderConfig{Size: size, TTL: time.Hour})
	if err != nil {
		t.Fatalf("New memory cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCacheGetSet(t *testing.T) {
	c := newTestMemoryCache(t, 10)

	if val, ok := c.Get("dup:ABC-123"); ok || val != nil {
		t.Fatal("Expected a miss for an unknown key")
	}

	c.Set("dup:ABC-123", []byte("exists"))
	val, ok := c.Get("dup:ABC-123")
	if !ok {
		t.Fatal("Expected a hit after Set")
	}
	if string(val) != "exists" {
		t.Fatalf("Got %q", val)
	}
}

func TestMemoryCacheContains(t *testing.T) {
	c := newTestMemoryCache(t, 10)

	if c.Contains("absent") {
		t.Fatal("Absent key must not be contained")
	}
	c.Set("present", []byte("data"))
	if !c.Contains("present") {
		t.Fatal("Present key must be contained")
	}
}

func TestMemoryCacheLen(t *testing.T) {
	c := newTestMemoryCache(t, 10)

	if c.Len() != 0 {
		t.Fatalf("Expected an empty cache, got %d entries", c.Len())
	}
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", c.Len())
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	var evicted []string
	c, err := New("memory", ProviderConfig{
		Size: 2,
		TTL:  time.Hour,
		OnEvict: func(key string, _ []byte) {
			evicted = append(evicted, key)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("Expected the oldest key evicted, got %v", evicted)
	}
	if c.Contains("a") {
		t.Fatal("Evicted key must not be present")
	}
	if !c.Contains("b") || !c.Contains("c") {
		t.Fatal("Remaining keys must be present")
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := newTestMemoryCache(t, 10)

	c.Set("key", []byte("v1"))
	c.Set("key", []byte("v2"))

	val, ok := c.Get("key")
	if !ok || string(val) != "v2" {
		t.Fatalf("Expected the overwritten value, got %q (hit=%v)", val, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("Overwrite must not grow the cache, got %d entries", c.Len())
	}
}

package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, cv *prometheus.CounterVec, label string) float64 {
	t.Helper()

	c, err := cv.GetMetricWithLabelValues(label)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func newInstrumentedTestCache(t *testing.T, group string) Cache {
	t.Helper()

	c, err := New("memory", ProviderConfig{Size: 10, TTL: time.Hour, Group: group})
	if err != nil {
		t.Fatalf("New instrumented cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestInstrumentedCacheHits(t *testing.T) {
	c := newInstrumentedTestCache(t, "hits-test")

	c.Set("k", []byte("v"))
	before := counterValue(t, HitsTotal, "hits-test")
	c.Get("k")
	if got := counterValue(t, HitsTotal, "hits-test"); got != before+1 {
		t.Fatalf("Expected one more hit, diff %.0f", got-before)
	}
}

func TestInstrumentedCacheMisses(t *testing.T) {
	c := newInstrumentedTestCache(t, "misses-test")

	before := counterValue(t, MissesTotal, "misses-test")
	c.Get("absent")
	if got := counterValue(t, MissesTotal, "misses-test"); got != before+1 {
		t.Fatalf("Expected one more miss, diff %.0f", got-before)
	}
}

func TestInstrumentedCacheEvictions(t *testing.T) {
	var evicted []string
	c, err := New("memory", ProviderConfig{
		Size:  2,
		TTL:   time.Hour,
		Group: "evict-test",
		OnEvict: func(key string, _ []byte) {
			evicted = append(evicted, key)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	before := counterValue(t, EvictionsTotal, "evict-test")
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))
	if got := counterValue(t, EvictionsTotal, "evict-test"); got != before+1 {
		t.Fatalf("Expected one eviction counted, diff %.0f", got-before)
	}

	// The caller's callback still fires alongside the counting.
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("Expected the original OnEvict to fire for 'a', got %v", evicted)
	}
}

func TestInstrumentedCacheEntriesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	origReg := entriesReg
	entriesReg = reg
	t.Cleanup(func() { entriesReg = origReg })

	c := newInstrumentedTestCache(t, "entries-test")

	gatherEntries := func() float64 {
		mfs, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather: %v", err)
		}
		for _, mf := range mfs {
			if mf.GetName() != "grabtree_cache_entries" {
				continue
			}
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "cache" && lp.GetValue() == "entries-test" {
						return m.GetGauge().GetValue()
					}
				}
			}
		}
		return -1
	}

	if v := gatherEntries(); v != 0 {
		t.Fatalf("Expected 0 entries before Set, got %.0f", v)
	}

	c.Set("x", []byte("1"))
	c.Set("y", []byte("2"))

	// The gauge reads Len() at scrape time.
	if v := gatherEntries(); v != 2 {
		t.Fatalf("Expected 2 entries after two Sets, got %.0f", v)
	}
}

func TestInstrumentedCacheCloseUnregisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	origReg := entriesReg
	entriesReg = reg
	t.Cleanup(func() { entriesReg = origReg })

	c, err := New("memory", ProviderConfig{Size: 10, TTL: time.Hour, Group: "close-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entriesCollectorMu.Lock()
	_, registered := entriesCollectors["close-test"]
	entriesCollectorMu.Unlock()
	if !registered {
		t.Fatal("Collector must be registered after New")
	}

	c.Close()

	entriesCollectorMu.Lock()
	_, registered = entriesCollectors["close-test"]
	entriesCollectorMu.Unlock()
	if registered {
		t.Fatal("Collector must be gone after Close")
	}
}

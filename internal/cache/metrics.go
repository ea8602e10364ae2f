package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Per-cache Prometheus metrics. Every metric carries a "cache" label whose
// value is the Group from ProviderConfig, so multiple cache instances stay
// distinguishable when scraped.
var (
	HitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtree_cache_hits_total",
			Help: "Total number of cache hits.",
		},
		[]string{"cache"},
	)

	MissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtree_cache_misses_total",
			Help: "Total number of cache misses.",
		},
		[]string{"cache"},
	)

	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtree_cache_evictions_total",
			Help: "Total number of entries evicted from the cache.",
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(
		HitsTotal,
		MissesTotal,
		EvictionsTotal,
	)
}

// entriesCollector reports the current entry count for one cache group by
// calling lenFunc at scrape time. Reading lazily keeps the count honest for
// backends where the server expires entries on its own.
type entriesCollector struct {
	desc    *prometheus.Desc
	lenFunc func() int
}

func (c *entriesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *entriesCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.lenFunc()))
}

var (
	entriesCollectorMu sync.Mutex
	entriesCollectors  = make(map[string]*entriesCollector)
	// entriesReg is overridable so tests can use an isolated registry.
	entriesReg prometheus.Registerer = prometheus.DefaultRegisterer
)

// registerEntriesCollector installs the entries collector for a group. An
// existing collector for the same group is replaced, so creating a fresh
// cache for a group is safe.
func registerEntriesCollector(group string, lenFunc func() int) *entriesCollector {
	desc := prometheus.NewDesc(
		"grabtree_cache_entries",
		"Current number of entries in the cache.",
		nil,
		prometheus.Labels{"cache": group},
	)
	c := &entriesCollector{desc: desc, lenFunc: lenFunc}

	entriesCollectorMu.Lock()
	defer entriesCollectorMu.Unlock()

	if old, ok := entriesCollectors[group]; ok {
		entriesReg.Unregister(old)
	}
	entriesCollectors[group] = c
	_ = entriesReg.Register(c)
	return c
}

// unregisterEntriesCollector removes a group's entries collector.
func unregisterEntriesCollector(group string) {
	entriesCollectorMu.Lock()
	defer entriesCollectorMu.Unlock()

	if c, ok := entriesCollectors[group]; ok {
		entriesReg.Unregister(c)
		delete(entriesCollectors, group)
	}
}

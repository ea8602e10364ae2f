package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProviderConfig carries everything a provider needs to build a cache.
type ProviderConfig struct {
	// Size caps the number of entries.
	Size int

	// TTL is how long an entry stays valid.
	TTL time.Duration

	// OnEvict, when non-nil, is called for every evicted entry.
	OnEvict EvictCallback

	// Logger receives provider error reports. A nil logger drops them.
	Logger *zerolog.Logger

	// RedisAddress, RedisPassword and RedisDB configure the redis provider
	// and are ignored by in-memory providers.
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Group labels the cache's Prometheus metrics. A non-empty group wraps
	// the cache with hit/miss/eviction instrumentation.
	Group string
}

// Provider constructs a Cache from its config.
type Provider func(cfg ProviderConfig) (Cache, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register registers a provider under the given name. It panics on a nil
// provider or a duplicate name; providers register themselves in init.
func Register(name string, p Provider) {
	mu.Lock()
	defer mu.Unlock()

	if p == nil {
		panic("cache: Register provider is nil")
	}
	if _, exists := providers[name]; exists {
		panic(fmt.Sprintf("cache: provider %q already registered", name))
	}
	providers[name] = p
}

// New builds a cache using the named provider. When cfg.Group is non-empty
// the cache is wrapped with metric instrumentation: hits, misses and
// evictions are counted under the group label, and an entries collector
// reads Len() at scrape time rather than keeping its own counter.
func New(name string, cfg ProviderConfig) (Cache, error) {
	mu.RLock()
	p, ok := providers[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cache: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}

	if cfg.Group == "" {
		return p(cfg)
	}

	group := cfg.Group
	// Count evictions here so every provider reports them the same way.
	original := cfg.OnEvict
	cfg.OnEvict = func(key string, value []byte) {
		EvictionsTotal.WithLabelValues(group).Inc()
		if original != nil {
			original(key, value)
		}
	}

	inner, err := p(cfg)
	if err != nil {
		return nil, err
	}
	return newInstrumentedCache(inner, group), nil
}

// RegisteredProviders returns the sorted names of all registered providers.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

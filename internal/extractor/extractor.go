// Package extractor defines the capability that turns a URL into candidate
// operation items, and a registry that dispatches URLs to the extractor
// claiming them. Site-specific extractors register themselves at init time.
package extractor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grabtree/grabtree/internal/apperrors"
	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/models"
)

// Extractor turns a URL it recognizes into one or more root operation items.
type Extractor interface {
	// Name identifies the extractor in logs and errors.
	Name() string

	// CanHandle reports whether this extractor claims the URL.
	CanHandle(rawURL string) bool

	// Extract produces the candidate items for the URL. An empty slice with
	// a nil error is treated as an empty-result condition by the registry.
	Extract(ctx context.Context, rawURL string) ([]*models.OperationItem, error)
}

var (
	mu         sync.RWMutex
	extractors = make(map[string]Extractor)
)

// Register registers an extractor under its name. It panics if the name is
// already registered or the extractor is nil.
func Register(e Extractor) {
	mu.Lock()
	defer mu.Unlock()

	if e == nil {
		panic("extractor: Register extractor is nil")
	}
	name := e.Name()
	if _, exists := extractors[name]; exists {
		panic(fmt.Sprintf("extractor: %q already registered", name))
	}
	extractors[name] = e
}

// Names returns the sorted names of all registered extractors.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(extractors))
	for name := range extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find returns the extractor claiming the URL, trying registered extractors
// in name order for deterministic dispatch.
func Find(rawURL string) (Extractor, error) {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(extractors))
	for name := range extractors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if extractors[name].CanHandle(rawURL) {
			return extractors[name], nil
		}
	}
	return nil, apperrors.NewNoExtractorError(rawURL)
}

// Extract dispatches the URL to the extractor claiming it. No claiming
// extractor is a not-found condition; a claiming extractor producing nothing
// is an empty-result condition.
func Extract(ctx context.Context, rawURL string) ([]*models.OperationItem, error) {
	e, err := Find(rawURL)
	if err != nil {
		return nil, err
	}

	logger := config.GetLogger()
	logger.Debug().Str("extractor", e.Name()).Str("url", rawURL).Msg("Dispatching URL to extractor")

	items, err := e.Extract(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("extractor %s: %w", e.Name(), err)
	}
	if len(items) == 0 {
		return nil, apperrors.NewEmptyResultError(e.Name(), rawURL)
	}
	return items, nil
}

package drug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/raphaelgruber/rxrag/internal/db"
	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// DefaultCacheSize is the knowledge cache capacity used when none is configured.
const DefaultCacheSize = 128

// KnowledgeSource fetches the knowledge record of a catalog slug.
type KnowledgeSource interface {
	GetKnowledge(ctx context.Context, slug string) (*models.Knowledge, error)
}

// KnowledgeCache memoizes formatted knowledge text per slug. Slugs without
// a knowledge record are cached as models.NoKnowledgeText. Lookup failures
// are returned and not cached. Safe for concurrent use.
type KnowledgeCache struct {
	source  KnowledgeSource
	entries *lru.Cache[string, string]
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewKnowledgeCache creates a cache holding at most size slugs.
// A non-positive size selects DefaultCacheSize. mc may be nil.
func NewKnowledgeCache(source KnowledgeSource, size int, mc *metrics.Collector, logger *slog.Logger) (*KnowledgeCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create knowledge cache: %w", err)
	}
	return &KnowledgeCache{source: source, entries: entries, metrics: mc, logger: logger}, nil
}

// Get returns the formatted knowledge text for slug.
func (c *KnowledgeCache) Get(ctx context.Context, slug string) (string, error) {
	if text, ok := c.entries.Get(slug); ok {
		c.metrics.Incr(metrics.CountCacheHits)
		return text, nil
	}
	c.metrics.Incr(metrics.CountCacheMisses)

	k, err := c.source.GetKnowledge(ctx, slug)
	var text string
	switch {
	case errors.Is(err, db.ErrNotFound):
		text = models.NoKnowledgeText
	case err != nil:
		return "", fmt.Errorf("knowledge %q: %w", slug, err)
	default:
		text = k.Format()
	}

	if evicted := c.entries.Add(slug, text); evicted {
		c.logger.Debug("knowledge cache eviction", "size", c.entries.Len())
	}
	return text, nil
}

// Len returns the number of cached slugs.
func (c *KnowledgeCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached entry.
func (c *KnowledgeCache) Purge() {
	c.entries.Purge()
}

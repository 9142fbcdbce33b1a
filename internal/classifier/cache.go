package classifier

import (
	"context"
	"log/slog"
	"sync"
)

// Persistent is a durable verdict store, such as store.DB.
type Persistent interface {
	Verdict(ctx context.Context, text string) (spoiler, ok bool, err error)
	StoreVerdicts(ctx context.Context, verdicts map[string]bool) error
}

// Cache remembers verdicts by exact text. Lookups that miss memory fall
// through to the optional persistent backing.
type Cache struct {
	mu      sync.RWMutex
	m       map[string]bool
	backing Persistent
	logger  *slog.Logger
}

// NewCache returns a Cache. backing may be nil.
func NewCache(backing Persistent, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		m:       make(map[string]bool),
		backing: backing,
		logger:  logger,
	}
}

// Get returns the cached verdict for text.
func (c *Cache) Get(ctx context.Context, text string) (spoiler, ok bool) {
	c.mu.RLock()
	spoiler, ok = c.m[text]
	c.mu.RUnlock()
	if ok || c.backing == nil {
		return spoiler, ok
	}

	spoiler, ok, err := c.backing.Verdict(ctx, text)
	if err != nil {
		c.logger.Warn("failed to read persistent verdict cache", "error", err)
		return false, false
	}
	if ok {
		c.mu.Lock()
		c.m[text] = spoiler
		c.mu.Unlock()
	}
	return spoiler, ok
}

// Put stores verdicts in memory and, best effort, in the backing store.
func (c *Cache) Put(ctx context.Context, verdicts map[string]bool) {
	c.mu.Lock()
	for text, v := range verdicts {
		c.m[text] = v
	}
	c.mu.Unlock()

	if c.backing == nil {
		return
	}
	if err := c.backing.StoreVerdicts(ctx, verdicts); err != nil {
		c.logger.Warn("failed to persist verdicts", "error", err)
	}
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

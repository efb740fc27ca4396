// Package cache fronts a durable store with a bounded LRU cache. Capacity
// overflow moves the least recently used record into the store instead of
// dropping it, and a read miss fills the cache from the store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aldehir/cache-service/lru"
	"github.com/aldehir/cache-service/store"
	"github.com/aldehir/cache-service/types"
)

// Cache is safe for concurrent use. A single mutex covers each whole
// operation, including the store calls it makes.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Map[int64, types.Record]
	store   store.Store
	maxSize int
	logger  *slog.Logger

	hits      int64
	misses    int64
	evictions int64
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(s store.Store, maxSize int, opts ...Option) (*Cache, error) {
	if s == nil {
		return nil, errors.New("cache: store is required")
	}
	if maxSize < 1 {
		return nil, fmt.Errorf("cache: max size must be at least 1, got %d", maxSize)
	}

	c := &Cache{
		entries: lru.New[int64, types.Record](),
		store:   s,
		maxSize: maxSize,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Add caches rec as the most recently used entry. When the cache is full the
// least recently used entry is written to the store first, even if rec.ID is
// already cached. If that write fails nothing changes and the error is
// returned.
func (c *Cache) Add(ctx context.Context, rec types.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logKeys("add")
	c.logger.Info("Adding entry", "id", rec.ID, "size", c.entries.Len(), "max_size", c.maxSize)

	if c.entries.Len() >= c.maxSize {
		if err := c.evictOne(ctx); err != nil {
			return err
		}
	}
	c.entries.Put(rec.ID, rec)
	return nil
}

// Get returns the record for id, loading it from the store on a miss.
// It returns a *NotFoundError when neither the cache nor the store has it.
func (c *Cache) Get(ctx context.Context, id int64) (types.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logKeys("get")

	if rec, ok := c.entries.Get(id); ok {
		c.hits++
		return rec, nil
	}
	c.misses++

	c.logger.Info("Entry is not in cache, loading from store", "id", id)
	rec, err := c.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return types.Record{}, &NotFoundError{ID: id}
		}
		return types.Record{}, &StoreError{Op: "find", Err: err}
	}

	if c.entries.Len() >= c.maxSize {
		if err := c.evictOne(ctx); err != nil {
			return types.Record{}, err
		}
	}
	c.entries.Put(id, rec)
	return rec, nil
}

// Remove drops rec from the cache and deletes it from the store. The store
// delete happens even when rec was not cached.
func (c *Cache) Remove(ctx context.Context, rec types.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logKeys("remove")
	c.entries.Remove(rec.ID)
	if err := c.store.Delete(ctx, rec); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

// RemoveAll empties the cache and deletes every record from the store.
func (c *Cache) RemoveAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logKeys("remove_all")
	c.entries.Clear()
	if err := c.store.DeleteAll(ctx); err != nil {
		return &StoreError{Op: "delete_all", Err: err}
	}
	return nil
}

// Clear empties the cache without touching the store. Entries that were
// never evicted are lost.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logKeys("clear")
	c.entries.Clear()
}

// evictOne writes the least recently used entry to the store and, once the
// write succeeded, drops it from the cache. Must be called with c.mu held.
func (c *Cache) evictOne(ctx context.Context) error {
	id, rec, ok := c.entries.PeekOldest()
	if !ok {
		return nil
	}

	c.logger.Info("Evicting LRU entry to store", "id", id)
	if err := c.store.Save(ctx, rec); err != nil {
		c.logger.Error("Eviction failed", "id", id, "error", err)
		return &StoreError{Op: "save", Err: err}
	}
	c.entries.Remove(id)
	c.evictions++
	return nil
}

func (c *Cache) logKeys(op string) {
	if c.logger.Enabled(context.Background(), slog.LevelDebug) {
		c.logger.Debug("Current cache", "op", op, "keys", c.entries.Keys())
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) MaxSize() int {
	return c.maxSize
}

// Keys returns the cached ids from least to most recently used.
func (c *Cache) Keys() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

package cache

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

// HitRate returns hits as a percentage of all lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats()
}

// Snapshot returns the counters and the cached ids, oldest first, taken
// under one lock so Size always equals len(keys).
func (c *Cache) Snapshot() (Stats, []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats(), c.entries.Keys()
}

func (c *Cache) stats() Stats {
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.entries.Len(),
		MaxSize:   c.maxSize,
	}
}

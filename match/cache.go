package match

import "sync"

type cacheKey struct {
	productID  string
	preference string
}

// recommendationCache lives as long as the engine that owns it. Entries are
// never evicted.
type recommendationCache struct {
	mu      sync.Mutex
	entries map[cacheKey]Recommendation
}

func newRecommendationCache() *recommendationCache {
	return &recommendationCache{entries: map[cacheKey]Recommendation{}}
}

func (c *recommendationCache) get(productID, preference string) (Recommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[cacheKey{productID, preference}]
	return r, ok
}

func (c *recommendationCache) put(productID, preference string, r Recommendation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{productID, preference}] = r
}

func (c *recommendationCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

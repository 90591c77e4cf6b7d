package provider

import "sync"

// ResultCache holds search results keyed by local track path for the
// duration of a session. Purely in-memory; results are discarded when the
// process exits or the track leaves the working set.
type ResultCache struct {
	mu      sync.RWMutex
	results map[string][]CandidateRelease
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{
		results: make(map[string][]CandidateRelease),
	}
}

// Put stores the candidates for a track path, replacing any previous entry.
func (c *ResultCache) Put(path string, candidates []CandidateRelease) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]CandidateRelease, len(candidates))
	copy(stored, candidates)
	c.results[path] = stored
}

// Get returns the cached candidates for a track path, or nil.
func (c *ResultCache) Get(path string) []CandidateRelease {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.results[path]
	if !ok {
		return nil
	}
	out := make([]CandidateRelease, len(cached))
	copy(out, cached)
	return out
}

// Drop removes the cached entry for a track path.
func (c *ResultCache) Drop(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, path)
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

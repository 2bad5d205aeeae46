package memory

import (
	"sync"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
)

// Ensure RelevanceCache implements the interface.
var _ driven.RelevanceCache = (*RelevanceCache)(nil)

// RelevanceCache is an in-memory implementation of driven.RelevanceCache.
type RelevanceCache struct {
	mu      sync.RWMutex
	answers map[string]bool
	saves   int
}

// NewRelevanceCache creates an empty cache.
func NewRelevanceCache() *RelevanceCache {
	return &RelevanceCache{answers: make(map[string]bool)}
}

// Get returns the recorded answer for (query, path).
func (c *RelevanceCache) Get(query, path string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.answers[driven.RelevanceKey(query, path)]
	return v, ok
}

// Put records an answer.
func (c *RelevanceCache) Put(query, path string, relevant bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[driven.RelevanceKey(query, path)] = relevant
}

// Save counts the call; there is nothing to persist.
func (c *RelevanceCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	return nil
}

// Clear drops every answer.
func (c *RelevanceCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = make(map[string]bool)
	return nil
}

// Len returns the number of recorded answers.
func (c *RelevanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.answers)
}

// Saves returns how many times Save was called.
func (c *RelevanceCache) Saves() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saves
}

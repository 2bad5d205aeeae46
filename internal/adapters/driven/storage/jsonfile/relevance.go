package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/fileutil"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Ensure RelevanceCache implements the interface.
var _ driven.RelevanceCache = (*RelevanceCache)(nil)

// RelevanceCacheFile is the cache file name inside the cache directory.
const RelevanceCacheFile = "very_smart_cache.json"

const (
	answerYes = "yes"
	answerNo  = "no"
)

// RelevanceCache keeps yes/no answers in memory and writes them as one JSON
// object mapping "query|path" to "yes" or "no".
type RelevanceCache struct {
	path string

	mu      sync.RWMutex
	answers map[string]string
	dirty   bool
}

// NewRelevanceCache opens the cache in dir. An unreadable file starts an
// empty cache.
func NewRelevanceCache(dir string) (*RelevanceCache, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &RelevanceCache{
		path:    filepath.Join(dir, RelevanceCacheFile),
		answers: make(map[string]string),
	}
	if err := c.load(); err != nil {
		logger.Error("relevance cache: starting empty: %v", err)
	}
	return c, nil
}

// Path returns the cache file path.
func (c *RelevanceCache) Path() string {
	return c.path
}

func (c *RelevanceCache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var answers map[string]string
	if err := json.Unmarshal(data, &answers); err != nil {
		return fmt.Errorf("decode %s: %w", RelevanceCacheFile, err)
	}
	for k, v := range answers {
		if v == answerYes || v == answerNo {
			c.answers[k] = v
		}
	}
	return nil
}

// Get returns the recorded answer for (query, path).
func (c *RelevanceCache) Get(query, path string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.answers[driven.RelevanceKey(query, path)]
	return v == answerYes, ok
}

// Put records an answer in memory.
func (c *RelevanceCache) Put(query, path string, relevant bool) {
	answer := answerNo
	if relevant {
		answer = answerYes
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[driven.RelevanceKey(query, path)] = answer
	c.dirty = true
}

// Save writes the cache file if anything changed since the last save.
func (c *RelevanceCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c.answers, "", "  ")
	if err != nil {
		return fmt.Errorf("encode relevance cache: %w", err)
	}
	if err := fileutil.WriteAtomic(c.path, data, chunkFilePerm); err != nil {
		return fmt.Errorf("write relevance cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Clear drops every answer and removes the cache file.
func (c *RelevanceCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.answers = make(map[string]string)
	c.dirty = false
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove relevance cache: %w", err)
	}
	return nil
}

// Len returns the number of recorded answers.
func (c *RelevanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.answers)
}

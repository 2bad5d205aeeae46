package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// IndexChunkSize is the number of entries persisted per chunk file.
const IndexChunkSize = 100

// IndexEntry is the searchable form of one frame.
type IndexEntry struct {
	// Text is the display text assembled from the frame stem, its source
	// video name and its description.
	Text string

	// Tokens is the sorted, deduplicated set of normalised search terms.
	Tokens []string
}

// MarshalJSON encodes the entry as a two element array: [text, tokens].
func (e IndexEntry) MarshalJSON() ([]byte, error) {
	tokens := e.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	return json.Marshal([]any{e.Text, tokens})
}

// UnmarshalJSON decodes the [text, tokens] array form.
func (e *IndexEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("index entry: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("index entry: expected 2 elements, got %d: %w", len(raw), ErrInvalidInput)
	}
	var text string
	if err := json.Unmarshal(raw[0], &text); err != nil {
		return fmt.Errorf("index entry text: %w", err)
	}
	var tokens []string
	if err := json.Unmarshal(raw[1], &tokens); err != nil {
		return fmt.Errorf("index entry tokens: %w", err)
	}
	e.Text = text
	e.Tokens = tokens
	return nil
}

// Index maps a slash separated path, relative to the media root, to its entry.
// An Index built for a cycle is never mutated; the next cycle replaces it.
type Index map[string]IndexEntry

// Keys returns the index keys in sorted order.
func (idx Index) Keys() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Split partitions the index into chunks of size entries in key order.
func (idx Index) Split(size int) []Index {
	if size <= 0 {
		size = IndexChunkSize
	}
	keys := idx.Keys()
	chunks := make([]Index, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunk := make(Index, end-start)
		for _, k := range keys[start:end] {
			chunk[k] = idx[k]
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// FrameText is a (path, description) pair sent to the ranking call.
type FrameText struct {
	Path string
	Text string
}

// FrameLocation is the per-frame entry of a directory's timecode mapping file.
// The mapping value is either an object or, when no timecode could be
// computed, the bare source path.
type FrameLocation struct {
	// Source is the path of the video the frame was extracted from.
	Source string `json:"source"`

	// Timestamp is the HH:MM:SS:FF timecode of the frame in the source video.
	Timestamp string `json:"timestamp,omitempty"`

	// FPS is the frame rate of the source video.
	FPS float64 `json:"fps,omitempty"`

	// Position is the frame position in seconds.
	Position float64 `json:"position,omitempty"`
}

// UnmarshalJSON accepts both the object form and a bare source string.
func (l *FrameLocation) UnmarshalJSON(data []byte) error {
	var source string
	if err := json.Unmarshal(data, &source); err == nil {
		*l = FrameLocation{Source: source}
		return nil
	}
	type plain FrameLocation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("frame location: %w", err)
	}
	*l = FrameLocation(p)
	return nil
}

// FrameDescription is the content of a per-frame description file.
type FrameDescription struct {
	ImagePath   string  `json:"image_path,omitempty"`
	Timestamp   float64 `json:"timestamp,omitempty"`
	Text        string  `json:"text,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Content returns the description text, preferring the description field.
func (d FrameDescription) Content() string {
	if d.Description != "" {
		return d.Description
	}
	return d.Text
}

// IndexStats summarises the current index.
type IndexStats struct {
	// Entries is the number of indexed frames.
	Entries int

	// Chunks is the number of chunk files the index persists to.
	Chunks int

	// Root is the media root the index was built from.
	Root string

	// CacheDir is where chunks are stored.
	CacheDir string

	// LoadedAt is when the in-memory snapshot was last replaced. Zero if
	// nothing has been loaded.
	LoadedAt time.Time
}

// DescribeReport summarises a description run.
type DescribeReport struct {
	Pending   int
	Described int
	Failed    int
}

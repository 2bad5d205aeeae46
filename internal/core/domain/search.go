package domain

// SearchOptions configures a search query.
type SearchOptions struct {
	// Mode selects the ranking strategy. Empty means the configured default.
	Mode SearchMode

	// Limit is the maximum number of results. Zero means no limit.
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// Candidates, when set, replaces the keyword candidates fed to the
	// per-item filter.
	Candidates []string
}

// SearchResult represents a single ranked frame.
type SearchResult struct {
	// Path is the frame path relative to the media root.
	Path string

	// Text is the display text of the frame's index entry.
	Text string

	// Score is the keyword score. Zero for LLM strategies.
	Score int
}

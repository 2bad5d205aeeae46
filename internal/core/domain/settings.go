package domain

import "time"

const unknownDescription = "Unknown"

// SearchMode selects the ranking strategy.
type SearchMode string

// Available search modes.
const (
	// SearchModeKeyword scores entries with exact, prefix and fuzzy token matches.
	SearchModeKeyword SearchMode = "keyword"

	// SearchModeSemantic asks the language model which frames of each chunk match.
	SearchModeSemantic SearchMode = "semantic"

	// SearchModeFilter asks a yes/no question for every keyword candidate.
	SearchModeFilter SearchMode = "filter"

	// SearchModeSmart runs the semantic strategy and then the per-item filter
	// over its output.
	SearchModeSmart SearchMode = "smart"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeKeyword, SearchModeSemantic, SearchModeFilter, SearchModeSmart:
		return true
	default:
		return false
	}
}

// RequiresLLM returns true if this mode needs the external API.
func (m SearchMode) RequiresLLM() bool {
	return m != SearchModeKeyword
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeKeyword:
		return "Keyword (exact, prefix and fuzzy matching)"
	case SearchModeSemantic:
		return "Semantic (LLM ranking per index chunk)"
	case SearchModeFilter:
		return "Filter (LLM yes/no per keyword candidate)"
	case SearchModeSmart:
		return "Smart (semantic ranking, then yes/no filter)"
	default:
		return unknownDescription
	}
}

// AllSearchModes returns all available search modes.
func AllSearchModes() []SearchMode {
	return []SearchMode{
		SearchModeKeyword,
		SearchModeSemantic,
		SearchModeFilter,
		SearchModeSmart,
	}
}

// MediaSettings describes the frame tree.
type MediaSettings struct {
	// ThumbnailsDir is the media root holding one subdirectory per video.
	ThumbnailsDir string

	// FrameExts lists the frame file extensions, lower case with a dot.
	FrameExts []string
}

// CacheSettings describes where index chunks and the relevance cache live.
type CacheSettings struct {
	// Dir holds index_NNN.json chunk files and the relevance cache.
	Dir string
}

// APISettings configures the external vision/language API.
type APISettings struct {
	// Keys is the ordered list of API keys.
	Keys []string

	// BaseURL is the API endpoint.
	BaseURL string

	// TextModel ranks frame descriptions.
	TextModel string

	// VisionModel describes and judges frame images.
	VisionModel string

	// RequestInterval is the minimum spacing between calls on one key.
	RequestInterval time.Duration

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of retries for transient failures.
	MaxRetries int

	// TaskTimeout bounds how long a caller waits on a dispatched task.
	TaskTimeout time.Duration

	// RefreshInterval is how often keys are re-read from configuration.
	RefreshInterval time.Duration
}

// SearchSettings holds search behaviour configuration.
type SearchSettings struct {
	// Mode is the default ranking strategy.
	Mode SearchMode

	// FuzzyThreshold is the minimum similarity (0-100) for a fuzzy match.
	FuzzyThreshold float64

	// MinScore excludes keyword results scoring below it.
	MinScore int

	// StaggerDelay spaces out shard submissions.
	StaggerDelay time.Duration

	// Synonyms maps a term to extra query terms.
	Synonyms map[string][]string
}

// MonitorSettings configures the change monitor.
type MonitorSettings struct {
	// Interval is the time between scans.
	Interval time.Duration

	// RecencyWindow is how recent a modification must be to trigger a rebuild
	// when no files were added or removed.
	RecencyWindow time.Duration

	// Watch enables filesystem notifications as a hint to scan early.
	Watch bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	Media   MediaSettings
	Cache   CacheSettings
	API     APISettings
	Search  SearchSettings
	Monitor MonitorSettings
}

// DefaultSynonyms returns the built-in synonym table.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"танк":    {"бронетехника", "танки", "танковый", "tank"},
		"самолёт": {"самолет", "авиация", "аэроплан", "plane", "aircraft"},
		"солдат":  {"военный", "пехотинец", "бойцы", "армеец", "soldier"},
		"война":   {"боевые действия", "битва", "сражение", "конфликт", "war"},
		"tank":    {"танк"},
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// No API keys are configured by default.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Media: MediaSettings{
			ThumbnailsDir: "thumbnails",
			FrameExts:     []string{".webp"},
		},
		Cache: CacheSettings{
			Dir: "Cache",
		},
		API: APISettings{
			BaseURL:         "https://api.mistral.ai/v1",
			TextModel:       "mistral-large-latest",
			VisionModel:     "pixtral-12b-2409",
			RequestInterval: time.Second,
			Timeout:         30 * time.Second,
			MaxRetries:      2,
			TaskTimeout:     2 * time.Minute,
			RefreshInterval: time.Minute,
		},
		Search: SearchSettings{
			Mode:           SearchModeKeyword,
			FuzzyThreshold: 90,
			MinScore:       1,
			StaggerDelay:   1100 * time.Millisecond,
			Synonyms:       DefaultSynonyms(),
		},
		Monitor: MonitorSettings{
			Interval:      2 * time.Second,
			RecencyWindow: 30 * time.Second,
			Watch:         true,
		},
	}
}

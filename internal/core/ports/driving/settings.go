package driving

import "github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetSearchMode updates the default search mode.
	SetSearchMode(mode domain.SearchMode) error

	// Keys returns the configured API keys in order.
	Keys() ([]string, error)

	// AddKey appends an API key. Adding a key already present is a no-op.
	AddKey(key string) error

	// RemoveKey removes an API key. Returns domain.ErrNotFound if absent.
	RemoveKey(key string) error

	// Validate checks if current settings are usable for the configured mode.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}

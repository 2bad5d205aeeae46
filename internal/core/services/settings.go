package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyThumbnailsDir   = "media.thumbnails_dir"
	keyFrameExts       = "media.frame_exts"
	keyCacheDir        = "cache.dir"
	keyAPIKeys         = ConfigKeyAPIKeys
	keyAPIBaseURL      = "api.base_url"
	keyTextModel       = "api.text_model"
	keyVisionModel     = "api.vision_model"
	keyRequestInterval = "api.request_interval"
	keyAPITimeout      = "api.timeout"
	keyMaxRetries      = "api.max_retries"
	keyTaskTimeout     = "api.task_timeout"
	keyRefreshInterval = "api.refresh_interval"
	keySearchMode      = "search.mode"
	keyFuzzyThreshold  = "search.fuzzy_threshold"
	keyMinScore        = "search.min_score"
	keyStaggerDelay    = "search.stagger_delay"
	keySynonymsPrefix  = "search.synonyms."
	keyMonitorInterval = "monitor.interval"
	keyRecencyWindow   = "monitor.recency_window"
	keyMonitorWatch    = "monitor.watch"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Absent or invalid values
// fall back to the defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Media: domain.MediaSettings{
			ThumbnailsDir: s.getString(keyThumbnailsDir, d.Media.ThumbnailsDir),
			FrameExts:     s.getStringSlice(keyFrameExts, d.Media.FrameExts),
		},
		Cache: domain.CacheSettings{
			Dir: s.getString(keyCacheDir, d.Cache.Dir),
		},
		API: domain.APISettings{
			Keys:            s.configStore.GetStringSlice(keyAPIKeys),
			BaseURL:         s.getString(keyAPIBaseURL, d.API.BaseURL),
			TextModel:       s.getString(keyTextModel, d.API.TextModel),
			VisionModel:     s.getString(keyVisionModel, d.API.VisionModel),
			RequestInterval: s.getDuration(keyRequestInterval, d.API.RequestInterval),
			Timeout:         s.getDuration(keyAPITimeout, d.API.Timeout),
			MaxRetries:      s.getInt(keyMaxRetries, d.API.MaxRetries),
			TaskTimeout:     s.getDuration(keyTaskTimeout, d.API.TaskTimeout),
			RefreshInterval: s.getDuration(keyRefreshInterval, d.API.RefreshInterval),
		},
		Search: domain.SearchSettings{
			Mode:           s.getSearchMode(d.Search.Mode),
			FuzzyThreshold: s.getFloat(keyFuzzyThreshold, d.Search.FuzzyThreshold),
			MinScore:       s.getInt(keyMinScore, d.Search.MinScore),
			StaggerDelay:   s.getDuration(keyStaggerDelay, d.Search.StaggerDelay),
			Synonyms:       s.getSynonyms(d.Search.Synonyms),
		},
		Monitor: domain.MonitorSettings{
			Interval:      s.getDuration(keyMonitorInterval, d.Monitor.Interval),
			RecencyWindow: s.getDuration(keyRecencyWindow, d.Monitor.RecencyWindow),
			Watch:         s.getBool(keyMonitorWatch, d.Monitor.Watch),
		},
	}
	if settings.API.Keys == nil {
		settings.API.Keys = []string{}
	}

	return settings, nil
}

// Save persists application settings. Durations are written as Go duration
// strings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyThumbnailsDir, settings.Media.ThumbnailsDir},
		{keyFrameExts, settings.Media.FrameExts},
		{keyCacheDir, settings.Cache.Dir},
		{keyAPIKeys, settings.API.Keys},
		{keyAPIBaseURL, settings.API.BaseURL},
		{keyTextModel, settings.API.TextModel},
		{keyVisionModel, settings.API.VisionModel},
		{keyRequestInterval, settings.API.RequestInterval.String()},
		{keyAPITimeout, settings.API.Timeout.String()},
		{keyMaxRetries, settings.API.MaxRetries},
		{keyTaskTimeout, settings.API.TaskTimeout.String()},
		{keyRefreshInterval, settings.API.RefreshInterval.String()},
		{keySearchMode, settings.Search.Mode.String()},
		{keyFuzzyThreshold, settings.Search.FuzzyThreshold},
		{keyMinScore, settings.Search.MinScore},
		{keyStaggerDelay, settings.Search.StaggerDelay.String()},
		{keyMonitorInterval, settings.Monitor.Interval.String()},
		{keyRecencyWindow, settings.Monitor.RecencyWindow.String()},
		{keyMonitorWatch, settings.Monitor.Watch},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	for _, key := range s.configStore.Keys(keySynonymsPrefix) {
		if _, keep := settings.Search.Synonyms[strings.TrimPrefix(key, keySynonymsPrefix)]; keep {
			continue
		}
		if err := s.configStore.Delete(key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	for term, synonyms := range settings.Search.Synonyms {
		if err := s.configStore.Set(keySynonymsPrefix+term, synonyms); err != nil {
			return fmt.Errorf("save synonyms for %q: %w", term, err)
		}
	}

	return nil
}

// SetSearchMode updates the default search mode.
func (s *SettingsService) SetSearchMode(mode domain.SearchMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("search mode %q: %w", mode, domain.ErrInvalidInput)
	}
	if err := s.configStore.Set(keySearchMode, mode.String()); err != nil {
		return fmt.Errorf("save search mode: %w", err)
	}
	return nil
}

// Keys returns the configured API keys in order.
func (s *SettingsService) Keys() ([]string, error) {
	keys := s.configStore.GetStringSlice(keyAPIKeys)
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// AddKey appends an API key. Adding a key already present is a no-op.
func (s *SettingsService) AddKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key is empty: %w", domain.ErrInvalidInput)
	}
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	if err := s.configStore.Set(keyAPIKeys, append(keys, key)); err != nil {
		return fmt.Errorf("save api keys: %w", err)
	}
	return nil
}

// RemoveKey removes an API key. Returns domain.ErrNotFound if absent.
func (s *SettingsService) RemoveKey(key string) error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	if len(kept) == len(keys) {
		return fmt.Errorf("api key: %w", domain.ErrNotFound)
	}
	if err := s.configStore.Set(keyAPIKeys, kept); err != nil {
		return fmt.Errorf("save api keys: %w", err)
	}
	return nil
}

// Validate checks if current settings are usable for the configured mode.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Search.Mode.IsValid() {
		return fmt.Errorf("search mode %q: %w", settings.Search.Mode, domain.ErrInvalidInput)
	}
	if settings.Search.FuzzyThreshold < 0 || settings.Search.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold %v outside 0-100: %w", settings.Search.FuzzyThreshold, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(settings.Media.ThumbnailsDir) == "" {
		return fmt.Errorf("thumbnails directory is empty: %w", domain.ErrInvalidInput)
	}
	if settings.Search.Mode.RequiresLLM() && len(settings.API.Keys) == 0 {
		return fmt.Errorf("search mode %q requires an API key: %w",
			settings.Search.Mode.Description(), domain.ErrNoCredentials)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	val := s.configStore.GetStringSlice(key)
	if len(val) == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetDuration(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getSearchMode(defaultVal domain.SearchMode) domain.SearchMode {
	val := s.configStore.GetString(keySearchMode)
	if val == "" {
		return defaultVal
	}
	mode := domain.SearchMode(val)
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

// getSynonyms reads search.synonyms.<term> keys. With none configured the
// built-in table applies.
func (s *SettingsService) getSynonyms(defaultVal map[string][]string) map[string][]string {
	keys := s.configStore.Keys(keySynonymsPrefix)
	if len(keys) == 0 {
		return defaultVal
	}
	synonyms := make(map[string][]string, len(keys))
	for _, key := range keys {
		term := strings.TrimPrefix(key, keySynonymsPrefix)
		if term == "" {
			continue
		}
		synonyms[term] = s.configStore.GetStringSlice(key)
	}
	return synonyms
}

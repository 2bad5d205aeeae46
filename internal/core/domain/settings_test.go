package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSearchMode_IsValid(t *testing.T) {
	for _, mode := range AllSearchModes() {
		assert.True(t, mode.IsValid(), mode.String())
		assert.NotEqual(t, unknownDescription, mode.Description())
	}

	assert.False(t, SearchMode("").IsValid())
	assert.False(t, SearchMode("very_smart").IsValid())
	assert.Equal(t, unknownDescription, SearchMode("bogus").Description())
}

func TestSearchMode_RequiresLLM(t *testing.T) {
	tests := []struct {
		mode SearchMode
		want bool
	}{
		{SearchModeKeyword, false},
		{SearchModeSemantic, true},
		{SearchModeFilter, true},
		{SearchModeSmart, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.RequiresLLM())
		})
	}
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, "thumbnails", s.Media.ThumbnailsDir)
	assert.Equal(t, []string{".webp"}, s.Media.FrameExts)
	assert.Equal(t, "Cache", s.Cache.Dir)

	assert.Empty(t, s.API.Keys)
	assert.Equal(t, time.Second, s.API.RequestInterval)
	assert.Equal(t, 2, s.API.MaxRetries)
	assert.Equal(t, time.Minute, s.API.RefreshInterval)

	assert.Equal(t, SearchModeKeyword, s.Search.Mode)
	assert.Equal(t, float64(90), s.Search.FuzzyThreshold)
	assert.Equal(t, 1, s.Search.MinScore)
	assert.Equal(t, 1100*time.Millisecond, s.Search.StaggerDelay)
	assert.Contains(t, s.Search.Synonyms["танк"], "tank")

	assert.Equal(t, 30*time.Second, s.Monitor.RecencyWindow)
}

func TestDefaultSynonyms_FreshCopy(t *testing.T) {
	a := DefaultSynonyms()
	a["танк"] = nil

	b := DefaultSynonyms()
	assert.NotEmpty(t, b["танк"])
}

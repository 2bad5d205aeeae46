package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Flags(t *testing.T) {
	limit := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "20", limit.DefValue)

	mode := searchCmd.Flags().Lookup("mode")
	require.NotNil(t, mode)
	assert.Equal(t, "m", mode.Shorthand)

	assert.NotNil(t, searchCmd.Flags().Lookup("offset"))
	assert.NotNil(t, searchCmd.Flags().Lookup("json"))
}

func newSearchApp(t *testing.T) *testApp {
	t.Helper()
	ta := setupTestApp(t, "v/a.webp", "v/b.webp", "w/c.webp")
	writeDescription(t, ta.root, "v/a.webp", "tank convoy")
	writeDescription(t, ta.root, "v/b.webp", "river")
	writeDescription(t, ta.root, "w/c.webp", "convoy at night")
	return ta
}

func TestSearchCmd_Keyword(t *testing.T) {
	newSearchApp(t)

	out, err := executeCommand(t, "search", "convoy")

	require.NoError(t, err)
	assert.Contains(t, out, "Results (keyword)")
	assert.Contains(t, out, "v/a.webp")
	assert.Contains(t, out, "w/c.webp")
	assert.NotContains(t, out, "v/b.webp")
}

func TestSearchCmd_JoinsArgs(t *testing.T) {
	newSearchApp(t)

	out, err := executeCommand(t, "search", "--json", "tank", "convoy")
	require.NoError(t, err)

	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "v/a.webp", results[0].Path, "both terms match best")
	assert.Positive(t, results[0].Score)
}

func TestSearchCmd_LimitAndOffset(t *testing.T) {
	newSearchApp(t)

	out, err := executeCommand(t, "search", "--json", "-n", "1", "--offset", "1", "convoy")
	require.NoError(t, err)

	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 1)
}

func TestSearchCmd_EmptyQueryListsEverything(t *testing.T) {
	newSearchApp(t)

	out, err := executeCommand(t, "search", "--json", "--limit", "0")
	require.NoError(t, err)

	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 3)
}

func TestSearchCmd_NoResults(t *testing.T) {
	newSearchApp(t)

	out, err := executeCommand(t, "search", "submarine")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_InvalidMode(t *testing.T) {
	newSearchApp(t)

	_, err := executeCommand(t, "search", "--mode", "hybrid", "convoy")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "expected one of keyword, semantic, filter, smart")
}

func TestSearchCmd_MistypedModeSuggests(t *testing.T) {
	newSearchApp(t)

	_, err := executeCommand(t, "search", "-m", "semantc", "convoy")

	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), `did you mean "semantic"?`)
}

func TestSearchCmd_LLMModeWithoutKeysWarns(t *testing.T) {
	newSearchApp(t)

	out, err := executeCommand(t, "search", "-m", "semantic", "convoy")

	require.NoError(t, err)
	assert.Contains(t, out, "No API keys configured")
}

func TestSearchCmd_UsesConfiguredMode(t *testing.T) {
	ta := newSearchApp(t)
	require.NoError(t, ta.Settings.SetSearchMode(domain.SearchModeFilter))

	out, err := executeCommand(t, "search", "convoy")

	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "Results (filter)") || strings.Contains(out, "No results found."), out)
	assert.Contains(t, out, "No API keys configured")
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

func TestDescribeCmd_DryRun(t *testing.T) {
	ta := setupTestApp(t, "v/a.webp", "v/b.webp")
	writeDescription(t, ta.root, "v/a.webp", "tank")

	out, err := executeCommand(t, "describe", "--dry-run")

	require.NoError(t, err)
	assert.Contains(t, out, "1 frame(s) pending")
	assert.Contains(t, out, "v/b.webp")
	assert.NotContains(t, out, "v/a.webp")
}

func TestDescribeCmd_DryRunNothingPending(t *testing.T) {
	setupTestApp(t)

	out, err := executeCommand(t, "describe", "--dry-run")

	require.NoError(t, err)
	assert.Contains(t, out, "Every frame has a description.")
}

func TestDescribeCmd_RequiresKeys(t *testing.T) {
	setupTestApp(t, "v/a.webp")

	_, err := executeCommand(t, "describe")

	assert.ErrorIs(t, err, domain.ErrNoCredentials)
}

func TestDescribeCmd_WithoutVision(t *testing.T) {
	ta := setupTestApp(t, "v/a.webp")
	require.NoError(t, ta.Settings.AddKey("sk-test-0123456789"))

	_, err := executeCommand(t, "describe")

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

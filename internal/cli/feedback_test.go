package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackSubmit(t *testing.T) {
	root := newTestRoot(t)

	out, _, err := execute(t, root,
		"feedback", "submit",
		"--workflow-id", "daily-brief",
		"--feedback", "add more sources next time",
		"--score", "4")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, true, res["ok"])
	entry := res["entry"].(map[string]any)
	assert.Equal(t, "add more sources next time", entry["feedback"])
	assert.EqualValues(t, 4, entry["score"])
}

func TestFeedbackSubmitInvalidScore(t *testing.T) {
	root := newTestRoot(t)

	_, _, err := execute(t, root,
		"feedback", "submit",
		"--workflow-id", "daily-brief",
		"--feedback", "fine",
		"--score", "9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFeedbackImproveSuggestsFromKeywords(t *testing.T) {
	root := newTestRoot(t)

	_, _, err := execute(t, root,
		"feedback", "submit",
		"--workflow-id", "daily-brief",
		"--feedback", "needs more sources and citations")
	require.NoError(t, err)

	out, _, err := execute(t, root, "feedback", "improve", "--workflow-id", "daily-brief")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, true, res["ok"])
	analysis := res["analysis"].(map[string]any)
	suggestions := analysis["suggestions"].([]any)
	require.NotEmpty(t, suggestions)
	assert.Nil(t, res["autoApplied"])
}

func TestFeedbackImproveQuietWorkflow(t *testing.T) {
	root := newTestRoot(t)

	out, _, err := execute(t, root, "feedback", "improve", "--workflow-id", "daily-brief")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	analysis := res["analysis"].(map[string]any)
	assert.Empty(t, analysis["suggestions"])
}

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createApproval creates a pending approval and returns its id. A later
// --artifact-path in extra overrides the default.
func createApproval(t *testing.T, root string, extra ...string) string {
	t.Helper()
	args := append([]string{
		"approval", "create",
		"--brand-id", "acme",
		"--run-id", "run-1",
		"--artifact-path", t.TempDir(),
	}, extra...)

	out, _, err := execute(t, root, args...)
	require.NoError(t, err)

	res := decodeJSON(t, out)
	require.Equal(t, true, res["ok"])
	rec, ok := res["record"].(map[string]any)
	require.True(t, ok)
	id, _ := rec["approval_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestApprovalCreatePending(t *testing.T) {
	root := newTestRoot(t)

	out, _, err := execute(t, root,
		"approval", "create",
		"--brand-id", "acme",
		"--run-id", "run-1",
		"--artifact-path", t.TempDir(),
		"--owner-name", "Jamie",
		"--deadline-hours", "48")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, "create", res["action"])

	rec := res["record"].(map[string]any)
	assert.Equal(t, "pending", rec["status"])
	assert.Equal(t, "acme", rec["brand_id"])

	owner := rec["owner"].(map[string]any)
	assert.Equal(t, "Jamie", owner["name"])
}

func TestApprovalCreateMissingBrand(t *testing.T) {
	root := newTestRoot(t)

	_, _, err := execute(t, root, "approval", "create", "--run-id", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestApprovalCreateMissingArtifactPath(t *testing.T) {
	root := newTestRoot(t)

	_, _, err := execute(t, root, "approval", "create", "--brand-id", "acme", "--run-id", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "artifact-path")
}

func TestApprovalZeroDeadlineAutoHeldOnRemind(t *testing.T) {
	root := newTestRoot(t)
	id := createApproval(t, root, "--deadline-hours", "0")

	out, _, err := execute(t, root, "approval", "remind", "--all-due")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	results := res["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, id, first["approval_id"])
	assert.Equal(t, "held+reminded", first["action"])
}

func TestApprovalApproveReleasesBundle(t *testing.T) {
	root := newTestRoot(t)
	artifactDir := filepath.Join(root, "artifacts")
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "publish-bundle.md"),
		[]byte("# Bundle\n\nReady for review.\n"), 0o644))

	id := createApproval(t, root, "--artifact-path", artifactDir)

	out, _, err := execute(t, root, "approval", "approve", id, "--decision-note", "looks good")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, "approved", res["action"])

	release := res["release"].(map[string]any)
	assert.Equal(t, true, release["ok"])
	assert.FileExists(t, filepath.Join(artifactDir, "publish-bundle.final.md"))
}

func TestApprovalRejectQueuesRevision(t *testing.T) {
	root := newTestRoot(t)
	id := createApproval(t, root)

	out, _, err := execute(t, root, "approval", "reject", id, "--decision-note", "tone is off")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, "rejected", res["action"])
	revision := res["revision"].(map[string]any)
	assert.Equal(t, true, revision["queued"])

	rec := res["record"].(map[string]any)
	assert.Equal(t, "tone is off", rec["decision_note"])
}

func TestApprovalHoldThenApprove(t *testing.T) {
	root := newTestRoot(t)
	id := createApproval(t, root)

	_, _, err := execute(t, root, "approval", "hold", id)
	require.NoError(t, err)

	out, _, err := execute(t, root, "approval", "approve", id)
	require.NoError(t, err)

	res := decodeJSON(t, out)
	rec := res["record"].(map[string]any)
	assert.Equal(t, "approved", rec["status"])
}

func TestApprovalDecideUnknownID(t *testing.T) {
	root := newTestRoot(t)

	_, _, err := execute(t, root, "approval", "approve", "apr-deadbeef-zz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestApprovalRemindPending(t *testing.T) {
	root := newTestRoot(t)
	id := createApproval(t, root)

	out, _, err := execute(t, root, "approval", "remind", "--approval-id", id)
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, true, res["ok"])
	assert.EqualValues(t, 1, res["count"])

	results := res["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, id, first["approval_id"])
	assert.Equal(t, "reminded", first["action"])
}

func TestApprovalStatusSummary(t *testing.T) {
	root := newTestRoot(t)
	id := createApproval(t, root)
	_, _, err := execute(t, root, "approval", "hold", id)
	require.NoError(t, err)

	out, _, err := execute(t, root, "approval", "status")
	require.NoError(t, err)

	res := decodeJSON(t, out)
	summary := res["summary"].(map[string]any)
	held := summary["held"].(map[string]any)
	assert.EqualValues(t, 1, held["count"])
	pending := summary["pending"].(map[string]any)
	assert.EqualValues(t, 0, pending["count"])
}

func TestApprovalStatusSingle(t *testing.T) {
	root := newTestRoot(t)
	id := createApproval(t, root)

	out, _, err := execute(t, root, "approval", "status", "--approval-id", id)
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, "pending", res["state"])
	rec := res["record"].(map[string]any)
	assert.Equal(t, id, rec["approval_id"])
}

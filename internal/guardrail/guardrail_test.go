package guardrail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/store"
)

const dossier = `# Acme Dossier

## Messaging Do/Don't
- Do highlight customer stories.
- Don't say "industry-leading" in any copy.
- Never promise guaranteed returns.

## Voice
Friendly but direct.
`

type harness struct {
	checker *Checker
	store   *store.Store
	ctx     context.Context
}

func setup(t *testing.T) (*harness, string) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	brandsDir := t.TempDir()
	profileDir := filepath.Join(brandsDir, "acme", "profile")
	require.NoError(t, os.MkdirAll(profileDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(profileDir, "brand-dossier.md"), []byte(dossier), 0o644))

	artifactDir := t.TempDir()
	writeArtifacts(t, artifactDir, map[string]string{
		"technical-writer.md":  "# Technical notes\n",
		"marketing-pack.md":    "See https://example.com/report for details.\n",
		"brand-design-pack.md": "# Design\n",
		"publish-bundle.md":    "Summary with a link: https://example.com\n",
		"sources.csv":          "url,title\nhttps://example.com,Example\n",
		"run-manifest.json":    `{"cadence":"daily","approval_id":""}`,
		"approval-summary.md":  "# Approval\n",
	})

	return &harness{checker: New(st, brandsDir), store: st, ctx: context.Background()}, artifactDir
}

func writeArtifacts(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func checkByName(t *testing.T, r *Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return Check{}
}

func TestRunValidation(t *testing.T) {
	h, dir := setup(t)

	_, err := h.checker.Run(h.ctx, Params{ArtifactDir: dir})
	assert.True(t, fault.IsValidation(err))
	_, err = h.checker.Run(h.ctx, Params{BrandID: "acme"})
	assert.True(t, fault.IsValidation(err))
}

func TestRunCleanArtifacts(t *testing.T) {
	h, dir := setup(t)

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir})
	require.NoError(t, err)

	assert.True(t, r.OK)
	assert.Zero(t, r.BlockingFailures)
	// approval id absent is only a warning
	assert.Equal(t, 1, r.WarningFailures)
	assert.Equal(t, "daily", r.Cadence)
	assert.Equal(t, 0, ExitStatus(r))

	approval := checkByName(t, r, "approval_state_exists")
	assert.Equal(t, SeverityWarning, approval.Severity)
	assert.False(t, approval.OK)
}

func TestRunMissingArtifactsBlock(t *testing.T) {
	h, dir := setup(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "publish-bundle.md")))
	require.NoError(t, os.Remove(filepath.Join(dir, "sources.csv")))

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir})
	require.NoError(t, err)

	assert.False(t, r.OK)
	assert.Equal(t, 2, ExitStatus(r))

	c := checkByName(t, r, "mandatory_artifacts_present")
	assert.False(t, c.OK)
	assert.ElementsMatch(t, []string{"publish-bundle.md", "sources.csv"}, c.Details["missing"])
}

func TestRunCadenceRequiresClientReport(t *testing.T) {
	h, dir := setup(t)

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir, Cadence: "weekly"})
	require.NoError(t, err)
	assert.False(t, r.OK)
	c := checkByName(t, r, "mandatory_artifacts_present")
	assert.Equal(t, []string{"client-success-report.md"}, c.Details["missing"])

	writeArtifacts(t, dir, map[string]string{"client-success-report.md": "# CSR\n"})
	r, err = h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir, Cadence: "weekly"})
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Equal(t, "weekly", r.Cadence)
}

func TestRunCadenceFromManifest(t *testing.T) {
	h, dir := setup(t)
	writeArtifacts(t, dir, map[string]string{
		"run-manifest.json": `{"cadence":"monthly"}`,
	})

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "monthly", r.Cadence)
	// monthly requires the client success report, which is absent
	assert.False(t, r.OK)
}

func TestRunEmptySourcesBlock(t *testing.T) {
	h, dir := setup(t)
	writeArtifacts(t, dir, map[string]string{"sources.csv": "url,title\n"})

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir})
	require.NoError(t, err)

	c := checkByName(t, r, "source_rows_present")
	assert.False(t, c.OK)
	assert.Equal(t, 0, c.Details["rows"])
	assert.False(t, r.OK)
}

func TestRunNoReferenceLinksBlock(t *testing.T) {
	h, dir := setup(t)
	writeArtifacts(t, dir, map[string]string{
		"marketing-pack.md": "No links here.\n",
		"publish-bundle.md": "Still no links.\n",
	})

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir})
	require.NoError(t, err)

	c := checkByName(t, r, "reference_links_present")
	assert.False(t, c.OK)
	assert.Equal(t, 0, c.Details["url_count"])
}

func TestRunUnsupportedClaims(t *testing.T) {
	h, dir := setup(t)
	writeArtifacts(t, dir, map[string]string{
		"marketing-pack.md": "Revenue grew 45% last quarter.\nCited growth of 12% according to https://example.com.\n",
	})

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir})
	require.NoError(t, err)

	c := checkByName(t, r, "unsupported_claims_check")
	assert.False(t, c.OK)
	assert.Equal(t, 1, c.Details["count"])
	sample := c.Details["sample"].([]ClaimIssue)
	require.Len(t, sample, 1)
	assert.Equal(t, "marketing-pack.md", sample[0].File)
	assert.Equal(t, 1, sample[0].Line)
}

func TestRunProhibitedLanguage(t *testing.T) {
	h, dir := setup(t)
	writeArtifacts(t, dir, map[string]string{
		"publish-bundle.md": "Our industry-leading platform: https://example.com\n",
	})

	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir})
	require.NoError(t, err)

	c := checkByName(t, r, "prohibited_language_check")
	assert.False(t, c.OK)
	hits := c.Details["sample"].([]PhraseHit)
	require.NotEmpty(t, hits)
	assert.Equal(t, "publish-bundle.md", hits[0].File)
	assert.Equal(t, "industry-leading", hits[0].Phrase)
}

func TestRunApprovalStateLookup(t *testing.T) {
	h, dir := setup(t)

	// missing approval blocks
	r, err := h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir, ApprovalID: "apr-missing"})
	require.NoError(t, err)
	c := checkByName(t, r, "approval_state_exists")
	assert.Equal(t, SeverityBlocking, c.Severity)
	assert.False(t, c.OK)
	assert.False(t, r.OK)

	// a present record passes and reports its partition
	a := &record.Approval{
		ApprovalID:   "apr-1a2b3c4d-t1",
		BrandID:      "acme",
		RunID:        "run-1",
		Status:       record.ApprovalPending,
		ArtifactPath: dir,
	}
	require.NoError(t, h.store.CreateApproval(h.ctx, a))

	r, err = h.checker.Run(h.ctx, Params{BrandID: "acme", ArtifactDir: dir, ApprovalID: a.ApprovalID})
	require.NoError(t, err)
	c = checkByName(t, r, "approval_state_exists")
	assert.True(t, c.OK)
	assert.Equal(t, "pending", c.Details["state"])
	assert.True(t, r.OK)
}

func TestExtractProhibitedPhrases(t *testing.T) {
	phrases := ExtractProhibitedPhrases(dossier)
	assert.Contains(t, phrases, "industry-leading")
	assert.Contains(t, phrases, `say "industry-leading" in any copy`)
	assert.Contains(t, phrases, "promise guaranteed returns")
	// the positive bullet contributes nothing
	for _, p := range phrases {
		assert.NotContains(t, p, "customer stories")
	}
}

func TestExtractProhibitedPhrasesNoSection(t *testing.T) {
	assert.Empty(t, ExtractProhibitedPhrases("# Dossier\n\n## Voice\nDirect.\n"))
}

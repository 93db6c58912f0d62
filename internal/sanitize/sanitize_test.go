package sanitize

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/testutil"
)

const marketingPack = `# Hook: the quiet cost of manual reporting
Some intro text.
Opening angle: teams lose whole afternoons to copy-paste.
CTA: reply BOOK to get the Acme Analytics onboarding checklist.
Visit https://acme.example/report or email sales@acme.example for $4,500 pricing, up 35%.
`

const designPack = `# Palette and layout
Use a two-column composition with muted palette.
`

const technicalDoc = `Runbook: verify exports before delivery.
QA checklist covers the acceptance criteria in full detail.
`

const dossierDoc = `---
brand_name: "Acme Analytics"
---
# Acme Analytics Dossier
`

func setup(t *testing.T) (*Service, string, string) {
	t.Helper()

	brandsDir := t.TempDir()
	profile := filepath.Join(brandsDir, "acme", "profile")
	require.NoError(t, os.MkdirAll(profile, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(profile, "brand-dossier.md"), []byte(dossierDoc), 0o644))

	artifactDir := filepath.Join(t.TempDir(), "run-artifacts")
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "marketing-pack.md"), []byte(marketingPack), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "brand-design-pack.md"), []byte(designPack), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "technical-writer.md"), []byte(technicalDoc), 0o644))

	sharedFile := filepath.Join(t.TempDir(), "pattern-library.jsonl")
	clock := testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(brandsDir, sharedFile, WithClock(clock)), artifactDir, sharedFile
}

func TestScrubLine(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"link", "see https://acme.example/x for info", "see [link] for info"},
		{"email", "mail sales@acme.example today", "mail <email> today"},
		{"phone", "call +1 (555) 010-0199 now", "call <phone> now"},
		{"money", "priced at $4,500 per seat", "priced at <metric> per seat"},
		{"percent", "grew 35% this year", "grew <metric> this year"},
		{"number", "over 1,200 teams onboard", "over <metric> teams onboard"},
		{"whitespace", "  spaced   out\ttext  ", "spaced out text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScrubLine(tc.in, ""))
		})
	}
}

func TestScrubLineBrandName(t *testing.T) {
	got := ScrubLine("Why ACME ANALYTICS outperforms acme analytics", "Acme Analytics")
	assert.Equal(t, "Why <brand> outperforms <brand>", got)
}

func TestBrandRef(t *testing.T) {
	ref := BrandRef("acme")
	assert.Len(t, ref, 12)
	assert.Equal(t, ref, BrandRef("acme"))
	assert.NotEqual(t, ref, BrandRef("globex"))
	assert.NotContains(t, ref, "acme")
}

func TestRunExtractsAndAppends(t *testing.T) {
	svc, artifactDir, sharedFile := setup(t)

	res, err := svc.Run(context.Background(), Params{
		BrandID:     "acme",
		ArtifactDir: artifactDir,
		RunID:       "run-1",
		Cadence:     "weekly",
	})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.True(t, res.Appended)
	assert.Equal(t, sharedFile, res.SharedFile)
	assert.Positive(t, res.Summary.Hooks)
	assert.Positive(t, res.Summary.CTAs)
	assert.Positive(t, res.Summary.DesignDirectives)
	assert.Positive(t, res.Summary.CSFrameworks)

	raw, err := os.ReadFile(sharedFile)
	require.NoError(t, err)
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))

	assert.Equal(t, BrandRef("acme"), entry.SourceBrandRef)
	assert.Equal(t, "run-1", entry.RunID)
	assert.Equal(t, "weekly", entry.Cadence)
	assert.Equal(t, "patterns_only", entry.Policy)
	assert.Equal(t, "run-artifacts", entry.SourceArtifactDir)

	// nothing identifying leaves the brand boundary
	body := string(raw)
	assert.NotContains(t, body, "acme.example")
	assert.NotContains(t, body, "sales@")
	assert.NotContains(t, body, "$4,500")
	assert.NotContains(t, body, "Acme Analytics")
	assert.Contains(t, strings.Join(entry.Patterns.CTAs, "\n"), "<brand>")
}

func TestRunDryRun(t *testing.T) {
	svc, artifactDir, sharedFile := setup(t)

	res, err := svc.Run(context.Background(), Params{
		BrandID:     "acme",
		ArtifactDir: artifactDir,
		RunID:       "run-1",
		DryRun:      true,
	})
	require.NoError(t, err)

	assert.False(t, res.Appended)
	assert.Equal(t, "daily", res.Entry.Cadence)
	assert.NoFileExists(t, sharedFile)
}

func TestRunAppendsAcrossRuns(t *testing.T) {
	svc, artifactDir, sharedFile := setup(t)
	ctx := context.Background()

	for _, runID := range []string{"run-1", "run-2"} {
		_, err := svc.Run(ctx, Params{BrandID: "acme", ArtifactDir: artifactDir, RunID: runID})
		require.NoError(t, err)
	}

	f, err := os.Open(sharedFile)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			lines++
		}
	}
	assert.Equal(t, 2, lines)
}

func TestRunValidation(t *testing.T) {
	svc, artifactDir, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, Params{ArtifactDir: artifactDir, RunID: "r"})
	assert.True(t, fault.IsValidation(err))
	_, err = svc.Run(ctx, Params{BrandID: "acme", RunID: "r"})
	assert.True(t, fault.IsValidation(err))
	_, err = svc.Run(ctx, Params{BrandID: "acme", ArtifactDir: artifactDir})
	assert.True(t, fault.IsValidation(err))
}

func TestRunMissingArtifactsYieldEmptyPatterns(t *testing.T) {
	svc, _, _ := setup(t)

	res, err := svc.Run(context.Background(), Params{
		BrandID:     "acme",
		ArtifactDir: filepath.Join(t.TempDir(), "empty"),
		RunID:       "run-1",
		DryRun:      true,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Summary.Hooks)
	assert.Zero(t, res.Summary.CTAs)
	assert.Empty(t, res.Entry.Patterns.Hooks)
}

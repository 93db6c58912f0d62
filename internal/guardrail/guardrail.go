// Package guardrail runs pre-publish compliance checks over a run's
// artifact directory: mandatory artifacts, cited sources, reference links,
// unsupported numeric claims, brand-prohibited language, and the existence
// of an approval record. Blocking failures veto release; warnings do not.
package guardrail

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/store"
)

// Check severities.
const (
	SeverityBlocking = "blocking"
	SeverityWarning  = "warning"
)

// mandatoryArtifacts must exist in every artifact directory. Weekly and
// monthly cadences also require the client success report.
var mandatoryArtifacts = []string{
	"technical-writer.md",
	"marketing-pack.md",
	"brand-design-pack.md",
	"publish-bundle.md",
	"sources.csv",
	"run-manifest.json",
	"approval-summary.md",
}

const clientSuccessReport = "client-success-report.md"

// maxClaimIssues caps how many unsupported-claim lines one file scan
// reports.
const maxClaimIssues = 20

var (
	urlRE          = regexp.MustCompile(`https?://[^\s)\]]+`)
	numericClaimRE = regexp.MustCompile(`(\$\s?\d|\d+%|\b\d{4}\b|\b\d{2,}\b)`)
	citedRE        = regexp.MustCompile(`(?i)(https?://|\[source|citation|according to)`)
	letterRE       = regexp.MustCompile(`[A-Za-z]`)
	prohibitionRE  = regexp.MustCompile(`(?i)(don't|do not|avoid|never|prohibit|forbid)`)
	quotedRE       = regexp.MustCompile(`"([^"]+)"`)
	bulletPrefixRE = regexp.MustCompile(`^[-*]\s*`)
	directiveRE    = regexp.MustCompile(`(?i)^(do not|don't|avoid|never|prohibit|forbid)\s*`)
	headingRE      = regexp.MustCompile(`^##\s+`)
)

// Check is one named guardrail probe.
type Check struct {
	Name     string         `json:"name"`
	Severity string         `json:"severity"`
	OK       bool           `json:"ok"`
	Details  map[string]any `json:"details"`
}

// ClaimIssue points at one numeric claim with no visible citation.
type ClaimIssue struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// PhraseHit records one prohibited phrase found in an artifact.
type PhraseHit struct {
	File   string `json:"file"`
	Phrase string `json:"phrase"`
}

// Report is the full guardrail verdict for one artifact directory.
type Report struct {
	OK               bool    `json:"ok"`
	BrandID          string  `json:"brand_id"`
	ArtifactDir      string  `json:"artifact_dir"`
	Cadence          string  `json:"cadence"`
	BlockingFailures int     `json:"blocking_failures"`
	WarningFailures  int     `json:"warning_failures"`
	Checks           []Check `json:"checks"`
}

// Checker runs the guardrail suite. The store is consulted for approval
// records; brandsDir holds per-brand dossiers.
type Checker struct {
	store     *store.Store
	brandsDir string
	log       *slog.Logger
}

// New builds a Checker.
func New(st *store.Store, brandsDir string) *Checker {
	return &Checker{store: st, brandsDir: brandsDir, log: slog.Default()}
}

// Params drive one guardrail check.
type Params struct {
	BrandID     string
	ArtifactDir string
	ApprovalID  string // empty falls back to the run manifest
	Cadence     string // empty falls back to the run manifest, then daily
}

// Run executes every check and aggregates the verdict. Only blocking
// failures flip OK to false.
func (c *Checker) Run(ctx context.Context, p Params) (*Report, error) {
	if p.BrandID == "" {
		return nil, fault.Validation("missing brand id")
	}
	if p.ArtifactDir == "" {
		return nil, fault.Validation("missing artifact dir")
	}

	manifest := readManifest(filepath.Join(p.ArtifactDir, "run-manifest.json"))
	cadence := p.Cadence
	if cadence == "" {
		cadence = manifest.Cadence
	}
	if cadence == "" {
		cadence = "daily"
	}

	required := append([]string{}, mandatoryArtifacts...)
	if cadence == "weekly" || cadence == "monthly" {
		required = append(required, clientSuccessReport)
	}

	var checks []Check

	var missing []string
	for _, f := range required {
		if _, err := os.Stat(filepath.Join(p.ArtifactDir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		checks = append(checks, Check{
			Name:     "mandatory_artifacts_present",
			Severity: SeverityBlocking,
			Details:  map[string]any{"missing": missing},
		})
	} else {
		checks = append(checks, Check{
			Name:     "mandatory_artifacts_present",
			Severity: SeverityBlocking,
			OK:       true,
			Details:  map[string]any{"required_count": len(required)},
		})
	}

	rows := countSourceRows(filepath.Join(p.ArtifactDir, "sources.csv"))
	checks = append(checks, Check{
		Name:     "source_rows_present",
		Severity: SeverityBlocking,
		OK:       rows > 0,
		Details:  map[string]any{"rows": rows},
	})

	marketingPack := readText(filepath.Join(p.ArtifactDir, "marketing-pack.md"))
	publishBundle := readText(filepath.Join(p.ArtifactDir, "publish-bundle.md"))

	urls := len(urlRE.FindAllString(marketingPack, -1)) + len(urlRE.FindAllString(publishBundle, -1))
	checks = append(checks, Check{
		Name:     "reference_links_present",
		Severity: SeverityBlocking,
		OK:       urls > 0,
		Details:  map[string]any{"url_count": urls},
	})

	unsupported := append(
		findUnsupportedClaims(marketingPack, "marketing-pack.md"),
		findUnsupportedClaims(publishBundle, "publish-bundle.md")...,
	)
	claimDetails := map[string]any{"count": len(unsupported)}
	if len(unsupported) > 0 {
		claimDetails["sample"] = unsupported[:min(5, len(unsupported))]
	}
	checks = append(checks, Check{
		Name:     "unsupported_claims_check",
		Severity: SeverityBlocking,
		OK:       len(unsupported) == 0,
		Details:  claimDetails,
	})

	dossier := readText(filepath.Join(c.brandsDir, p.BrandID, "profile", "brand-dossier.md"))
	phrases := ExtractProhibitedPhrases(dossier)
	hits := append(
		findProhibitedUsage(marketingPack, phrases, "marketing-pack.md"),
		findProhibitedUsage(publishBundle, phrases, "publish-bundle.md")...,
	)
	phraseDetails := map[string]any{"count": len(hits)}
	if len(hits) > 0 {
		phraseDetails["sample"] = hits[:min(5, len(hits))]
	}
	checks = append(checks, Check{
		Name:     "prohibited_language_check",
		Severity: SeverityBlocking,
		OK:       len(hits) == 0,
		Details:  phraseDetails,
	})

	approvalID := p.ApprovalID
	if approvalID == "" {
		approvalID = manifest.ApprovalID
	}
	if approvalID != "" {
		state, a, err := c.store.LocateApproval(ctx, approvalID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			checks = append(checks, Check{
				Name:     "approval_state_exists",
				Severity: SeverityBlocking,
				OK:       true,
				Details:  map[string]any{"state": string(state)},
			})
		} else {
			checks = append(checks, Check{
				Name:     "approval_state_exists",
				Severity: SeverityBlocking,
				Details:  map[string]any{"missing_approval_id": approvalID},
			})
		}
	} else {
		checks = append(checks, Check{
			Name:     "approval_state_exists",
			Severity: SeverityWarning,
			Details:  map[string]any{"note": "approval_id not provided"},
		})
	}

	report := &Report{
		BrandID:     p.BrandID,
		ArtifactDir: p.ArtifactDir,
		Cadence:     cadence,
		Checks:      checks,
	}
	for _, ch := range checks {
		if ch.OK {
			continue
		}
		if ch.Severity == SeverityBlocking {
			report.BlockingFailures++
		} else {
			report.WarningFailures++
		}
	}
	report.OK = report.BlockingFailures == 0
	if !report.OK {
		c.log.Warn("guardrail check failed", "brand", p.BrandID, "blocking", report.BlockingFailures)
	}
	return report, nil
}

type manifest struct {
	Cadence    string `json:"cadence"`
	ApprovalID string `json:"approval_id"`
}

func readManifest(path string) manifest {
	var m manifest
	body, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	_ = json.Unmarshal(body, &m)
	return m
}

func readText(path string) string {
	body, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(body)
}

// countSourceRows counts data rows in a CSV, excluding the header.
func countSourceRows(path string) int {
	text := strings.TrimSpace(readText(path))
	if text == "" {
		return 0
	}
	lines := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	if lines <= 1 {
		return 0
	}
	return lines - 1
}

// findUnsupportedClaims flags lines carrying money, percentage or large
// numeric figures with no citation marker on the same line.
func findUnsupportedClaims(text, fileLabel string) []ClaimIssue {
	var issues []ClaimIssue
	for i, line := range strings.Split(text, "\n") {
		if !numericClaimRE.MatchString(line) {
			continue
		}
		if citedRE.MatchString(line) {
			continue
		}
		if !letterRE.MatchString(line) {
			continue
		}
		issues = append(issues, ClaimIssue{File: fileLabel, Line: i + 1, Text: strings.TrimSpace(line)})
		if len(issues) >= maxClaimIssues {
			break
		}
	}
	return issues
}

// findProhibitedUsage reports which prohibited phrases appear in the text.
func findProhibitedUsage(text string, phrases []string, fileLabel string) []PhraseHit {
	low := strings.ToLower(text)
	var hits []PhraseHit
	for _, phrase := range phrases {
		if len(phrase) < 4 {
			continue
		}
		if strings.Contains(low, phrase) {
			hits = append(hits, PhraseHit{File: fileLabel, Phrase: phrase})
		}
	}
	return hits
}

// ExtractProhibitedPhrases pulls prohibited wording from the dossier's
// "## Messaging Do/Don't" section. Both quoted phrases and the cleaned
// bullet text are collected, lowercased.
func ExtractProhibitedPhrases(dossier string) []string {
	section := extractSection(dossier, "## Messaging Do/Don't")
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, raw := range section {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		if !prohibitionRE.MatchString(line) {
			continue
		}
		for _, m := range quotedRE.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
		cleaned := bulletPrefixRE.ReplaceAllString(line, "")
		cleaned = directiveRE.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimRight(cleaned, ":.")
		if len(strings.TrimSpace(cleaned)) >= 4 {
			add(cleaned)
		}
	}
	return out
}

// extractSection returns the lines between a heading and the next ##
// heading.
func extractSection(text, heading string) []string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, l := range lines {
		if strings.EqualFold(strings.TrimSpace(l), heading) {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}
	var section []string
	for _, l := range lines[start+1:] {
		if headingRE.MatchString(l) {
			break
		}
		section = append(section, l)
	}
	return section
}

// Exit status helper: blocking guardrail failures map to a distinct exit
// code so cron wrappers can branch on it.
func ExitStatus(r *Report) int {
	if r.OK {
		return 0
	}
	return 2
}

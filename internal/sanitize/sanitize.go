// Package sanitize distills reusable patterns from a brand's run artifacts
// into a shared cross-brand library. Every extracted line is scrubbed of
// identifying material first (links, emails, phones, metrics, the brand
// name), so only structural patterns leave the brand boundary.
package sanitize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/stagehand-dev/stagehand/internal/fault"
)

var (
	linkRE       = regexp.MustCompile(`https?://[^\s)\]]+`)
	emailRE      = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phoneRE      = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	moneyRE      = regexp.MustCompile(`\$\s?\d[\d,.]*`)
	percentRE    = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)
	numberRE     = regexp.MustCompile(`\b\d{1,4}(?:,\d{3})*(?:\.\d+)?\b`)
	whitespaceRE = regexp.MustCompile(`\s+`)

	headingRE  = regexp.MustCompile(`^#+\s+`)
	hookRE     = regexp.MustCompile(`(?i)hook|angle|opening`)
	ctaRE      = regexp.MustCompile(`(?i)cta|call to action|next step|reply|book|apply`)
	designRE   = regexp.MustCompile(`(?i)layout|composition|palette|style|prompt`)
	successRE  = regexp.MustCompile(`(?i)risk|renewal|retention|next action|qbr|nps|churn`)
	runbookRE  = regexp.MustCompile(`(?i)SOP|checklist|runbook|qa|acceptance`)
	brandKeyRE = regexp.MustCompile(`(?m)^brand_name:\s*(.+)$`)
)

// Patterns groups the sanitized lines by kind.
type Patterns struct {
	Hooks            []string `json:"hooks"`
	CTAs             []string `json:"ctas"`
	DesignDirectives []string `json:"design_directives"`
	CSFrameworks     []string `json:"cs_frameworks"`
}

// Entry is one appended pattern-library record. The source brand is only
// ever referenced by a truncated hash.
type Entry struct {
	TS                time.Time `json:"ts"`
	SourceBrandRef    string    `json:"source_brand_ref"`
	RunID             string    `json:"run_id"`
	Cadence           string    `json:"cadence"`
	Patterns          Patterns  `json:"patterns"`
	Policy            string    `json:"policy"`
	SourceArtifactDir string    `json:"source_artifact_dir"`
}

// Summary counts what one pass extracted.
type Summary struct {
	Hooks            int `json:"hooks"`
	CTAs             int `json:"ctas"`
	DesignDirectives int `json:"design_directives"`
	CSFrameworks     int `json:"cs_frameworks"`
}

// Result is the outcome of one sanitize pass.
type Result struct {
	OK         bool    `json:"ok"`
	Action     string  `json:"action"`
	Appended   bool    `json:"appended"`
	SharedFile string  `json:"shared_file"`
	Summary    Summary `json:"summary"`
	Entry      *Entry  `json:"entry,omitempty"`
}

// Clock provides the entry timestamp.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service extracts patterns from artifact directories into the shared
// library file.
type Service struct {
	brandsDir  string
	sharedFile string
	clock      Clock
	log        *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// New builds a Service. brandsDir holds per-brand dossiers; sharedFile is
// the cross-brand pattern library (jsonl).
func New(brandsDir, sharedFile string, opts ...Option) *Service {
	s := &Service{
		brandsDir:  brandsDir,
		sharedFile: sharedFile,
		clock:      systemClock{},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params drive one sanitize pass.
type Params struct {
	BrandID     string
	ArtifactDir string
	RunID       string
	Cadence     string // empty means daily
	DryRun      bool
}

// Run extracts, scrubs and appends patterns from the artifact directory.
// DryRun builds the entry without appending it.
func (s *Service) Run(_ context.Context, p Params) (*Result, error) {
	if p.BrandID == "" {
		return nil, fault.Validation("missing brand id")
	}
	if p.ArtifactDir == "" {
		return nil, fault.Validation("missing artifact dir")
	}
	if p.RunID == "" {
		return nil, fault.Validation("missing run id")
	}
	cadence := p.Cadence
	if cadence == "" {
		cadence = "daily"
	}

	brandName := s.brandName(p.BrandID)

	technical := readText(filepath.Join(p.ArtifactDir, "technical-writer.md"))
	marketing := readText(filepath.Join(p.ArtifactDir, "marketing-pack.md"))
	design := readText(filepath.Join(p.ArtifactDir, "brand-design-pack.md"))
	success := readText(filepath.Join(p.ArtifactDir, "client-success-report.md"))

	hookCandidates := append(pickByRegex(marketing, headingRE), pickByRegex(marketing, hookRE)...)
	ctaCandidates := pickByRegex(marketing, ctaRE)
	designCandidates := append(pickByRegex(design, headingRE), pickByRegex(design, designRE)...)
	csCandidates := append(pickByRegex(success, successRE), pickByRegex(technical, runbookRE)...)

	patterns := Patterns{
		Hooks:            uniqueNonEmpty(scrubAll(hookCandidates, brandName), 12, 180, 12),
		CTAs:             uniqueNonEmpty(scrubAll(ctaCandidates, brandName), 12, 180, 12),
		DesignDirectives: uniqueNonEmpty(scrubAll(designCandidates, brandName), 12, 220, 12),
		CSFrameworks:     uniqueNonEmpty(scrubAll(csCandidates, brandName), 12, 220, 12),
	}

	entry := &Entry{
		TS:                s.clock.Now(),
		SourceBrandRef:    BrandRef(p.BrandID),
		RunID:             p.RunID,
		Cadence:           cadence,
		Patterns:          patterns,
		Policy:            "patterns_only",
		SourceArtifactDir: filepath.Base(p.ArtifactDir),
	}

	if !p.DryRun {
		if err := s.append(entry); err != nil {
			return nil, err
		}
		s.log.Info("patterns appended", "brand_ref", entry.SourceBrandRef, "run", p.RunID)
	}

	return &Result{
		OK:         true,
		Action:     "sanitize",
		Appended:   !p.DryRun,
		SharedFile: s.sharedFile,
		Summary: Summary{
			Hooks:            len(patterns.Hooks),
			CTAs:             len(patterns.CTAs),
			DesignDirectives: len(patterns.DesignDirectives),
			CSFrameworks:     len(patterns.CSFrameworks),
		},
		Entry: entry,
	}, nil
}

// Sanitize implements the approval manager's sanitizer port.
func (s *Service) Sanitize(ctx context.Context, brandID, artifactDir, runID, cadence string) (any, error) {
	return s.Run(ctx, Params{BrandID: brandID, ArtifactDir: artifactDir, RunID: runID, Cadence: cadence})
}

// BrandRef is the anonymized reference for a brand id: the first 12 hex
// chars of its sha256.
func BrandRef(brandID string) string {
	sum := sha256.Sum256([]byte(brandID))
	return hex.EncodeToString(sum[:])[:12]
}

// ScrubLine removes identifying material from one line and collapses
// whitespace.
func ScrubLine(raw, brandName string) string {
	line := linkRE.ReplaceAllString(raw, "[link]")
	line = emailRE.ReplaceAllString(line, "<email>")
	line = phoneRE.ReplaceAllString(line, "<phone>")
	line = moneyRE.ReplaceAllString(line, "<metric>")
	line = percentRE.ReplaceAllString(line, "<metric>")
	line = numberRE.ReplaceAllString(line, "<metric>")
	if brandName != "" {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(brandName))
		if err == nil {
			line = re.ReplaceAllString(line, "<brand>")
		}
	}
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(line, " "))
}

func scrubAll(lines []string, brandName string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = ScrubLine(l, brandName)
	}
	return out
}

// brandName reads the brand's display name from its dossier front matter.
func (s *Service) brandName(brandID string) string {
	text := readText(filepath.Join(s.brandsDir, brandID, "profile", "brand-dossier.md"))
	m := brandKeyRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), `'"`)
}

func (s *Service) append(entry *Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.sharedFile), 0o755); err != nil {
		return fmt.Errorf("create pattern library dir: %w", err)
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal pattern entry: %w", err)
	}
	f, err := os.OpenFile(s.sharedFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open pattern library: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("append pattern entry: %w", err)
	}
	return nil
}

func pickByRegex(text string, re *regexp.Regexp) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if re.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// uniqueNonEmpty filters scrubbed lines to a bounded, deduplicated set
// within a length band.
func uniqueNonEmpty(lines []string, minLen, maxLen, limit int) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if len(s) < minLen || len(s) > maxLen {
			continue
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func readText(path string) string {
	body, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(body)
}

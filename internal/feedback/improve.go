package feedback

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/stage"
)

// Canonical improvement suggestions. Keyword heuristics and run signals
// map to these; dedup happens on the exact string.
const (
	SuggestSources    = "Always include source links for key claims and date-tag major facts."
	SuggestConcise    = "Prefer concise outputs unless user explicitly asks for long-form detail."
	SuggestDepth      = "Add deeper detail with concrete examples and clear section structure."
	SuggestVerify     = "Add stricter verification checks before final delivery."
	SuggestSpeed      = "Optimize for speed: limit low-value deep dives and prioritize high-signal sources first."
	SuggestResilience = "Increase resilience: use fallback delegates and continue with best-effort outputs on partial failures."
	SuggestLatency    = "Reduce latency: trim low-value substeps and prioritize highest-signal sources first."
	SuggestVerifyGate = "Harden verify stage: add pre-delivery checks for expected files/artifacts and fallback generation."
	SuggestExecRetry  = "Improve execute reliability: add retry policy and alternate delegate path when primary dispatch fails."
	SuggestQuality    = "Raise quality gate strictness before final delivery."
)

// slowRunThreshold flags workflows whose completed runs average above it.
const slowRunThreshold = 3 * time.Minute

var keywordSuggestions = []struct {
	needles    []string
	suggestion string
}{
	{[]string{"source", "citation", "reference", "proof"}, SuggestSources},
	{[]string{"too long", "lengthy", "verbose"}, SuggestConcise},
	{[]string{"too short", "shallow", "not enough detail"}, SuggestDepth},
	{[]string{"wrong", "incorrect", "hallucinat", "inaccurate"}, SuggestVerify},
	{[]string{"slow", "takes too long", "latency"}, SuggestSpeed},
}

// Signals are the autonomous (no user feedback) inputs to the analysis.
type Signals struct {
	AvgDurationMS  float64 `json:"avgDurationMs"`
	VerifyFailures int     `json:"verifyFailures"`
	ExecFailures   int     `json:"execFailures"`
	FailedRuns     int     `json:"failedRuns"`
}

// Analysis is the derived improvement picture for one workflow.
type Analysis struct {
	FeedbackCount     int      `json:"feedbackCount"`
	RunCount          int      `json:"runCount"`
	AutonomousSignals Signals  `json:"autonomousSignals"`
	Suggestions       []string `json:"suggestions"`
}

// Applied records one improve application.
type Applied struct {
	TS         time.Time `json:"ts"`
	WorkflowID string    `json:"workflowId"`
	Applied    []string  `json:"applied"`
	BackupPath string    `json:"backupPath"`
	DefPath    string    `json:"defPath"`
}

// ImproveParams drives one improve pass.
type ImproveParams struct {
	WorkflowID string
	AutoApply  bool
	MaxChanges int // <1 means DefaultMaxChanges
}

// ImproveResult is the outcome of an improve pass.
type ImproveResult struct {
	OK          bool      `json:"ok"`
	WorkflowID  string    `json:"workflowId"`
	Analysis    *Analysis `json:"analysis"`
	AutoApplied *Applied  `json:"autoApplied"`
}

// Improve analyzes a workflow's feedback and run history; with AutoApply
// it folds new suggestions into the definition's assumptions.
func (s *Service) Improve(ctx context.Context, p ImproveParams) (*ImproveResult, error) {
	if p.WorkflowID == "" {
		return nil, fault.Validation("missing workflow id")
	}
	maxChanges := p.MaxChanges
	if maxChanges < 1 {
		maxChanges = DefaultMaxChanges
	}

	analysis, err := s.Analyze(ctx, p.WorkflowID)
	if err != nil {
		return nil, err
	}

	res := &ImproveResult{OK: true, WorkflowID: p.WorkflowID, Analysis: analysis}
	if p.AutoApply && len(analysis.Suggestions) > 0 {
		applied, err := s.apply(ctx, p.WorkflowID, analysis.Suggestions, maxChanges)
		if err != nil {
			return nil, err
		}
		res.AutoApplied = applied
	}
	return res, nil
}

// Analyze derives suggestions from feedback keywords and run signals.
func (s *Service) Analyze(ctx context.Context, workflowID string) (*Analysis, error) {
	entries, err := s.store.ListFeedback(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	runs, err := s.store.ListRunsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var suggestions []string
	add := func(s string) {
		if !slices.Contains(suggestions, s) {
			suggestions = append(suggestions, s)
		}
	}

	var combined strings.Builder
	for _, e := range entries {
		combined.WriteString(strings.ToLower(e.Feedback))
		combined.WriteString("\n")
	}
	text := combined.String()
	for _, ks := range keywordSuggestions {
		for _, needle := range ks.needles {
			if strings.Contains(text, needle) {
				add(ks.suggestion)
				break
			}
		}
	}

	total := len(runs)
	failed := 0
	verifyFailures := 0
	execFailures := 0
	var durations []time.Duration
	for _, r := range runs {
		if r.Status == record.RunFailed {
			failed++
		}
		if r.Status == record.RunCompleted && r.UpdatedAt.After(r.CreatedAt) {
			durations = append(durations, r.UpdatedAt.Sub(r.CreatedAt))
		}
		if st := r.Stage(stage.NameVerify); st != nil && st.Status == record.StageFailed {
			verifyFailures++
		}
		if st := r.Stage(stage.NameExecute); st != nil && st.Status == record.StageFailed {
			execFailures++
		}
	}
	if total >= 3 && float64(failed)/float64(total) >= 0.25 {
		add(SuggestResilience)
	}

	var avg time.Duration
	if len(durations) > 0 {
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		avg = sum / time.Duration(len(durations))
	}
	if avg > slowRunThreshold {
		add(SuggestLatency)
	}
	if total >= 2 && verifyFailures > 0 {
		add(SuggestVerifyGate)
	}
	if total >= 2 && execFailures > 0 {
		add(SuggestExecRetry)
	}

	lowScores := 0
	for _, e := range entries {
		if e.Score >= 1 && e.Score <= 2 {
			lowScores++
		}
	}
	if len(entries) >= 3 && float64(lowScores)/float64(len(entries)) >= 0.34 {
		add(SuggestQuality)
	}

	if suggestions == nil {
		suggestions = []string{}
	}
	return &Analysis{
		FeedbackCount: len(entries),
		RunCount:      total,
		AutonomousSignals: Signals{
			AvgDurationMS:  float64(avg.Milliseconds()),
			VerifyFailures: verifyFailures,
			ExecFailures:   execFailures,
			FailedRuns:     failed,
		},
		Suggestions: suggestions,
	}, nil
}

// apply folds up to maxChanges new suggestions into the definition's
// assumptions, backing the definition up first and logging the change.
func (s *Service) apply(ctx context.Context, workflowID string, suggestions []string, maxChanges int) (*Applied, error) {
	def, err := s.defs.Load(workflowID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	backupPath, err := s.defs.Backup(workflowID, now)
	if err != nil {
		return nil, err
	}

	var adds []string
	for _, sug := range suggestions {
		if len(adds) >= maxChanges {
			break
		}
		if !slices.Contains(def.Defaults.Assumptions, sug) {
			adds = append(adds, sug)
		}
	}
	if adds == nil {
		adds = []string{}
	}

	def.Defaults.Assumptions = append(def.Defaults.Assumptions, adds...)
	if err := s.defs.Save(workflowID, def); err != nil {
		return nil, err
	}

	defPath := s.defs.Path(workflowID)
	if err := s.store.AppendImprovement(ctx, now, workflowID, adds, backupPath, defPath); err != nil {
		return nil, err
	}
	s.log.Info("improvements applied", "workflow", workflowID, "count", len(adds))

	return &Applied{
		TS:         now,
		WorkflowID: workflowID,
		Applied:    adds,
		BackupPath: backupPath,
		DefPath:    defPath,
	}, nil
}

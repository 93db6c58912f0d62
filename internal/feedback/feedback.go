// Package feedback collects user feedback on workflows and turns it, plus
// autonomous run signals, into improvement suggestions. Suggestions may be
// auto-applied as new planning assumptions on the workflow definition; the
// definition is backed up first and every application is logged.
package feedback

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/stage"
	"github.com/stagehand-dev/stagehand/internal/store"
	"github.com/stagehand-dev/stagehand/internal/workflow"
)

// DefaultMaxChanges caps how many suggestions one improve pass may apply.
const DefaultMaxChanges = 3

// Clock provides the wall time for feedback timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DefinitionStore is the slice of the workflow provider the improve pass
// needs. *workflow.DirProvider satisfies it.
type DefinitionStore interface {
	Load(workflowID string) (*workflow.Definition, error)
	Save(workflowID string, def *workflow.Definition) error
	Backup(workflowID string, now time.Time) (string, error)
	Path(workflowID string) string
}

// Service implements the feedback loop.
type Service struct {
	store *store.Store
	defs  DefinitionStore
	clock Clock
	log   *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger replaces the service's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New builds a Service with production defaults.
func New(st *store.Store, defs DefinitionStore, opts ...Option) *Service {
	s := &Service{store: st, defs: defs, clock: systemClock{}, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitParams describes one piece of feedback. Score 0 means none given.
type SubmitParams struct {
	WorkflowID string
	RunID      string
	Score      int
	Feedback   string
}

// SubmitResult is the outcome of recording feedback.
type SubmitResult struct {
	OK    bool                  `json:"ok"`
	Entry *record.FeedbackEntry `json:"entry"`
}

// Submit records a feedback entry for a workflow.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*SubmitResult, error) {
	if p.WorkflowID == "" {
		return nil, fault.Validation("missing workflow id")
	}
	body := strings.TrimSpace(p.Feedback)
	if body == "" {
		return nil, fault.Validation("missing feedback")
	}
	if p.Score != 0 && (p.Score < 1 || p.Score > 5) {
		return nil, fault.Validation("score must be between 1 and 5")
	}

	entry := &record.FeedbackEntry{
		TS:         s.clock.Now(),
		WorkflowID: p.WorkflowID,
		RunID:      p.RunID,
		Score:      p.Score,
		Feedback:   body,
	}
	if err := s.store.AppendFeedback(ctx, entry); err != nil {
		return nil, err
	}
	return &SubmitResult{OK: true, Entry: entry}, nil
}

// StageImprover adapts the Service to the log stage's self-improvement
// port, honoring the workflow's selfImprove policy.
type StageImprover struct {
	Service *Service
}

// Improve runs the improve pass when the workflow enables it.
func (si StageImprover) Improve(ctx context.Context, workflowID string, cfg workflow.SelfImprove) (any, error) {
	if !cfg.Enabled {
		return map[string]any{"skipped": true, "reason": "selfImprove disabled"}, nil
	}
	max := cfg.MaxChangesPerRun
	if max <= 0 {
		max = 2
	}
	res, err := si.Service.Improve(ctx, ImproveParams{
		WorkflowID: workflowID,
		AutoApply:  cfg.AutoApplyLowRisk,
		MaxChanges: max,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": res}, nil
}

var _ stage.SelfImprover = StageImprover{}

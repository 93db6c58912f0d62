// Package engine drives durable workflow runs through the fixed stage
// pipeline.
//
// The engine owns all run persistence: it checkpoints the run document
// after every stage transition (running, completed, failed), so a crashed
// process can resume exactly where it stopped with completed stages
// skipped. The idempotency index is advisory and only written after a run
// completes; a cache hit is re-validated against the run record before
// being served, and concurrent writers racing the same key converge on a
// single winner at the store.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/stage"
	"github.com/stagehand-dev/stagehand/internal/store"
	"github.com/stagehand-dev/stagehand/internal/workflow"
)

// Clock provides the wall time for run timestamps. Tests inject
// testutil.FakeClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Engine executes workflow runs against a store, a definition provider and
// a stage registry.
type Engine struct {
	store    *store.Store
	provider workflow.Provider
	registry *stage.Registry
	ids      IDGenerator
	clock    Clock
	log      *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger replaces the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New builds an Engine with production defaults.
func New(st *store.Store, provider workflow.Provider, registry *stage.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		provider: provider,
		registry: registry,
		ids:      UUIDGenerator{},
		clock:    systemClock{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes one run invocation.
type Request struct {
	WorkflowID     string
	Input          string
	IdempotencyKey string // empty means derive from workflow id and input
	ResumeRunID    string // resume an existing run instead of creating one
	Force          bool   // bypass the idempotency cache check
}

// Result is the engine's answer for a run invocation.
type Result struct {
	RunID      string           `json:"runId"`
	WorkflowID string           `json:"workflowId"`
	Status     record.RunStatus `json:"status"`
	Reused     bool             `json:"reused,omitempty"`
	Output     any              `json:"output,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// DefaultKey derives the idempotency key for a workflow and input. The
// input is NFC-normalized first so visually identical inputs with different
// Unicode compositions dedupe to the same run.
func DefaultKey(workflowID, input string) string {
	sum := sha256.Sum256([]byte(workflowID + ":" + norm.NFC.String(input)))
	return hex.EncodeToString(sum[:])
}

// Run executes (or resumes) a workflow run and returns its outcome. A run
// whose stage fails returns both a failed Result and a STAGE_FAILED error;
// the run record stays resumable.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.WorkflowID) == "" {
		return nil, fault.Validation("missing workflow id")
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, fault.Validation("missing input")
	}

	def, err := e.provider.Load(req.WorkflowID)
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" {
		key = DefaultKey(req.WorkflowID, input)
	}

	if !req.Force && req.ResumeRunID == "" {
		if hit, err := e.cachedResult(ctx, key); err != nil {
			return nil, err
		} else if hit != nil {
			e.log.Info("run reused", "workflow", req.WorkflowID, "run", hit.RunID)
			return hit, nil
		}
	}

	run, err := e.openRun(ctx, req, key, input)
	if err != nil {
		return nil, err
	}

	if err := e.walk(ctx, run, def); err != nil {
		return &Result{
			RunID:      run.RunID,
			WorkflowID: run.WorkflowID,
			Status:     run.Status,
			Error:      err.Error(),
		}, err
	}

	run.Status = record.RunCompleted
	if err := e.saveRun(ctx, run); err != nil {
		return nil, err
	}
	winner, inserted, err := e.store.SetIdempotency(ctx, run.IdempotencyKey, run.RunID)
	if err != nil {
		return nil, err
	}
	if !inserted && winner != run.RunID {
		e.log.Info("idempotency key already claimed", "key", run.IdempotencyKey, "winner", winner)
	}

	e.log.Info("run completed", "workflow", run.WorkflowID, "run", run.RunID)
	return &Result{
		RunID:      run.RunID,
		WorkflowID: run.WorkflowID,
		Status:     run.Status,
		Output:     run.Context["delivery"],
	}, nil
}

// cachedResult serves a completed prior run for the key, if one exists. The
// index entry is advisory: the run must still exist, be completed, and
// carry the same key before it is trusted.
func (e *Engine) cachedResult(ctx context.Context, key string) (*Result, error) {
	runID, err := e.store.GetIdempotency(ctx, key)
	if err != nil || runID == "" {
		return nil, err
	}
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.Status != record.RunCompleted || run.IdempotencyKey != key {
		return nil, nil
	}
	return &Result{
		RunID:      run.RunID,
		WorkflowID: run.WorkflowID,
		Status:     run.Status,
		Reused:     true,
		Output:     run.Context["delivery"],
	}, nil
}

func (e *Engine) openRun(ctx context.Context, req Request, key, input string) (*record.Run, error) {
	if req.ResumeRunID != "" {
		run, err := e.store.GetRun(ctx, req.ResumeRunID)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fault.NotFound("run %s not found", req.ResumeRunID)
		}
		run.Status = record.RunRunning
		return run, nil
	}

	run := record.NewRun(e.ids.NewID(), req.WorkflowID, key, input, e.registry.Names(), e.clock.Now())
	if err := e.saveRun(ctx, run); err != nil {
		return nil, err
	}
	e.log.Info("run created", "workflow", run.WorkflowID, "run", run.RunID)
	return run, nil
}

// walk executes the pipeline in registry order, checkpointing the run after
// every stage transition. Completed stages from a prior attempt are skipped
// without re-invoking their handler.
func (e *Engine) walk(ctx context.Context, run *record.Run, def *workflow.Definition) error {
	for _, name := range e.registry.Names() {
		st := run.Stage(name)
		if st == nil {
			return fault.Validation("run %s has no %s stage", run.RunID, name)
		}
		if st.Status == record.StageCompleted {
			continue
		}

		now := e.clock.Now()
		st.Status = record.StageRunning
		st.StartedAt = &now
		st.Attempts++
		st.Error = ""
		if err := e.saveRun(ctx, run); err != nil {
			return err
		}

		sc := &stage.Scope{
			RunID:          run.RunID,
			WorkflowID:     run.WorkflowID,
			IdempotencyKey: run.IdempotencyKey,
			Input:          run.Input,
			Status:         run.Status,
			Def:            def,
			Context:        run.Context,
			Now:            e.clock.Now,
		}
		out, err := e.registry.Get(name).Run(ctx, sc)

		finished := e.clock.Now()
		st.FinishedAt = &finished
		if err != nil {
			st.Status = record.StageFailed
			st.Error = err.Error()
			run.Status = record.RunFailed
			if saveErr := e.saveRun(ctx, run); saveErr != nil {
				return saveErr
			}
			e.log.Error("stage failed", "run", run.RunID, "stage", name, "error", err)
			return fault.StageFailed(name, err)
		}

		st.Status = record.StageCompleted
		st.Output = out
		if err := e.saveRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) saveRun(ctx context.Context, run *record.Run) error {
	run.UpdatedAt = e.clock.Now()
	return e.store.SaveRun(ctx, run)
}

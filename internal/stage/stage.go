// Package stage implements the fixed ordered pipeline a run walks through:
// intake, classify, plan, configure_tools, execute, verify, deliver, log.
//
// Dispatch is name-based: the engine iterates a Registry of named handlers
// and never branches on stage identity itself. Handlers receive a Scope
// carrying the run's identity, its workflow definition, and the mutable
// context map; collaborators (command runner, marker store, audit log,
// self-improver) are injected at handler construction.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/runner"
	"github.com/stagehand-dev/stagehand/internal/workflow"
)

// Stage names in pipeline order.
const (
	NameIntake         = "intake"
	NameClassify       = "classify"
	NamePlan           = "plan"
	NameConfigureTools = "configure_tools"
	NameExecute        = "execute"
	NameVerify         = "verify"
	NameDeliver        = "deliver"
	NameLog            = "log"
)

// Scope is the per-run view a handler operates on. Context is the open
// mapping stage handlers accumulate results into; it round-trips through
// JSON between process lifetimes, so handlers must tolerate decoded types
// (map[string]any, float64) when reading values a prior process wrote.
type Scope struct {
	RunID          string
	WorkflowID     string
	IdempotencyKey string
	Input          string
	Status         record.RunStatus
	Def            *workflow.Definition
	Context        map[string]any
	Now            func() time.Time
}

// ContextString returns a context value as a string, or "".
func (s *Scope) ContextString(key string) string {
	v, _ := s.Context[key].(string)
	return v
}

// nestedString reads Context[key][field] as a string across both in-process
// and JSON-decoded representations.
func (s *Scope) nestedString(key, field string) string {
	m, ok := s.Context[key].(map[string]any)
	if !ok {
		return ""
	}
	v, _ := m[field].(string)
	return v
}

// Handler is one named stage capability. Run returns the stage's opaque
// output on success; the engine owns all persistence around the call.
type Handler interface {
	Name() string
	Run(ctx context.Context, sc *Scope) (any, error)
}

// Registry is the ordered list of stage handlers for a workflow pipeline.
// The order never changes after construction; it defines the fixed stage
// sequence recorded into every run.
type Registry struct {
	handlers []Handler
	byName   map[string]Handler
}

// NewRegistry builds a registry from handlers in pipeline order.
// Handler names must be unique.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	byName := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		if _, dup := byName[h.Name()]; dup {
			return nil, fmt.Errorf("duplicate stage handler: %s", h.Name())
		}
		byName[h.Name()] = h
	}
	return &Registry{handlers: handlers, byName: byName}, nil
}

// Names returns the stage names in pipeline order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		names[i] = h.Name()
	}
	return names
}

// Get returns the handler for a stage name, or nil.
func (r *Registry) Get(name string) Handler {
	return r.byName[name]
}

// MarkerStore guards configure_tools against repeating external setup.
// Satisfied by *store.Store.
type MarkerStore interface {
	HasToolMarker(ctx context.Context, tool string) (bool, error)
	SetToolMarker(ctx context.Context, tool string, ts time.Time) error
}

// AuditAppender receives the log stage's audit entry. Satisfied by
// *store.Store.
type AuditAppender interface {
	AppendAudit(ctx context.Context, e *record.AuditEntry) error
}

// ArtifactChecker reports whether an artifact path exists. The verify
// stage consumes it; tests inject fakes.
type ArtifactChecker func(path string) bool

// SelfImprover is the optional self-improvement collaborator invoked by
// the log stage. Its failure is recorded, never fatal.
type SelfImprover interface {
	Improve(ctx context.Context, workflowID string, cfg workflow.SelfImprove) (any, error)
}

// Deps bundles every collaborator the default pipeline needs.
type Deps struct {
	Runner    runner.CommandRunner
	Markers   MarkerStore
	Audit     AuditAppender
	Improver  SelfImprover
	Exists    ArtifactChecker
	OutboxDir string
}

// DefaultRegistry wires the fixed eight-stage pipeline.
func DefaultRegistry(deps Deps) (*Registry, error) {
	return NewRegistry(
		Intake{},
		Classify{},
		Plan{},
		ConfigureTools{Runner: deps.Runner, Markers: deps.Markers},
		Execute{Runner: deps.Runner},
		Verify{Exists: deps.Exists},
		Deliver{OutboxDir: deps.OutboxDir},
		Log{Audit: deps.Audit, Improver: deps.Improver},
	)
}

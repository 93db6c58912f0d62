package record

import "time"

// RunStatus is the lifecycle state of a whole run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// StageStatus is the lifecycle state of a single stage within a run.
//
// Legal transitions: pending -> running -> {completed | failed}.
// A resume re-enters running from failed; no other backward move exists.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// Run is one execution instance of a workflow definition against an input.
//
// The run is persisted in full after every individual stage transition, so
// a crashed process can always resume from the last durable checkpoint.
type Run struct {
	RunID          string         `json:"runId"`
	WorkflowID     string         `json:"workflowId"`
	IdempotencyKey string         `json:"idempotencyKey"`
	Input          string         `json:"input"`
	Status         RunStatus      `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	Context        map[string]any `json:"context"`
	Stages         []StageRecord  `json:"stages"`
}

// StageRecord tracks one named stage of a run.
type StageRecord struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Attempts   int         `json:"attempts"`
	StartedAt  *time.Time  `json:"startedAt"`
	FinishedAt *time.Time  `json:"finishedAt"`
	Output     any         `json:"output"`
	Error      string      `json:"error,omitempty"`
}

// Stage returns a pointer to the named stage record, or nil if the run has
// no such stage. The pointer aliases the run's slice so callers mutate in
// place.
func (r *Run) Stage(name string) *StageRecord {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// ContextString returns the context value for key as a string, or "" when
// the key is absent or not a string.
func (r *Run) ContextString(key string) string {
	v, ok := r.Context[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// NewRun builds a fresh run with every stage pending and an empty context.
func NewRun(runID, workflowID, idempotencyKey, input string, stages []string, now time.Time) *Run {
	recs := make([]StageRecord, len(stages))
	for i, name := range stages {
		recs[i] = StageRecord{Name: name, Status: StagePending}
	}
	return &Run{
		RunID:          runID,
		WorkflowID:     workflowID,
		IdempotencyKey: idempotencyKey,
		Input:          input,
		Status:         RunRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
		Context:        make(map[string]any),
		Stages:         recs,
	}
}

// AuditEntry is one line of the append-only completed-run audit log.
type AuditEntry struct {
	TS         time.Time `json:"ts"`
	RunID      string    `json:"runId"`
	WorkflowID string    `json:"workflowId"`
	Status     RunStatus `json:"status"`
	Route      string    `json:"route,omitempty"`
	BrandID    string    `json:"brand_id,omitempty"`
	Cadence    string    `json:"cadence,omitempty"`
	ApprovalID string    `json:"approval_id,omitempty"`
	Role       string    `json:"role,omitempty"`
}

// FeedbackEntry is one submitted piece of user feedback about a workflow.
// Score is 1-5, or 0 when the caller gave none.
type FeedbackEntry struct {
	TS         time.Time `json:"ts"`
	WorkflowID string    `json:"workflowId"`
	RunID      string    `json:"runId,omitempty"`
	Score      int       `json:"score,omitempty"`
	Feedback   string    `json:"feedback"`
}

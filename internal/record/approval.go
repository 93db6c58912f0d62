package record

import "time"

// ApprovalState names the four approval partitions. A record lives in
// exactly one partition at a time, always the one matching its status.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
	ApprovalHeld     ApprovalState = "held"
)

// ApprovalStates lists every partition in canonical order.
var ApprovalStates = []ApprovalState{ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalHeld}

// DecisionStates are the states an explicit decision may target. Any
// current state is an accepted predecessor; the model is deliberately
// permissive (a rejected record can still be approved later).
var DecisionStates = []ApprovalState{ApprovalApproved, ApprovalRejected, ApprovalHeld}

// Owner identifies who must decide an approval and where to reach them.
// Contact is the notification destination; empty means notifications are
// skipped, never that create fails.
type Owner struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// ApprovalEvent is one entry of a record's append-only event log.
// Events are immutable once appended.
type ApprovalEvent struct {
	TS   time.Time `json:"ts"`
	Type string    `json:"type"`
	Note string    `json:"note,omitempty"`
}

// Approval is the durable object tracking a human gating decision for a
// run's output.
type Approval struct {
	ApprovalID   string          `json:"approval_id"`
	BrandID      string          `json:"brand_id,omitempty"`
	RunID        string          `json:"run_id"`
	CreatedAt    time.Time       `json:"created_at"`
	DeadlineAt   time.Time       `json:"deadline_at"`
	Status       ApprovalState   `json:"status"`
	Owner        Owner           `json:"owner"`
	ArtifactPath string          `json:"artifact_path"`
	Summary      string          `json:"summary"`
	DecisionNote string          `json:"decision_note"`
	DecidedAt    *time.Time      `json:"decided_at"`
	Events       []ApprovalEvent `json:"events"`
}

// AppendEvent appends one immutable event to the record's log.
func (a *Approval) AppendEvent(ts time.Time, typ, note string) {
	a.Events = append(a.Events, ApprovalEvent{TS: ts, Type: typ, Note: note})
}

// RevisionRequest is queued when an approval is rejected; it references the
// artifact needing rework. Keyed by approval id.
type RevisionRequest struct {
	ApprovalID    string    `json:"approval_id"`
	BrandID       string    `json:"brand_id,omitempty"`
	RunID         string    `json:"run_id"`
	ArtifactPath  string    `json:"artifact_path"`
	RejectionNote string    `json:"rejection_note"`
	CreatedAt     time.Time `json:"created_at"`
}

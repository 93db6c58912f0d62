// Package approval manages the human gating lifecycle for run outputs.
//
// Every approval record lives in exactly one of four states (pending,
// approved, rejected, held); the store enforces the partition in the same
// transaction that updates the record body. Transitions are deliberately
// permissive: any current state accepts any decision, so a rejected record
// can still be approved after rework. Notifications are always
// best-effort; a missing owner contact or a failed gateway never blocks a
// state change.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/notify"
	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/store"
)

// DefaultDeadlineHours is the SLA applied when create names no deadline.
const DefaultDeadlineHours = 24

// autoHoldNote is written when the remind sweep escalates a past-deadline
// pending record.
const autoHoldNote = "SLA exceeded (auto-hold + reminder)"

// Clock provides the wall time for record timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator mints approval ids.
type IDGenerator interface {
	NewID(now time.Time) string
}

// RandomIDs mints apr-<uuid8>-<base36 millis> ids.
type RandomIDs struct{}

func (RandomIDs) NewID(now time.Time) string {
	return fmt.Sprintf("apr-%s-%s", uuid.NewString()[:8], strconv.FormatInt(now.UnixMilli(), 36))
}

// FixedIDs returns scripted ids for tests.
type FixedIDs struct {
	IDs  []string
	next int
}

func (g *FixedIDs) NewID(time.Time) string {
	if len(g.IDs) == 0 {
		return "apr-fixed"
	}
	id := g.IDs[min(g.next, len(g.IDs)-1)]
	g.next++
	return id
}

// Sanitizer is the optional pattern-scrub collaborator run after release.
type Sanitizer interface {
	Sanitize(ctx context.Context, brandID, artifactDir, runID, cadence string) (any, error)
}

// Manager coordinates approval state changes, artifact release and owner
// notification.
type Manager struct {
	store     *store.Store
	gateway   notify.Gateway
	sanitizer Sanitizer
	ids       IDGenerator
	clock     Clock
	log       *slog.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithSanitizer wires the post-release pattern sanitizer.
func WithSanitizer(s Sanitizer) Option {
	return func(m *Manager) { m.sanitizer = s }
}

// WithIDGenerator replaces the approval id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger replaces the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New builds a Manager with production defaults.
func New(st *store.Store, gateway notify.Gateway, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		gateway: gateway,
		ids:     RandomIDs{},
		clock:   systemClock{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateParams describes a new approval request.
type CreateParams struct {
	BrandID      string
	RunID        string
	ArtifactPath string
	OwnerName    string
	OwnerContact string
	Summary      string
	// DeadlineHours nil means DefaultDeadlineHours. An explicit 0 makes
	// the request due immediately, so the next remind sweep auto-holds it.
	DeadlineHours *int
	ApprovalID    string // empty means mint a fresh id
}

// CreateResult is the outcome of creating an approval.
type CreateResult struct {
	OK     bool             `json:"ok"`
	Action string           `json:"action"`
	Record *record.Approval `json:"record"`
	Notice notify.Notice    `json:"notice"`
}

// Create registers a pending approval and notifies the owner.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if p.BrandID == "" {
		return nil, fault.Validation("missing brand id")
	}
	if p.RunID == "" {
		return nil, fault.Validation("missing run id")
	}
	if p.ArtifactPath == "" {
		return nil, fault.Validation("missing artifact path")
	}

	ownerName := p.OwnerName
	if ownerName == "" {
		ownerName = "Brand Owner"
	}
	summary := p.Summary
	if summary == "" {
		summary = fmt.Sprintf("Approval required for brand %s run %s.", p.BrandID, p.RunID)
	}
	hours := DefaultDeadlineHours
	if p.DeadlineHours != nil {
		if *p.DeadlineHours < 0 {
			return nil, fault.Validation("deadline hours must be >= 0")
		}
		hours = *p.DeadlineHours
	}

	now := m.clock.Now()
	id := p.ApprovalID
	if id == "" {
		id = m.ids.NewID(now)
	}

	a := &record.Approval{
		ApprovalID:   id,
		BrandID:      p.BrandID,
		RunID:        p.RunID,
		CreatedAt:    now,
		DeadlineAt:   now.Add(time.Duration(hours) * time.Hour),
		Status:       record.ApprovalPending,
		Owner:        record.Owner{Name: ownerName, Contact: p.OwnerContact},
		ArtifactPath: p.ArtifactPath,
		Summary:      summary,
		Events:       []record.ApprovalEvent{},
	}
	a.AppendEvent(now, "created", summary)

	if err := m.store.CreateApproval(ctx, a); err != nil {
		return nil, err
	}
	m.log.Info("approval created", "approval", id, "brand", p.BrandID, "run", p.RunID)

	return &CreateResult{
		OK:     true,
		Action: "create",
		Record: a,
		Notice: m.send(ctx, a, notify.RequestMessage(a)),
	}, nil
}

// RevisionInfo reports the revision queue entry written on rejection.
type RevisionInfo struct {
	Queued bool `json:"queued"`
}

// DecideResult is the outcome of an explicit decision.
type DecideResult struct {
	OK       bool             `json:"ok"`
	Action   string           `json:"action"`
	Record   *record.Approval `json:"record"`
	Release  *ReleaseResult   `json:"release,omitempty"`
	Pattern  *PatternOutcome  `json:"pattern,omitempty"`
	Revision *RevisionInfo    `json:"revision,omitempty"`
	Notice   notify.Notice    `json:"notice"`
}

// Decide moves an approval to a decision state and runs that state's side
// effects: approved releases the publish bundle and sanitizes it, rejected
// queues a revision request, held only notifies. Cadence is used by the
// sanitizer; empty falls back to the artifact's run manifest.
func (m *Manager) Decide(ctx context.Context, approvalID string, next record.ApprovalState, note, cadence string) (*DecideResult, error) {
	decidable := false
	for _, s := range record.DecisionStates {
		if next == s {
			decidable = true
			break
		}
	}
	if !decidable {
		return nil, fault.Validation("invalid decision state: %s", next)
	}

	prev, a, err := m.store.LocateApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fault.NotFound("approval record not found: %s", approvalID)
	}

	now := m.clock.Now()
	a.Status = next
	a.DecisionNote = note
	a.DecidedAt = &now
	a.AppendEvent(now, string(next), note)
	if err := m.store.MoveApproval(ctx, a); err != nil {
		return nil, err
	}
	m.log.Info("approval decided", "approval", approvalID, "from", prev, "to", next)

	res := &DecideResult{OK: true, Action: string(next), Record: a}
	switch next {
	case record.ApprovalApproved:
		release := ReleaseBundle(a)
		res.Release = &release
		pattern := m.sanitizeArtifacts(ctx, a, cadence)
		res.Pattern = &pattern
		res.Notice = m.send(ctx, a, notify.ConfirmedMessage(a, note))

	case record.ApprovalRejected:
		rejection := note
		if rejection == "" {
			rejection = "No reason provided"
		}
		err := m.store.EnqueueRevision(ctx, &record.RevisionRequest{
			ApprovalID:    a.ApprovalID,
			BrandID:       a.BrandID,
			RunID:         a.RunID,
			ArtifactPath:  a.ArtifactPath,
			RejectionNote: rejection,
			CreatedAt:     now,
		})
		if err != nil {
			return nil, err
		}
		res.Revision = &RevisionInfo{Queued: true}
		res.Notice = m.send(ctx, a, notify.RejectedMessage(a, note))

	case record.ApprovalHeld:
		res.Notice = m.send(ctx, a, notify.HeldMessage(a, note))
	}

	return res, nil
}

// RemindOutcome is one record's result within a remind sweep.
type RemindOutcome struct {
	ApprovalID string        `json:"approval_id"`
	Action     string        `json:"action"`
	Notice     notify.Notice `json:"notice"`
}

// RemindResult is the outcome of a remind sweep.
type RemindResult struct {
	OK      bool            `json:"ok"`
	Action  string          `json:"action"`
	Count   int             `json:"count"`
	Results []RemindOutcome `json:"results"`
}

// Remind nudges pending approvals. Records past their deadline are
// auto-held and escalated; the rest receive a plain reminder. With dueOnly
// set, not-yet-due records are left alone. A non-empty approvalID restricts
// the sweep to that record.
func (m *Manager) Remind(ctx context.Context, approvalID string, dueOnly bool) (*RemindResult, error) {
	var records []*record.Approval
	if approvalID != "" {
		_, a, err := m.store.LocateApproval(ctx, approvalID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fault.NotFound("approval record not found: %s", approvalID)
		}
		records = []*record.Approval{a}
	} else {
		var err error
		records, err = m.store.ListApprovals(ctx, record.ApprovalPending)
		if err != nil {
			return nil, err
		}
	}

	now := m.clock.Now()
	res := &RemindResult{OK: true, Action: "remind", Results: []RemindOutcome{}}
	for _, a := range records {
		if a.Status != record.ApprovalPending {
			continue
		}
		due := !a.DeadlineAt.IsZero() && !now.Before(a.DeadlineAt)
		if dueOnly && !due {
			continue
		}

		if due {
			a.Status = record.ApprovalHeld
			a.DecisionNote = autoHoldNote
			decidedAt := now
			a.DecidedAt = &decidedAt
			a.AppendEvent(now, string(record.ApprovalHeld), autoHoldNote)
			if err := m.store.MoveApproval(ctx, a); err != nil {
				return nil, err
			}
			m.log.Info("approval auto-held", "approval", a.ApprovalID)
			res.Results = append(res.Results, RemindOutcome{
				ApprovalID: a.ApprovalID,
				Action:     "held+reminded",
				Notice:     m.send(ctx, a, notify.ReminderMessage(a, "SLA exceeded. Run moved to HOLD state.")),
			})
			continue
		}

		res.Results = append(res.Results, RemindOutcome{
			ApprovalID: a.ApprovalID,
			Action:     "reminded",
			Notice:     m.send(ctx, a, notify.ReminderMessage(a, "Pending owner decision.")),
		})
	}
	res.Count = len(res.Results)
	return res, nil
}

// StateSummary is one partition's slice of the status report.
type StateSummary struct {
	Count   int                `json:"count"`
	Records []*record.Approval `json:"records"`
}

// StatusResult answers a status query, either for one record or as a
// whole-board summary.
type StatusResult struct {
	OK      bool                                   `json:"ok"`
	Action  string                                 `json:"action"`
	State   record.ApprovalState                   `json:"state,omitempty"`
	Record  *record.Approval                       `json:"record,omitempty"`
	Summary map[record.ApprovalState]*StateSummary `json:"summary,omitempty"`
}

// Status reports a single approval's state, or per-state counts and
// records when approvalID is empty.
func (m *Manager) Status(ctx context.Context, approvalID string) (*StatusResult, error) {
	if approvalID != "" {
		state, a, err := m.store.LocateApproval(ctx, approvalID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fault.NotFound("approval record not found: %s", approvalID)
		}
		return &StatusResult{OK: true, Action: "status", State: state, Record: a}, nil
	}

	summary := make(map[record.ApprovalState]*StateSummary, len(record.ApprovalStates))
	for _, state := range record.ApprovalStates {
		list, err := m.store.ListApprovals(ctx, state)
		if err != nil {
			return nil, err
		}
		summary[state] = &StateSummary{Count: len(list), Records: list}
	}
	return &StatusResult{OK: true, Action: "status", Summary: summary}, nil
}

func (m *Manager) send(ctx context.Context, a *record.Approval, message string) notify.Notice {
	if a.Owner.Contact == "" {
		return notify.Skip("owner contact missing")
	}
	return m.gateway.Send(ctx, a.Owner.Contact, a.ApprovalID, message)
}

func (m *Manager) sanitizeArtifacts(ctx context.Context, a *record.Approval, cadence string) PatternOutcome {
	if m.sanitizer == nil {
		return PatternOutcome{Skipped: true, Reason: "sanitizer not configured"}
	}
	if cadence == "" {
		cadence = resolveCadence(a.ArtifactPath)
	}
	out, err := m.sanitizer.Sanitize(ctx, a.BrandID, a.ArtifactPath, a.RunID, cadence)
	if err != nil {
		m.log.Warn("pattern sanitize failed", "approval", a.ApprovalID, "error", err)
		return PatternOutcome{Error: err.Error()}
	}
	return PatternOutcome{OK: true, Output: out}
}

// Package notify is the notification-delivery collaborator port. The
// approval lifecycle manager sends owner-facing notices through a Gateway
// and records the outcome; delivery failure never aborts the primary
// operation.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/runner"
)

// Notice is the recorded outcome of one delivery attempt.
type Notice struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Skip builds a soft-skip notice.
func Skip(reason string) Notice {
	return Notice{OK: false, Skipped: true, Reason: reason}
}

// Gateway delivers one message to a destination. Implementations are
// synchronous and must bound the call with a timeout.
type Gateway interface {
	Send(ctx context.Context, destination, approvalID, message string) Notice
}

// Exec delivers notices by running a configured external command. Args may
// reference {{destination}}, {{approval_id}}, and {{message}}; each
// placeholder is substituted before dispatch.
type Exec struct {
	Runner  runner.CommandRunner
	Command string
	Args    []string
	Timeout time.Duration
}

// Send dispatches the configured command. A missing destination or an
// unconfigured command is a soft skip, not an error.
func (e Exec) Send(ctx context.Context, destination, approvalID, message string) Notice {
	if destination == "" {
		return Skip("missing destination")
	}
	if e.Command == "" {
		return Skip("notify command not configured")
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		a = strings.ReplaceAll(a, "{{destination}}", destination)
		a = strings.ReplaceAll(a, "{{approval_id}}", approvalID)
		a = strings.ReplaceAll(a, "{{message}}", message)
		args[i] = a
	}

	res := e.Runner.Run(ctx, e.Command, args, nil)
	if !res.OK {
		reason := res.Stderr
		if reason == "" {
			reason = fmt.Sprintf("exit %d", res.ExitCode)
		}
		return Notice{OK: false, Error: reason}
	}
	return Notice{OK: true, Result: res.Stdout}
}

// Recorder is a Gateway for tests: it records every send and reports
// success.
type Recorder struct {
	Sent []Sent
}

// Sent is one recorded delivery.
type Sent struct {
	Destination string
	ApprovalID  string
	Message     string
}

// Send records the delivery and succeeds, honoring the missing-destination
// soft skip so tests see production semantics.
func (r *Recorder) Send(_ context.Context, destination, approvalID, message string) Notice {
	if destination == "" {
		return Skip("missing destination")
	}
	r.Sent = append(r.Sent, Sent{Destination: destination, ApprovalID: approvalID, Message: message})
	return Notice{OK: true}
}

// RequestMessage renders the initial approval-request notice.
func RequestMessage(a *record.Approval) string {
	return strings.Join([]string{
		"Approval Request: " + a.ApprovalID,
		"Brand: " + a.BrandID,
		"Run: " + a.RunID,
		"Deadline: " + a.DeadlineAt.UTC().Format(time.RFC3339),
		"Artifacts: " + a.ArtifactPath,
		"",
		a.Summary,
		"",
		"Reply with: APPROVE " + a.ApprovalID,
		"Or: REJECT " + a.ApprovalID + " <reason>",
	}, "\n")
}

// ConfirmedMessage renders the approval-confirmed notice.
func ConfirmedMessage(a *record.Approval, note string) string {
	lines := []string{
		"Approval Confirmed: " + a.ApprovalID,
		"Brand: " + a.BrandID,
		"Run: " + a.RunID,
		"Final bundle released at: " + a.ArtifactPath,
	}
	if note != "" {
		lines = append(lines, "Note: "+note)
	}
	return strings.Join(lines, "\n")
}

// RejectedMessage renders the rejection notice.
func RejectedMessage(a *record.Approval, note string) string {
	if note == "" {
		note = "No reason provided"
	}
	return strings.Join([]string{
		"Approval Rejected: " + a.ApprovalID,
		"Brand: " + a.BrandID,
		"Run: " + a.RunID,
		"Reason: " + note,
		"A revision request has been queued.",
	}, "\n")
}

// HeldMessage renders the hold notice.
func HeldMessage(a *record.Approval, reason string) string {
	if reason == "" {
		reason = "SLA exceeded"
	}
	return strings.Join([]string{
		"Approval Held: " + a.ApprovalID,
		"Brand: " + a.BrandID,
		"Run: " + a.RunID,
		"Reason: " + reason,
		"Publishing remains blocked until explicit approval.",
	}, "\n")
}

// ReminderMessage renders a reminder or escalation notice.
func ReminderMessage(a *record.Approval, reason string) string {
	return strings.Join([]string{
		"Approval Reminder: " + a.ApprovalID,
		"Brand: " + a.BrandID,
		"Run: " + a.RunID,
		"Deadline: " + a.DeadlineAt.UTC().Format(time.RFC3339),
		"Reason: " + reason,
		"",
		"Reply with: APPROVE " + a.ApprovalID,
		"Or: REJECT " + a.ApprovalID + " <reason>",
	}, "\n")
}

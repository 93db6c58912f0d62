package notify

import (
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/runner"
)

func messageFixture() *record.Approval {
	return &record.Approval{
		ApprovalID:   "apr-1a2b3c4d-t1",
		BrandID:      "acme",
		RunID:        "run-1",
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DeadlineAt:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Status:       record.ApprovalPending,
		Owner:        record.Owner{Name: "Brand Owner", Contact: "+10000000000"},
		ArtifactPath: "/artifacts/acme/run-1",
		Summary:      "Approval required for brand acme run run-1.",
	}
}

func TestMessages_Golden(t *testing.T) {
	a := messageFixture()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	g.Assert(t, "request", []byte(RequestMessage(a)))
	g.Assert(t, "confirmed", []byte(ConfirmedMessage(a, "Looks good")))
	g.Assert(t, "rejected", []byte(RejectedMessage(a, "")))
	g.Assert(t, "held", []byte(HeldMessage(a, "")))
	g.Assert(t, "reminder", []byte(ReminderMessage(a, "Pending owner decision.")))
}

func TestExec_SoftSkips(t *testing.T) {
	fake := &runner.Fake{}
	gw := Exec{Runner: fake, Command: "send-notice"}

	n := gw.Send(context.Background(), "", "apr-1", "hello")
	assert.True(t, n.Skipped)
	assert.Equal(t, "missing destination", n.Reason)
	assert.Empty(t, fake.Calls)

	n = Exec{Runner: fake}.Send(context.Background(), "+1000", "apr-1", "hello")
	assert.True(t, n.Skipped)
	assert.Equal(t, "notify command not configured", n.Reason)
}

func TestExec_SubstitutesPlaceholders(t *testing.T) {
	fake := &runner.Fake{Results: []runner.Result{{OK: true, Stdout: "queued"}}}
	gw := Exec{
		Runner:  fake,
		Command: "send-notice",
		Args:    []string{"--to", "{{destination}}", "--subject", "approval {{approval_id}}", "--body", "{{message}}"},
	}

	n := gw.Send(context.Background(), "+1000", "apr-1", "please review")
	assert.True(t, n.OK)
	assert.Equal(t, "queued", n.Result)

	assert.Len(t, fake.Calls, 1)
	assert.Equal(t, []string{"--to", "+1000", "--subject", "approval apr-1", "--body", "please review"}, fake.Calls[0].Args)
}

func TestExec_CommandFailure(t *testing.T) {
	fake := &runner.Fake{Results: []runner.Result{{OK: false, ExitCode: 7, Stderr: "gateway down"}}}
	gw := Exec{Runner: fake, Command: "send-notice"}

	n := gw.Send(context.Background(), "+1000", "apr-1", "hello")
	assert.False(t, n.OK)
	assert.False(t, n.Skipped)
	assert.Equal(t, "gateway down", n.Error)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}

	n := r.Send(context.Background(), "+1000", "apr-1", "hello")
	assert.True(t, n.OK)

	n = r.Send(context.Background(), "", "apr-1", "hello")
	assert.True(t, n.Skipped)

	assert.Len(t, r.Sent, 1)
	assert.Equal(t, "apr-1", r.Sent[0].ApprovalID)
}

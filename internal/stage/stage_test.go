package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/record"
	"github.com/stagehand-dev/stagehand/internal/workflow"
)

func testScope(def *workflow.Definition) *Scope {
	if def == nil {
		def = &workflow.Definition{ID: "daily-brief"}
	}
	return &Scope{
		RunID:          "run-1",
		WorkflowID:     "daily-brief",
		IdempotencyKey: "key-1",
		Status:         record.RunRunning,
		Def:            def,
		Context:        map[string]any{},
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestRender(t *testing.T) {
	vars := map[string]string{"runId": "run-1", "brand_id": "acme"}
	assert.Equal(t, "out/run-1/acme.md", Render("out/{{runId}}/{{brand_id}}.md", vars))
	assert.Equal(t, "plain", Render("plain", vars))
	assert.Equal(t, "-", Render("{{unknown}}-{{also_unknown}}", vars))
}

func TestRegistryOrderAndLookup(t *testing.T) {
	reg, err := DefaultRegistry(Deps{Exists: func(string) bool { return true }})
	require.NoError(t, err)

	assert.Equal(t, []string{
		NameIntake, NameClassify, NamePlan, NameConfigureTools,
		NameExecute, NameVerify, NameDeliver, NameLog,
	}, reg.Names())
	require.NotNil(t, reg.Get(NameExecute))
	assert.Nil(t, reg.Get("nope"))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(Intake{}, Intake{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate stage handler")
}

func TestIntakePlainText(t *testing.T) {
	sc := testScope(nil)
	sc.Input = "  summarize competitor news  "

	out, err := Intake{}.Run(context.Background(), sc)
	require.NoError(t, err)

	got := out.(IntakeOutput)
	assert.Equal(t, "summarize competitor news", got.NormalizedTask)
	assert.Nil(t, got.ParsedPayload)
	assert.Equal(t, "summarize competitor news", sc.Context["task"])
}

func TestIntakeBareJSONPayload(t *testing.T) {
	sc := testScope(nil)
	sc.Input = `{"task":" write the brief ","brand_id":" acme ","cadence":"weekly","role":"editor"}`

	out, err := Intake{}.Run(context.Background(), sc)
	require.NoError(t, err)

	got := out.(IntakeOutput)
	assert.Equal(t, "write the brief", got.NormalizedTask)
	assert.Equal(t, "acme", sc.Context["brand_id"])
	assert.Equal(t, "weekly", sc.Context["cadence"])
	assert.Equal(t, "editor", sc.Context["role"])
}

func TestIntakeTriggerPrefix(t *testing.T) {
	sc := testScope(nil)
	sc.Input = "RUN_BRAND_WORKFLOW {\"prompt\":\"daily brand run\",\"brand_id\":\"acme\"}"

	out, err := Intake{}.Run(context.Background(), sc)
	require.NoError(t, err)

	got := out.(IntakeOutput)
	assert.Equal(t, "daily brand run", got.NormalizedTask)
	assert.Equal(t, "acme", sc.Context["brand_id"])
}

func TestIntakeMalformedJSONFallsBackToText(t *testing.T) {
	sc := testScope(nil)
	sc.Input = `{"task": truncated`

	out, err := Intake{}.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, `{"task": truncated`, out.(IntakeOutput).NormalizedTask)
}

func TestIntakeNormalizesTaskToNFC(t *testing.T) {
	sc := testScope(nil)
	sc.Input = "résumé brief" // decomposed accents

	out, err := Intake{}.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, "résumé brief", out.(IntakeOutput).NormalizedTask)
}

func TestClassifyRoutes(t *testing.T) {
	cases := []struct {
		name  string
		setup func(sc *Scope)
		want  string
	}{
		{"brand via brand_id", func(sc *Scope) {
			sc.Context["task"] = "anything"
			sc.Context["brand_id"] = "acme"
		}, RouteBrand},
		{"brand via trigger keyword", func(sc *Scope) {
			sc.Context["task"] = "run_brand_workflow for acme"
		}, RouteBrand},
		{"content", func(sc *Scope) {
			sc.Context["task"] = "draft a LinkedIn post"
		}, RouteContent},
		{"ops", func(sc *Scope) {
			sc.Context["task"] = "restart the gateway"
		}, RouteOps},
		{"general", func(sc *Scope) {
			sc.Context["task"] = "summarize this meeting"
		}, RouteGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := testScope(nil)
			tc.setup(sc)

			out, err := Classify{}.Run(context.Background(), sc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.(ClassifyOutput).Route)
			assert.Equal(t, tc.want, sc.Context["route"])
		})
	}
}

func TestClassifyDefaultsBrandContext(t *testing.T) {
	sc := testScope(nil)
	sc.Context["task"] = "brand run"
	sc.Context["brand_id"] = "acme"

	_, err := Classify{}.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, "daily", sc.Context["cadence"])
	assert.Equal(t, "2026-03-01", sc.Context["run_date"])
	assert.Equal(t, "manual", sc.Context["trigger_source"])
}

func TestClassifyKeepsExplicitBrandContext(t *testing.T) {
	sc := testScope(nil)
	sc.Context["task"] = "brand run"
	sc.Context["brand_id"] = "acme"
	sc.Context["cadence"] = "weekly"
	sc.Context["run_date"] = "2026-02-14"
	sc.Context["trigger_source"] = "cron"

	_, err := Classify{}.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, "weekly", sc.Context["cadence"])
	assert.Equal(t, "2026-02-14", sc.Context["run_date"])
	assert.Equal(t, "cron", sc.Context["trigger_source"])
}

func TestPlanStepsPerRoute(t *testing.T) {
	for route, steps := range routeSteps {
		t.Run(route, func(t *testing.T) {
			sc := testScope(&workflow.Definition{
				ID:       "daily-brief",
				Defaults: workflow.Defaults{Assumptions: []string{"weekday mornings"}},
			})
			sc.Context["route"] = route

			out, err := Plan{}.Run(context.Background(), sc)
			require.NoError(t, err)

			got := out.(PlanOutput)
			assert.Equal(t, route, got.Route)
			assert.Equal(t, steps, got.Steps)
			assert.Equal(t, []string{"weekday mornings"}, got.Assumptions)
		})
	}
}

func TestPlanUnknownRouteFallsBackToGeneral(t *testing.T) {
	sc := testScope(nil)
	sc.Context["route"] = "mystery"

	out, err := Plan{}.Run(context.Background(), sc)
	require.NoError(t, err)

	got := out.(PlanOutput)
	assert.Equal(t, RouteGeneral, got.Route)
	assert.Equal(t, routeSteps[RouteGeneral], got.Steps)
	assert.Equal(t, []string{}, got.Assumptions)
}

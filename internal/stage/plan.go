package stage

import "context"

// PlanOutput is recorded as the plan stage's output and carried in the run
// context for later stages.
type PlanOutput struct {
	Route       string   `json:"route"`
	Steps       []string `json:"steps"`
	Assumptions []string `json:"assumptions"`
}

var routeSteps = map[string][]string{
	RouteContent: {"delegate_to_personal_assistant", "generate_publish_pack", "deliver_summary"},
	RouteBrand:   {"delegate_to_brand_orchestrator", "assemble_role_artifacts", "run_guardrails", "create_approval_package", "deliver_summary"},
	RouteOps:     {"delegate_with_ops_prefix", "verify_changes", "deliver_summary"},
	RouteGeneral: {"handle_directly_or_delegate", "verify", "deliver"},
}

// Plan expands the route into its fixed step list and attaches the workflow
// definition's default assumptions.
type Plan struct{}

func (Plan) Name() string { return NamePlan }

func (Plan) Run(_ context.Context, sc *Scope) (any, error) {
	route := sc.ContextString("route")
	steps, ok := routeSteps[route]
	if !ok {
		route = RouteGeneral
		steps = routeSteps[RouteGeneral]
	}

	out := PlanOutput{
		Route:       route,
		Steps:       steps,
		Assumptions: sc.Def.Defaults.Assumptions,
	}
	if out.Assumptions == nil {
		out.Assumptions = []string{}
	}
	sc.Context["plan"] = map[string]any{
		"route":       out.Route,
		"steps":       out.Steps,
		"assumptions": out.Assumptions,
	}
	return out, nil
}

package stage

import "regexp"

var placeholderRE = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes {{field}} placeholders with context values. Unknown
// fields render as the empty string rather than erroring, so a definition
// may template paths on fields the triggering payload did not carry.
func Render(tmpl string, vars map[string]string) string {
	return placeholderRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholderRE.FindStringSubmatch(m)[1]
		return vars[key]
	})
}

// templateVars flattens the scope into the substitution set shared by the
// configure_tools, execute, verify and deliver stages.
func templateVars(sc *Scope) map[string]string {
	return map[string]string{
		"runId":          sc.RunID,
		"workflowId":     sc.WorkflowID,
		"idempotencyKey": sc.IdempotencyKey,
		"task":           sc.ContextString("task"),
		"route":          sc.ContextString("route"),
		"brand_id":       sc.ContextString("brand_id"),
		"cadence":        sc.ContextString("cadence"),
		"run_date":       sc.ContextString("run_date"),
		"trigger_source": sc.ContextString("trigger_source"),
		"approval_id":    sc.ContextString("approval_id"),
		"role":           sc.ContextString("role"),
	}
}

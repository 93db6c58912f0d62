package stage

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Routes a task can classify into.
const (
	RouteBrand   = "brand"
	RouteContent = "content"
	RouteOps     = "ops"
	RouteGeneral = "general"
)

var (
	contentRE = regexp.MustCompile(`(blog|article|newsletter|linkedin|post|thread|content)`)
	opsRE     = regexp.MustCompile(`(restart|fix|debug|config|setup|gateway|cron|error)`)
)

// ClassifyOutput is recorded as the classify stage's output.
type ClassifyOutput struct {
	Route string `json:"route"`
}

// Classify routes the task by keyword. A structured brand trigger always
// wins over keyword matches, and brand runs get their cadence, run date and
// trigger source defaulted so downstream templates never see empty fields.
type Classify struct{}

func (Classify) Name() string { return NameClassify }

func (Classify) Run(_ context.Context, sc *Scope) (any, error) {
	task := strings.ToLower(sc.ContextString("task"))

	route := RouteGeneral
	switch {
	case sc.ContextString("brand_id") != "" || sc.ContextString("cadence") != "" ||
		strings.Contains(task, "run_brand_workflow"):
		route = RouteBrand
	case contentRE.MatchString(task):
		route = RouteContent
	case opsRE.MatchString(task):
		route = RouteOps
	}

	if route == RouteBrand {
		if sc.ContextString("cadence") == "" {
			sc.Context["cadence"] = "daily"
		}
		if sc.ContextString("run_date") == "" {
			sc.Context["run_date"] = sc.Now().UTC().Format(time.DateOnly)
		}
		if sc.ContextString("trigger_source") == "" {
			sc.Context["trigger_source"] = "manual"
		}
	}

	sc.Context["route"] = route
	return ClassifyOutput{Route: route}, nil
}

package stage

import (
	"context"
	"fmt"
	"strings"
)

// VerifyCheck records one required-artifact probe.
type VerifyCheck struct {
	File   string `json:"file"`
	Exists bool   `json:"exists"`
}

// VerifyOutput is recorded as the verify stage's output.
type VerifyOutput struct {
	Checks []VerifyCheck `json:"checks"`
	OK     bool          `json:"ok"`
}

// Verify probes every templated required artifact. All paths are checked
// before failing so the error lists the complete missing set, not just the
// first one.
type Verify struct {
	Exists ArtifactChecker
}

func (Verify) Name() string { return NameVerify }

func (h Verify) Run(_ context.Context, sc *Scope) (any, error) {
	vars := templateVars(sc)
	if vars["route"] == "" {
		vars["route"] = RouteGeneral
	}

	out := VerifyOutput{Checks: []VerifyCheck{}}
	var missing []string
	for _, file := range sc.Def.Verify.RequiredFiles {
		p := Render(file, vars)
		exists := h.Exists(p)
		out.Checks = append(out.Checks, VerifyCheck{File: p, Exists: exists})
		if !exists {
			missing = append(missing, p)
		}
	}
	out.OK = len(missing) == 0
	if !out.OK {
		return nil, fmt.Errorf("verify failed: missing %s", strings.Join(missing, ", "))
	}
	return out, nil
}

package stage

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var triggerPrefixRE = regexp.MustCompile(`(?s)^RUN_BRAND_WORKFLOW\s+(\{.+\})$`)

// IntakeOutput is recorded as the intake stage's output.
type IntakeOutput struct {
	InputText      string         `json:"inputText"`
	NormalizedTask string         `json:"normalizedTask"`
	ParsedPayload  map[string]any `json:"parsedPayload"`
	ReceivedAt     time.Time      `json:"receivedAt"`
}

// Intake parses the raw input into a normalized task and seeds the run
// context with any structured trigger fields the payload carried.
type Intake struct{}

func (Intake) Name() string { return NameIntake }

func (Intake) Run(_ context.Context, sc *Scope) (any, error) {
	payload := parseInputPayload(sc.Input)

	task := ""
	if payload != nil {
		for _, key := range []string{"task", "prompt", "message"} {
			if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
				task = strings.TrimSpace(v)
				break
			}
		}
	}
	if task == "" {
		task = strings.TrimSpace(sc.Input)
	}
	task = norm.NFC.String(task)

	for _, key := range []string{"brand_id", "cadence", "run_date", "trigger_source", "approval_id", "role"} {
		if v, ok := payload[key].(string); ok {
			sc.Context[key] = strings.TrimSpace(v)
		}
	}
	sc.Context["task"] = task

	return IntakeOutput{
		InputText:      sc.Input,
		NormalizedTask: task,
		ParsedPayload:  payload,
		ReceivedAt:     sc.Now(),
	}, nil
}

// parseInputPayload accepts either a bare JSON object or one carried behind
// the RUN_BRAND_WORKFLOW trigger prefix. Anything else is plain text.
func parseInputPayload(input string) map[string]any {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return nil
	}
	if payload := decodeObject(raw); payload != nil {
		return payload
	}
	m := triggerPrefixRE.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return decodeObject(m[1])
}

func decodeObject(raw string) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload
}

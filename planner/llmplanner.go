package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lmlang/graphlang/planner/chatmodel"
)

// LLMPlanner asks a chat model to turn a goal and a graph summary into
// an AutonomyPlanEnvelope, the way the teacher's graph/model.ChatModel
// backs a node's own reasoning step — here the "node" is the planning
// boundary itself rather than a workflow step.
type LLMPlanner struct {
	model  chatmodel.ChatModel
	system string
}

// NewLLMPlanner wraps model with the system prompt that instructs it to
// respond with exactly one AutonomyPlanEnvelope JSON document.
func NewLLMPlanner(model chatmodel.ChatModel) *LLMPlanner {
	return &LLMPlanner{model: model, system: defaultSystemPrompt}
}

const defaultSystemPrompt = `You plan edits to a typed program graph. ` +
	`Respond with exactly one JSON object matching the AutonomyPlanEnvelope schema: ` +
	`{"version":1,"goal":string,"metadata":object?,"actions":[...]} or ` +
	`{"version":1,"goal":string,"failure":{"reason":string}}. ` +
	`Emit nothing but that JSON object — no prose, no markdown fences.`

// Plan requests a plan for goal given graphSummary (a short textual
// description of the current program, e.g. function signatures and
// recent edit history) and validates the model's response before
// returning it.
func (p *LLMPlanner) Plan(ctx context.Context, goal, graphSummary string) (AutonomyPlanEnvelope, []Violation, error) {
	messages := []chatmodel.Message{
		{Role: chatmodel.RoleSystem, Content: p.system},
		{Role: chatmodel.RoleUser, Content: fmt.Sprintf("Goal: %s\n\nProgram summary:\n%s", goal, graphSummary)},
	}

	raw, err := p.model.Chat(ctx, messages)
	if err != nil {
		return AutonomyPlanEnvelope{}, nil, fmt.Errorf("planner: chat model call failed: %w", err)
	}

	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return AutonomyPlanEnvelope{}, nil, fmt.Errorf("planner: model response did not contain a JSON object: %q", raw)
	}

	var envelope AutonomyPlanEnvelope
	if err := json.Unmarshal([]byte(jsonText), &envelope); err != nil {
		return AutonomyPlanEnvelope{}, nil, fmt.Errorf("planner: failed to decode envelope JSON: %w", err)
	}

	violations := envelope.Validate()
	return envelope, violations, nil
}

// extractJSONObject pulls the first top-level {...} object out of raw
// text, tolerating markdown code fences and leading/trailing prose that
// chat models routinely add despite instructions not to. gjson.Valid is
// used to find the first well-formed object rather than a brittle regex.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}
	for end := len(raw); end > start; end-- {
		candidate := raw[start:end]
		if gjson.Valid(candidate) {
			return candidate
		}
	}
	return ""
}

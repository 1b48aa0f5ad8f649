package planner

import (
	"context"
	"testing"

	"github.com/lmlang/graphlang/planner/chatmodel"
)

type fakeChatModel struct {
	response string
	err      error
}

func (f *fakeChatModel) Chat(ctx context.Context, messages []chatmodel.Message) (string, error) {
	return f.response, f.err
}

func TestLLMPlanner_Plan_ParsesCleanJSON(t *testing.T) {
	model := &fakeChatModel{response: `{"version":1,"goal":"inline a helper","actions":[{"kind":"Verify","scope":"Full"}]}`}
	p := NewLLMPlanner(model)

	envelope, violations, err := p.Plan(context.Background(), "inline a helper", "func f(x: i32) -> i32")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
	if envelope.Goal != "inline a helper" || len(envelope.Actions) != 1 {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestLLMPlanner_Plan_StripsMarkdownFencesAndProse(t *testing.T) {
	model := &fakeChatModel{response: "Sure, here's the plan:\n```json\n{\"version\":1,\"goal\":\"g\",\"actions\":[{\"kind\":\"Verify\",\"scope\":\"Local\"}]}\n```\nLet me know if you need changes."}
	p := NewLLMPlanner(model)

	envelope, violations, err := p.Plan(context.Background(), "g", "")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
	if envelope.Version != 1 {
		t.Fatalf("expected parsed envelope, got %+v", envelope)
	}
}

func TestLLMPlanner_Plan_InvalidEnvelopeSurfacesViolations(t *testing.T) {
	model := &fakeChatModel{response: `{"version":2,"actions":[]}`}
	p := NewLLMPlanner(model)

	_, violations, err := p.Plan(context.Background(), "g", "")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !hasCode(violations, ErrVersionUnsupported) || !hasCode(violations, ErrGoalEmpty) || !hasCode(violations, ErrActionsEmpty) {
		t.Fatalf("expected version/goal/actions violations, got %v", violations)
	}
}

func TestLLMPlanner_Plan_NoJSONInResponse(t *testing.T) {
	model := &fakeChatModel{response: "I cannot help with that."}
	p := NewLLMPlanner(model)

	if _, _, err := p.Plan(context.Background(), "g", ""); err == nil {
		t.Fatalf("expected an error when the model returns no JSON object")
	}
}

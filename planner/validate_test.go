package planner

import "testing"

func hasCode(violations []Violation, code string) bool {
	for _, v := range violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func TestValidate_WellFormedEnvelope_NoViolations(t *testing.T) {
	e := AutonomyPlanEnvelope{
		Version: ContractVersion,
		Goal:    "rename parameter x to n",
		Actions: []AutonomyPlanAction{
			{Kind: ActionVerify, Scope: VerifyFull},
		},
	}
	if v := e.Validate(); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: 99, Goal: "g", Actions: []AutonomyPlanAction{{Kind: ActionVerify, Scope: VerifyLocal}}}
	v := e.Validate()
	if !hasCode(v, ErrVersionUnsupported) {
		t.Fatalf("expected %s, got %v", ErrVersionUnsupported, v)
	}
}

func TestValidate_EmptyGoal(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: ContractVersion, Actions: []AutonomyPlanAction{{Kind: ActionVerify, Scope: VerifyLocal}}}
	v := e.Validate()
	if !hasCode(v, ErrGoalEmpty) {
		t.Fatalf("expected %s, got %v", ErrGoalEmpty, v)
	}
}

func TestValidate_ActionsAndFailureBothSet(t *testing.T) {
	e := AutonomyPlanEnvelope{
		Version: ContractVersion,
		Goal:    "g",
		Actions: []AutonomyPlanAction{{Kind: ActionVerify, Scope: VerifyLocal}},
		Failure: &AutonomyPlanFailure{Reason: "conflicting"},
	}
	v := e.Validate()
	if !hasCode(v, ErrActionsAndFailure) {
		t.Fatalf("expected %s, got %v", ErrActionsAndFailure, v)
	}
}

func TestValidate_NeitherActionsNorFailure(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g"}
	v := e.Validate()
	if !hasCode(v, ErrActionsEmpty) {
		t.Fatalf("expected %s, got %v", ErrActionsEmpty, v)
	}
}

func TestValidate_TooManyActions(t *testing.T) {
	actions := make([]AutonomyPlanAction, maxActions+1)
	for i := range actions {
		actions[i] = AutonomyPlanAction{Kind: ActionVerify, Scope: VerifyLocal}
	}
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g", Actions: actions}
	v := e.Validate()
	if !hasCode(v, ErrTooManyActions) {
		t.Fatalf("expected %s, got %v", ErrTooManyActions, v)
	}
}

func TestValidate_InvalidVerifyScope(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g", Actions: []AutonomyPlanAction{{Kind: ActionVerify, Scope: "Sideways"}}}
	v := e.Validate()
	if !hasCode(v, ErrInvalidEnum) {
		t.Fatalf("expected %s, got %v", ErrInvalidEnum, v)
	}
	if v[0].ActionIndex == nil || *v[0].ActionIndex != 0 {
		t.Fatalf("expected violation to carry action_index 0, got %+v", v[0])
	}
}

func TestValidate_CompileMissingEntryFunction(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g", Actions: []AutonomyPlanAction{{Kind: ActionCompile, OptLevel: OptO2}}}
	v := e.Validate()
	if !hasCode(v, ErrMissingField) {
		t.Fatalf("expected %s, got %v", ErrMissingField, v)
	}
}

func TestValidate_SimulateTooManyInputs(t *testing.T) {
	inputs := make([]string, maxSimInputs+1)
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g", Actions: []AutonomyPlanAction{{Kind: ActionSimulate, FunctionID: "f", Inputs: inputs}}}
	v := e.Validate()
	if !hasCode(v, ErrTooManySimInputs) {
		t.Fatalf("expected %s, got %v", ErrTooManySimInputs, v)
	}
}

func TestValidate_InspectMaxResultsOutOfRange(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g", Actions: []AutonomyPlanAction{{Kind: ActionInspect, Query: "q", MaxResults: 500}}}
	v := e.Validate()
	if !hasCode(v, ErrMaxResultsRange) {
		t.Fatalf("expected %s, got %v", ErrMaxResultsRange, v)
	}
}

func TestValidate_HistoryRestoreCheckpointMissingName(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g", Actions: []AutonomyPlanAction{{Kind: ActionHistory, Operation: HistoryRestoreCheckpoint}}}
	v := e.Validate()
	if !hasCode(v, ErrMissingField) {
		t.Fatalf("expected %s, got %v", ErrMissingField, v)
	}
}

func TestValidate_UnknownActionKind(t *testing.T) {
	e := AutonomyPlanEnvelope{Version: ContractVersion, Goal: "g", Actions: []AutonomyPlanAction{{Kind: "Teleport"}}}
	v := e.Validate()
	if !hasCode(v, ErrInvalidEnum) {
		t.Fatalf("expected %s, got %v", ErrInvalidEnum, v)
	}
}

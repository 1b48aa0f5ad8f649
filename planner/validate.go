package planner

import "fmt"

// Violation is one structured validation failure, machine-readable so
// the planner (itself an AI) can correct its own output.
type Violation struct {
	Code        string
	Message     string
	ActionIndex *int
	Field       string
}

func (v Violation) Error() string {
	if v.ActionIndex != nil {
		return fmt.Sprintf("%s: %s (action %d, field %s)", v.Code, v.Message, *v.ActionIndex, v.Field)
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// Validation error codes, carried verbatim so planner clients can match
// on them rather than parsing Message text.
const (
	ErrVersionUnsupported = "E_VERSION_UNSUPPORTED"
	ErrGoalEmpty          = "E_GOAL_EMPTY"
	ErrActionsEmpty       = "E_ACTIONS_EMPTY"
	ErrActionsAndFailure  = "E_ACTIONS_AND_FAILURE"
	ErrTooManyActions     = "E_TOO_MANY_ACTIONS"
	ErrBatchTooLarge      = "E_BATCH_TOO_LARGE"
	ErrTooManySimInputs   = "E_TOO_MANY_SIM_INPUTS"
	ErrMaxResultsRange    = "E_MAX_RESULTS_RANGE"
	ErrMissingField       = "E_MISSING_FIELD"
	ErrInvalidEnum        = "E_INVALID_ENUM"
)

const (
	maxActions        = 32
	maxBatchMutations = 128
	maxSimInputs      = 32
	maxInspectResults = 200
)

// Validate enforces every structural rule from §4.7.5 and returns every
// violation found — no early return, so a single bad envelope surfaces
// everything wrong with it at once, the same "collect all errors"
// discipline typecheck.ValidateGraph uses.
func (e *AutonomyPlanEnvelope) Validate() []Violation {
	var violations []Violation

	if e.Version != ContractVersion {
		violations = append(violations, Violation{
			Code:    ErrVersionUnsupported,
			Message: fmt.Sprintf("version %d is not the supported contract version %d", e.Version, ContractVersion),
			Field:   "version",
		})
	}

	if e.Goal == "" {
		violations = append(violations, Violation{Code: ErrGoalEmpty, Message: "goal must not be empty", Field: "goal"})
	}

	hasActions := len(e.Actions) > 0
	hasFailure := e.Failure != nil
	switch {
	case !hasActions && !hasFailure:
		violations = append(violations, Violation{Code: ErrActionsEmpty, Message: "envelope must carry either actions or a failure"})
	case hasActions && hasFailure:
		violations = append(violations, Violation{Code: ErrActionsAndFailure, Message: "envelope must not carry both actions and a failure"})
	}

	if len(e.Actions) > maxActions {
		violations = append(violations, Violation{
			Code:    ErrTooManyActions,
			Message: fmt.Sprintf("%d actions exceeds the maximum of %d", len(e.Actions), maxActions),
			Field:   "actions",
		})
	}

	for i := range e.Actions {
		violations = append(violations, validateAction(&e.Actions[i], i)...)
	}

	return violations
}

func validateAction(a *AutonomyPlanAction, index int) []Violation {
	idx := index
	var violations []Violation
	fail := func(code, message, field string) {
		violations = append(violations, Violation{Code: code, Message: message, ActionIndex: &idx, Field: field})
	}

	switch a.Kind {
	case ActionMutateBatch:
		if len(a.Mutations) > maxBatchMutations {
			fail(ErrBatchTooLarge, fmt.Sprintf("%d mutations exceeds the maximum of %d", len(a.Mutations), maxBatchMutations), "mutations")
		}

	case ActionVerify:
		if a.Scope != VerifyLocal && a.Scope != VerifyFull {
			fail(ErrInvalidEnum, fmt.Sprintf("scope %q is not Local or Full", a.Scope), "scope")
		}

	case ActionCompile:
		switch a.OptLevel {
		case OptO0, OptO1, OptO2, OptO3:
		default:
			fail(ErrInvalidEnum, fmt.Sprintf("opt_level %q is not one of O0..O3", a.OptLevel), "opt_level")
		}
		if a.EntryFunction == "" {
			fail(ErrMissingField, "entry_function is required for a Compile action", "entry_function")
		}

	case ActionSimulate:
		if a.FunctionID == "" {
			fail(ErrMissingField, "function_id is required for a Simulate action", "function_id")
		}
		if len(a.Inputs) > maxSimInputs {
			fail(ErrTooManySimInputs, fmt.Sprintf("%d inputs exceeds the maximum of %d", len(a.Inputs), maxSimInputs), "inputs")
		}

	case ActionInspect:
		if a.Query == "" {
			fail(ErrMissingField, "query is required for an Inspect action", "query")
		}
		if a.MaxResults <= 0 || a.MaxResults > maxInspectResults {
			fail(ErrMaxResultsRange, fmt.Sprintf("max_results %d is outside (0, %d]", a.MaxResults, maxInspectResults), "max_results")
		}

	case ActionHistory:
		switch a.Operation {
		case HistoryListEntries, HistoryListCheckpoints, HistoryUndo, HistoryRedo, HistoryRestoreCheckpoint, HistoryDiff:
		default:
			fail(ErrInvalidEnum, fmt.Sprintf("operation %q is not a recognized History operation", a.Operation), "operation")
		}
		if a.Operation == HistoryRestoreCheckpoint && a.CheckpointName == "" {
			fail(ErrMissingField, "checkpoint_name is required for History{RestoreCheckpoint}", "checkpoint_name")
		}

	default:
		fail(ErrInvalidEnum, fmt.Sprintf("kind %q is not a recognized action kind", a.Kind), "kind")
	}

	return violations
}

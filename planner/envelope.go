// Package planner implements §4.7.5's schema-validated planner contract
// — the AutonomyPlanEnvelope an autonomous agent submits to drive edits,
// verification, compilation, simulation, inspection, and history
// operations against a program — plus an LLMPlanner abstraction that
// asks a chat model to produce one.
package planner

import "github.com/lmlang/graphlang/editlog"

// ContractVersion is the only AutonomyPlanEnvelope.Version value this
// service accepts.
const ContractVersion = 1

// AutonomyPlanEnvelope is the versioned outer document a planner
// submits. Exactly one of Actions or Failure must be set.
type AutonomyPlanEnvelope struct {
	Version  int                  `json:"version"`
	Goal     string               `json:"goal"`
	Metadata map[string]string    `json:"metadata,omitempty"`
	Actions  []AutonomyPlanAction `json:"actions,omitempty"`
	Failure  *AutonomyPlanFailure `json:"failure,omitempty"`
}

// AutonomyPlanFailure is a structured explanation of why a planner could
// not produce an action list for its goal.
type AutonomyPlanFailure struct {
	Reason string `json:"reason"`
}

// ActionKind discriminates AutonomyPlanAction's six members.
type ActionKind string

const (
	ActionMutateBatch ActionKind = "MutateBatch"
	ActionVerify      ActionKind = "Verify"
	ActionCompile     ActionKind = "Compile"
	ActionSimulate    ActionKind = "Simulate"
	ActionInspect     ActionKind = "Inspect"
	ActionHistory     ActionKind = "History"
)

// VerifyScope discriminates a Verify action's extent.
type VerifyScope string

const (
	VerifyLocal VerifyScope = "Local"
	VerifyFull  VerifyScope = "Full"
)

// OptLevel discriminates a Compile action's optimization level.
type OptLevel string

const (
	OptO0 OptLevel = "O0"
	OptO1 OptLevel = "O1"
	OptO2 OptLevel = "O2"
	OptO3 OptLevel = "O3"
)

// HistoryOperation discriminates a History action's requested operation.
type HistoryOperation string

const (
	HistoryListEntries      HistoryOperation = "ListEntries"
	HistoryListCheckpoints  HistoryOperation = "ListCheckpoints"
	HistoryUndo             HistoryOperation = "Undo"
	HistoryRedo             HistoryOperation = "Redo"
	HistoryRestoreCheckpoint HistoryOperation = "RestoreCheckpoint"
	HistoryDiff             HistoryOperation = "Diff"
)

// AutonomyPlanAction is one ordered step of a plan. Only the fields
// relevant to Kind are meaningful, following the same flat-tagged-union
// convention used throughout this codebase (ir.Op, editlog.Mutation).
type AutonomyPlanAction struct {
	Kind ActionKind `json:"kind"`

	// MutateBatch
	Mutations   []editlog.Mutation `json:"mutations,omitempty"`
	Description string             `json:"description,omitempty"`
	DryRun      bool               `json:"dry_run,omitempty"`

	// Verify
	Scope VerifyScope `json:"scope,omitempty"`

	// Compile
	OptLevel      OptLevel `json:"opt_level,omitempty"`
	EntryFunction string   `json:"entry_function,omitempty"`
	OutputDir     string   `json:"output_dir,omitempty"`
	TargetTriple  string   `json:"target_triple,omitempty"`
	DebugSymbols  bool     `json:"debug_symbols,omitempty"`

	// Simulate
	FunctionID   string   `json:"function_id,omitempty"`
	Inputs       []string `json:"inputs,omitempty"` // decimal-literal encoded rtvalue.Value payloads
	TraceEnabled bool     `json:"trace_enabled,omitempty"`

	// Inspect
	Query      string `json:"query,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`

	// History
	Operation      HistoryOperation `json:"operation,omitempty"`
	CheckpointName string           `json:"checkpoint_name,omitempty"`
	FromVersion    string           `json:"from_version,omitempty"`
	ToVersion      string           `json:"to_version,omitempty"`
}

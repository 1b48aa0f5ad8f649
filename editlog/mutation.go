// Package editlog implements the mutation surface (§4.7.1), per-mutation
// inverse commands, the append-only log with undo/redo, named
// checkpoints, and graph diffing. It is the only package that mutates a
// *program.Graph outside of program itself — editservice drives it, but
// every actual graph write goes through Apply/EditCommand.Invert here
// so the two stay in lockstep.
package editlog

import (
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
)

// MutationKind discriminates the eight-member mutation surface.
type MutationKind int

const (
	InsertNode MutationKind = iota
	RemoveNode
	ModifyNode
	AddEdge
	AddControlEdge
	RemoveEdge
	AddFunction
	AddModule
)

func (k MutationKind) String() string {
	switch k {
	case InsertNode:
		return "InsertNode"
	case RemoveNode:
		return "RemoveNode"
	case ModifyNode:
		return "ModifyNode"
	case AddEdge:
		return "AddEdge"
	case AddControlEdge:
		return "AddControlEdge"
	case RemoveEdge:
		return "RemoveEdge"
	case AddFunction:
		return "AddFunction"
	case AddModule:
		return "AddModule"
	default:
		return "Unknown"
	}
}

// Mutation is the flat tagged union a caller submits to propose_edit,
// following the same one-struct-plus-Kind convention as ir.Op and
// rtvalue.Value — only the fields relevant to Kind are meaningful.
type Mutation struct {
	Kind MutationKind

	// InsertNode
	Owner ids.FunctionID
	Op    ir.Op

	// RemoveNode, ModifyNode
	Node  ids.NodeID
	NewOp ir.Op // ModifyNode

	// AddEdge, AddControlEdge
	Source, Target         ids.NodeID
	SourcePort, TargetPort uint16
	ValueType              ids.TypeID
	BranchIndex            int // AddControlEdge; < 0 means unconditional

	// RemoveEdge
	Edge ids.EdgeID

	// AddFunction
	Name       string
	Module     ids.ModuleID
	Params     []ir.Param
	ReturnType ids.TypeID
	Visibility lmtype.Visibility

	// AddModule (Name, Visibility shared with AddFunction above)
	Parent ids.ModuleID
}

// Package program implements ProgramGraph, the sole owner of a program's
// dual-graph state: the compute graph, the semantic graph, the type
// registry, and the module tree. Every mutation — and the deterministic
// propagation flush that keeps semantic summaries current — goes through
// this package.
package program

import (
	"errors"
	"fmt"

	"github.com/lmlang/graphlang/ids"
)

// Graph-structural error taxonomy (§7).
var (
	ErrNodeNotFound            = errors.New("program: node not found")
	ErrFunctionNotFound        = errors.New("program: function not found")
	ErrModuleNotFound          = errors.New("program: module not found")
	ErrEdgeNotFound            = errors.New("program: edge not found")
	ErrInvalidEdge             = errors.New("program: invalid edge")
	ErrGraphInconsistency      = errors.New("program: graph inconsistency")
	ErrPropagationLoopDetected = errors.New("program: propagation loop detected")
	ErrTypeNotFound            = errors.New("program: type not found")
)

// NodeNotFoundError carries the offending NodeID.
type NodeNotFoundError struct{ Node ids.NodeID }

func (e *NodeNotFoundError) Error() string  { return fmt.Sprintf("program: node %v not found", e.Node) }
func (e *NodeNotFoundError) Unwrap() error  { return ErrNodeNotFound }

// FunctionNotFoundError carries the offending FunctionID.
type FunctionNotFoundError struct{ Function ids.FunctionID }

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("program: function %v not found", e.Function)
}
func (e *FunctionNotFoundError) Unwrap() error { return ErrFunctionNotFound }

// ModuleNotFoundError carries the offending ModuleID.
type ModuleNotFoundError struct{ Module ids.ModuleID }

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("program: module %v not found", e.Module)
}
func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }

// InvalidEdgeError explains why a proposed edge was rejected.
type InvalidEdgeError struct{ Reason string }

func (e *InvalidEdgeError) Error() string  { return "program: invalid edge: " + e.Reason }
func (e *InvalidEdgeError) Unwrap() error  { return ErrInvalidEdge }

// GraphInconsistencyError is raised by AssertConsistency (debug builds
// only) when a dual-graph invariant is violated.
type GraphInconsistencyError struct{ Reason string }

func (e *GraphInconsistencyError) Error() string {
	return "program: graph inconsistency: " + e.Reason
}
func (e *GraphInconsistencyError) Unwrap() error { return ErrGraphInconsistency }

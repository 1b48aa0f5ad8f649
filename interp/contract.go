package interp

import (
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// ContractKind discriminates which of the three contract op kinds a
// ContractViolation came from.
type ContractKind int

const (
	KindPrecondition ContractKind = iota
	KindPostcondition
	KindInvariant
)

func (k ContractKind) String() string {
	switch k {
	case KindPrecondition:
		return "Precondition"
	case KindPostcondition:
		return "Postcondition"
	case KindInvariant:
		return "Invariant"
	default:
		return "Unknown"
	}
}

// CounterexampleEntry pairs a contract node's data source with its value
// at the moment the contract was evaluated, used to build a
// human-inspectable counterexample list.
type CounterexampleEntry struct {
	Node  ids.NodeID
	Value rtvalue.Value
}

// ContractViolation is the structured, non-error terminal payload
// produced when a Precondition/Postcondition/Invariant evaluates false.
// Contract violations are not runtime errors — they carry enough
// context (arguments, return value, counterexample) for a caller to act
// on them directly rather than just log-and-fail.
type ContractViolation struct {
	Kind         ContractKind
	ContractNode ids.NodeID
	Function     ids.FunctionID
	Message      string

	Inputs []rtvalue.Value

	HasReturn    bool
	ActualReturn rtvalue.Value

	Counterexample []CounterexampleEntry
}

// ModuleBoundaryChecker performs the cross-module invariant mini-
// evaluation described in SPEC_FULL.md / spec.md §4.6.2: when a Call
// crosses a module boundary, the callee's frame does not exist yet, so
// the checker evaluates the callee's matching Invariant condition
// subgraphs on the fly against each argument value. Implemented by
// package contracts; the Interpreter only depends on this interface, so
// wiring the real checker in is left to the caller (httpapi.NewServer
// does so) — a nil checker silently skips the cross-module check.
type ModuleBoundaryChecker interface {
	CheckBoundary(g *program.Graph, callee ids.FunctionID, paramIndex int, paramType ids.TypeID, value rtvalue.Value) (ok bool, violation *ContractViolation)
}

// collectCounterexample walks nodeID's incoming data edges, pairs each
// source with its currently stored value, and sorts by NodeID — the
// same deterministic counterexample construction §4.6.1 describes for
// the ordinary contract check, reused here for in-process violations.
func collectCounterexample(g *program.Graph, frame *CallFrame, nodeID ids.NodeID) []CounterexampleEntry {
	edges := g.IncomingDataEdges(nodeID)
	out := make([]CounterexampleEntry, 0, len(edges))
	for _, e := range edges {
		if v, ok := frame.NodeValues[e.Source]; ok {
			out = append(out, CounterexampleEntry{Node: e.Source, Value: v})
		}
	}
	sortCounterexample(out)
	return out
}

func sortCounterexample(entries []CounterexampleEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Node > entries[j].Node; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

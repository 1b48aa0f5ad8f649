// Package contracts implements the ordinary contract check reusable
// outside the interpreter's own inline Precondition/Postcondition/
// Invariant handling, plus the cross-module invariant mini-evaluation
// that runs when a call crosses a module boundary and the callee's
// frame doesn't exist yet. Checker implements interp.ModuleBoundaryChecker
// structurally — interp never imports this package back.
package contracts

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/interp"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// ErrMissingValue is returned by EvaluateCondition when the contract's
// condition source has no recorded value yet — a conservative "not
// checkable yet, skip" signal, distinct from a real failure.
var ErrMissingValue = errors.New("contracts: condition value not yet available")

// MissingValueError names the absent source so a caller can decide
// whether to retry once more values are known.
type MissingValueError struct {
	Node ids.NodeID
	Port uint16
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("contracts: missing value for node %v port %d", e.Node, e.Port)
}
func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// EvaluateCondition implements §4.6.1's evaluate_contract_condition: find
// the incoming data edge at port 0, look up its value, and return it as
// a Bool. An absent edge is vacuously true. A present edge with no
// recorded value yet returns MissingValueError (non-fatal). A present,
// non-Bool value is a genuine type error.
func EvaluateCondition(g *program.Graph, contractNode ids.NodeID, nodeValues map[ids.NodeID]rtvalue.Value) (bool, error) {
	var source ids.NodeID
	found := false
	for _, e := range g.IncomingDataEdges(contractNode) {
		if e.TargetPort == 0 {
			source, found = e.Source, true
			break
		}
	}
	if !found {
		return true, nil
	}
	v, ok := nodeValues[source]
	if !ok {
		return false, &MissingValueError{Node: source, Port: 0}
	}
	if v.Kind != rtvalue.KBool {
		return false, &interp.TypeMismatchAtRuntimeError{Node: contractNode}
	}
	return v.Bool, nil
}

// CollectCounterexample implements §4.6.1's collect_counterexample: pair
// every incoming-data-edge source with its recorded value, sorted by
// NodeId for determinism.
func CollectCounterexample(g *program.Graph, contractNode ids.NodeID, nodeValues map[ids.NodeID]rtvalue.Value) []interp.CounterexampleEntry {
	edges := g.IncomingDataEdges(contractNode)
	out := make([]interp.CounterexampleEntry, 0, len(edges))
	for _, e := range edges {
		if v, ok := nodeValues[e.Source]; ok {
			out = append(out, interp.CounterexampleEntry{Node: e.Source, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

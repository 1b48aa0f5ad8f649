package contracts

import (
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/interp"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// Checker implements interp.ModuleBoundaryChecker. It carries no state —
// a mini-evaluation only ever needs the graph and the one argument value
// being checked, both passed in per call.
type Checker struct{}

// NewChecker returns a ready-to-use module-boundary checker.
func NewChecker() *Checker { return &Checker{} }

// CheckBoundary implements §4.6.2: find every Invariant owned by callee
// whose TargetType matches paramType, mini-evaluate its condition
// subgraph with value substituted at every Parameter, and fail closed
// (conservative violation) on the first one that evaluates false or
// errors.
func (c *Checker) CheckBoundary(g *program.Graph, callee ids.FunctionID, paramIndex int, paramType ids.TypeID, value rtvalue.Value) (bool, *interp.ContractViolation) {
	for _, nid := range g.NodesOwnedBy(callee) {
		node, ok := g.GetComputeNode(nid)
		if !ok || node.Op.Kind != ir.OpInvariant || node.Op.TargetType != paramType {
			continue
		}

		source, found := conditionSource(g, nid)
		if !found {
			continue
		}

		result, err := miniEval(g, source, value, make(map[ids.NodeID]rtvalue.Value))
		if err != nil || result.Kind != rtvalue.KBool || !result.Bool {
			return false, &interp.ContractViolation{
				Kind:         interp.KindInvariant,
				ContractNode: nid,
				Function:     callee,
				Message:      node.Op.Message,
				Inputs:       []rtvalue.Value{value},
			}
		}
	}
	return true, nil
}

func conditionSource(g *program.Graph, contractNode ids.NodeID) (ids.NodeID, bool) {
	for _, e := range g.IncomingDataEdges(contractNode) {
		if e.TargetPort == 0 {
			return e.Source, true
		}
	}
	return 0, false
}

// miniEval implements §4.6.2's recursive post-order mini-evaluation:
// Parameter substitutes argValue regardless of its declared index (the
// invariant is parameterized over the boundary value, not a specific
// call-frame slot); everything else recurses on its incoming data edges
// first and then defers to interp.EvalPureOp, the same evaluator the
// interpreter's own work-list loop uses.
func miniEval(g *program.Graph, nodeID ids.NodeID, argValue rtvalue.Value, memo map[ids.NodeID]rtvalue.Value) (rtvalue.Value, error) {
	if v, ok := memo[nodeID]; ok {
		return v, nil
	}
	node, ok := g.GetComputeNode(nodeID)
	if !ok {
		return rtvalue.Value{}, &interp.InternalError{Reason: "mini-eval: node not found"}
	}

	if node.Op.Kind == ir.OpParameter {
		memo[nodeID] = argValue
		return argValue, nil
	}

	edges := g.IncomingDataEdges(nodeID)
	inputs := make([]rtvalue.Value, len(edges))
	for i, e := range edges {
		v, err := miniEval(g, e.Source, argValue, memo)
		if err != nil {
			return rtvalue.Value{}, err
		}
		inputs[i] = v
	}
	result, _, err := interp.EvalPureOp(g, nodeID, node.Op, inputs)
	if err != nil {
		return rtvalue.Value{}, err
	}
	memo[nodeID] = result
	return result, nil
}

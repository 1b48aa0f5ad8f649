package typecheck

import (
	"sort"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/program"
)

// arity maps a fixed-arity OpKind to its required incoming-data-edge
// count. Ops absent from this table are variable-arity and excluded
// from the arity check (§4.4.3).
var arity = map[ir.OpKind]int{
	ir.OpBinaryArith:       2,
	ir.OpUnaryArith:        1,
	ir.OpCompare:           2,
	ir.OpBinaryLogic:       2,
	ir.OpNot:               1,
	ir.OpShift:             2,
	ir.OpIfElse:            1,
	ir.OpBranch:            1,
	ir.OpStructGet:         1,
	ir.OpStructSet:         2,
	ir.OpArrayGet:          2,
	ir.OpArraySet:          3,
	ir.OpCast:              1,
	ir.OpEnumDiscriminant:  1,
	ir.OpEnumPayload:       1,
}

// ValidateDataEdge simulates inserting a Data edge from src:srcPort to
// dst:dstPort carrying valueType without mutating the graph: it gathers
// dst's existing incoming data-edge types, substitutes (or appends) the
// proposed one at dstPort, resolves dst's type rule, and compares
// valueType against the expected type at that port (allowing coercion).
func ValidateDataEdge(g *program.Graph, fid ids.FunctionID, src, dst ids.NodeID, srcPort, dstPort uint16, valueType ids.TypeID) error {
	inputTypes := gatherInputTypes(g, dst)
	inputTypes[dstPort] = valueType

	rule, err := ResolveTypeRule(g, fid, dst, inputTypes)
	if err != nil {
		return err
	}
	expected, ok := expectedAtPort(rule, dstPort)
	if !ok {
		return nil // dst's rule does not constrain this port (e.g. variable-arity tail)
	}
	if lmtype.CanCoerce(valueType, expected) {
		return nil
	}
	mismatch := &TypeMismatchError{
		SourceNode: src, TargetNode: dst,
		SourcePort: srcPort, TargetPort: dstPort,
		Expected: expected, Actual: valueType, Function: fid,
	}
	if lmtype.IsNumeric(valueType) && lmtype.IsNumeric(expected) {
		mismatch.Suggestion = &InsertCastSuggestion{From: valueType, To: expected}
	}
	return mismatch
}

// ValidateGraph iterates every compute node, resolves its type rule
// against its actual incoming edge types, and checks arity. It collects
// every error rather than returning on the first, so a single edit batch
// surfaces every problem at once (§4.4.3).
func ValidateGraph(g *program.Graph) []error {
	var errs []error
	for nid, node := range g.Nodes() {
		fid := node.Owner
		inputTypes := gatherInputTypes(g, nid)

		if want, ok := arity[node.Op.Kind]; ok {
			if got := len(g.IncomingDataEdges(nid)); got != want {
				errs = append(errs, &ArityError{Node: nid, Expected: want, Actual: got})
				continue
			}
		}

		rule, err := ResolveTypeRule(g, fid, nid, inputTypes)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, exp := range rule.ExpectedInputs {
			actual, ok := inputTypes[exp.Port]
			if !ok {
				continue // for ops in the arity table, a missing port was reported above; other ops are not checked for it
			}
			if !lmtype.CanCoerce(actual, exp.Type) {
				mismatch := &TypeMismatchError{
					TargetNode: nid, TargetPort: exp.Port,
					Expected: exp.Type, Actual: actual, Function: fid,
				}
				if src, srcPort, ok := sourceOfPort(g, nid, exp.Port); ok {
					mismatch.SourceNode = src
					mismatch.SourcePort = srcPort
				}
				if lmtype.IsNumeric(actual) && lmtype.IsNumeric(exp.Type) {
					mismatch.Suggestion = &InsertCastSuggestion{From: actual, To: exp.Type}
				}
				errs = append(errs, mismatch)
			}
		}
	}
	sortErrorsByNode(errs)
	return errs
}

func gatherInputTypes(g *program.Graph, nid ids.NodeID) map[uint16]ids.TypeID {
	out := make(map[uint16]ids.TypeID)
	for _, e := range g.IncomingDataEdges(nid) {
		out[e.TargetPort] = e.ValueType
	}
	return out
}

func sourceOfPort(g *program.Graph, nid ids.NodeID, port uint16) (ids.NodeID, uint16, bool) {
	for _, e := range g.IncomingDataEdges(nid) {
		if e.TargetPort == port {
			return e.Source, e.SourcePort, true
		}
	}
	return 0, 0, false
}

func expectedAtPort(rule OpTypeRule, port uint16) (ids.TypeID, bool) {
	for _, exp := range rule.ExpectedInputs {
		if exp.Port == port {
			return exp.Type, true
		}
	}
	return 0, false
}

func sortErrorsByNode(errs []error) {
	sort.SliceStable(errs, func(i, j int) bool {
		return nodeOf(errs[i]) < nodeOf(errs[j])
	})
}

func nodeOf(err error) ids.NodeID {
	switch e := err.(type) {
	case *TypeMismatchError:
		return e.TargetNode
	case *NonNumericArithmeticError:
		return e.Node
	case *NonBooleanConditionError:
		return e.Node
	case *ArityError:
		return e.Node
	case *TypeError:
		return e.Node
	default:
		return 0
	}
}

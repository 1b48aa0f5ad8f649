package program

import (
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
)

// RestoreComputeNode reinserts a node at its original id, the primitive
// editlog's undo uses to invert RemoveComputeNode exactly — AddComputeNode
// can't be used here because it always allocates a fresh id, and undo
// must put the original NodeID back so any edges the batch also restores
// still resolve to it.
func (g *Graph) RestoreComputeNode(id ids.NodeID, node ir.ComputeNode) error {
	if _, exists := g.nodes[id]; exists {
		return &InvalidEdgeError{Reason: fmt.Sprintf("cannot restore node %v: id already in use", id)}
	}
	g.nodes[id] = &node
	g.nodeAlloc.Restore(id + 1)
	return nil
}

// RestoreEdge reinserts an edge at its original id, inverting RemoveEdge
// exactly for the same reason RestoreComputeNode exists.
func (g *Graph) RestoreEdge(id ids.EdgeID, e ir.FlowEdge) error {
	if _, exists := g.edges[id]; exists {
		return &InvalidEdgeError{Reason: fmt.Sprintf("cannot restore edge %v: id already in use", id)}
	}
	g.edges[id] = &e
	g.outEdges[e.Source] = append(g.outEdges[e.Source], id)
	g.inEdges[e.Target] = append(g.inEdges[e.Target], id)
	g.edgeAlloc.Restore(id + 1)
	return nil
}

// RemoveFunction undoes AddFunction. It is not itself a member of the
// forward Mutation surface (§4.7.1 never lets a caller delete a function
// directly, only undo an AddFunction) so it is deliberately conservative:
// it refuses a function that still owns compute nodes (the batch's
// InsertNode mutations must be undone first, which the edit log's strict
// LIFO order guarantees), and it refuses to remove anything but the most
// recently appended semantic node, since only the function added last
// could not yet be referenced by anything added after it.
func (g *Graph) RemoveFunction(fid ids.FunctionID) (ir.FunctionDef, error) {
	def, ok := g.functions[fid]
	if !ok {
		return ir.FunctionDef{}, &FunctionNotFoundError{Function: fid}
	}
	if len(g.NodesOwnedBy(fid)) != 0 {
		return ir.FunctionDef{}, &InvalidEdgeError{Reason: fmt.Sprintf("cannot remove function %v: still owns compute nodes", fid)}
	}
	semIdx, ok := g.functionSemanticIndex[fid]
	if !ok || int(semIdx) != len(g.semanticNodes)-1 {
		return ir.FunctionDef{}, &GraphInconsistencyError{Reason: fmt.Sprintf("function %v is not the most recently added semantic node; undo out of order", fid)}
	}

	if err := g.Modules.RemoveFunction(def.Module, fid); err != nil {
		return ir.FunctionDef{}, err
	}
	g.semanticNodes = g.semanticNodes[:semIdx]
	g.semanticEdges = removeContainsEdgeTo(g.semanticEdges, semIdx)
	delete(g.functionSemanticIndex, fid)
	delete(g.functions, fid)
	return *def, nil
}

// RemoveModule undoes AddModule, with the same "last semantic node, no
// dependents yet" conservatism as RemoveFunction.
func (g *Graph) RemoveModule(mid ids.ModuleID) error {
	semIdx, ok := g.moduleSemanticIndex[mid]
	if !ok || int(semIdx) != len(g.semanticNodes)-1 {
		return &GraphInconsistencyError{Reason: fmt.Sprintf("module %v is not the most recently added semantic node; undo out of order", mid)}
	}
	if err := g.Modules.RemoveModule(mid); err != nil {
		return err
	}
	g.semanticNodes = g.semanticNodes[:semIdx]
	g.semanticEdges = removeContainsEdgeTo(g.semanticEdges, semIdx)
	delete(g.moduleSemanticIndex, mid)
	return nil
}

// RestoreFunction reinserts a function at its exact original id —
// editlog's redo for an undone AddFunction. def.ID must equal fid;
// def's Module must already exist.
func (g *Graph) RestoreFunction(fid ids.FunctionID, def ir.FunctionDef) error {
	if _, exists := g.functions[fid]; exists {
		return &InvalidEdgeError{Reason: fmt.Sprintf("cannot restore function %v: id already in use", fid)}
	}
	if _, ok := g.Modules.Get(def.Module); !ok {
		return &ModuleNotFoundError{Module: def.Module}
	}
	cp := def
	cp.Params = append([]ir.Param(nil), def.Params...)
	cp.Captures = append([]ir.Capture(nil), def.Captures...)
	g.functions[fid] = &cp
	if err := g.Modules.AddFunction(def.Module, fid); err != nil {
		delete(g.functions, fid)
		return err
	}
	modIdx := g.moduleSemanticIndex[def.Module]
	semIdx := uint32(len(g.semanticNodes))
	g.semanticNodes = append(g.semanticNodes, &ir.SemanticNode{
		Kind: ir.SemFunction,
		Summary: ir.FunctionSummary{
			Name: def.Name, FunctionID: fid, Module: def.Module, Visibility: def.Visibility,
			Signature: signatureString(&cp),
		},
		Metadata: map[string]string{},
	})
	g.functionSemanticIndex[fid] = semIdx
	g.semanticEdges = append(g.semanticEdges, &ir.SemanticEdge{Kind: ir.Contains, Source: modIdx, Target: semIdx})
	g.funcAlloc.Restore(fid + 1)
	return nil
}

// RestoreModuleAt reinserts a module at its exact original id — editlog's
// redo for an undone AddModule.
func (g *Graph) RestoreModuleAt(mid ids.ModuleID, name string, parent ids.ModuleID, visibility lmtype.Visibility) error {
	if err := g.Modules.RestoreModule(mid, name, parent, visibility); err != nil {
		return err
	}
	semIdx := uint32(len(g.semanticNodes))
	g.semanticNodes = append(g.semanticNodes, &ir.SemanticNode{Kind: ir.SemModule, ModuleDef: mid, Metadata: map[string]string{}})
	g.moduleSemanticIndex[mid] = semIdx
	if parentIdx, ok := g.moduleSemanticIndex[parent]; ok {
		g.semanticEdges = append(g.semanticEdges, &ir.SemanticEdge{Kind: ir.Contains, Source: parentIdx, Target: semIdx})
	}
	return nil
}

// removeContainsEdgeTo drops the single Contains edge pointing at target,
// searching from the end: AddFunction and AddModule append their Contains
// edge immediately after their semantic node, in the same call, though a
// later propagation flush may append Calls edges after it.
func removeContainsEdgeTo(edges []*ir.SemanticEdge, target uint32) []*ir.SemanticEdge {
	for i := len(edges) - 1; i >= 0; i-- {
		if edges[i].Kind == ir.Contains && edges[i].Target == target {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}
